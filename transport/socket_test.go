package transport

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocket_ReadTerminatesOnEOS(t *testing.T) {
	s, remote := newPipeSocket(t)
	require.NoError(t, s.SetEOS('\n', true))

	go func() { _, _ = remote.Write([]byte("ABC\nDEF\n")) }()

	buf, err := s.Read(100)
	require.NoError(t, err)
	assert.Equal(t, "ABC\n", string(buf))

	buf, err = s.Read(100)
	require.NoError(t, err)
	assert.Equal(t, "DEF\n", string(buf), "bytes after EOS stay buffered")
}

func TestSocket_ReadStopsAtMaxLen(t *testing.T) {
	s, remote := newPipeSocket(t)
	require.NoError(t, s.SetEOS('\n', true))

	go func() { _, _ = remote.Write([]byte("0123456789\n")) }()

	buf, err := s.Read(4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf))
}

func TestSocket_RawRead(t *testing.T) {
	s, remote := newPipeSocket(t)
	require.NoError(t, s.SetEOS('\n', false))

	go func() {
		_, _ = remote.Write([]byte("raw\n"))
		_, _ = remote.Write([]byte("bytes"))
	}()

	buf, err := s.Read(64)
	require.NoError(t, err)
	assert.Equal(t, "raw\nbytes", string(buf))
}

func TestSocket_RawReadStopsWhenIdle(t *testing.T) {
	s, remote := newPipeSocket(t)
	require.NoError(t, s.SetEOS('\n', false))

	go func() { _, _ = remote.Write([]byte("#14DATA")) }()

	start := time.Now()
	buf, err := s.Read(64)
	require.NoError(t, err)
	assert.Equal(t, "#14DATA", string(buf))
	assert.Less(t, time.Since(start), s.timeout, "ends on the idle gap, not the read timeout")
}

func TestSocket_ReadTimeout(t *testing.T) {
	s, _ := newPipeSocket(t)
	require.NoError(t, s.SetTimeout(30*time.Millisecond))

	_, err := s.Read(16)
	require.ErrorIs(t, err, ErrIoTimeout)
}

func TestSocket_Write(t *testing.T) {
	s, remote := newPipeSocket(t)

	done := make(chan []byte)
	go func() {
		buf := make([]byte, 6)
		_, _ = io.ReadFull(remote, buf)
		done <- buf
	}()

	n, err := s.Write([]byte("*IDN?\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "*IDN?\n", string(<-done))
}

func TestSocket_PeerClosed(t *testing.T) {
	s, remote := newPipeSocket(t)
	require.NoError(t, remote.Close())

	_, err := s.Read(16)
	require.ErrorIs(t, err, ErrChannel)
}

func TestSocket_UnsupportedAndClosed(t *testing.T) {
	s, _ := newPipeSocket(t)

	_, _, err := s.ReadStatusByte()
	require.ErrorIs(t, err, ErrNotSupported)
	require.ErrorIs(t, s.Trigger(), ErrNotSupported)
	require.NoError(t, s.Local())
	require.Error(t, s.SetTimeout(0))
	assert.Equal(t, KindSocket, s.Kind())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err = s.Write([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.Read(1)
	require.ErrorIs(t, err, ErrClosed)
}
