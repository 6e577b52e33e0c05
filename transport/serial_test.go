package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestSerialConfig_Mode(t *testing.T) {
	cfg := DefaultSerialConfig("/dev/ttyS0")
	assert.Equal(t, "/dev/ttyS0:9600,8n1,none", cfg.String())

	mode, err := cfg.mode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)

	cfg.Parity = ParityEven
	cfg.StopBits = 2
	mode, err = cfg.mode()
	require.NoError(t, err)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)

	cfg.StopBits = 3
	_, err = cfg.mode()
	require.Error(t, err)

	cfg.StopBits = 1
	cfg.Parity = 'x'
	_, err = cfg.mode()
	require.Error(t, err)
}

func TestSerial_LineRead(t *testing.T) {
	port := &fakePort{chunks: [][]byte{[]byte("+1.2"), []byte("5E-3\r\n"), []byte("next\n")}}
	s, err := NewSerial(port, DefaultSerialConfig("/dev/null"), time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, port.readTimeout)

	require.NoError(t, s.SetEOS('\n', true))

	buf, err := s.Read(64)
	require.NoError(t, err)
	assert.Equal(t, "+1.25E-3\r\n", string(buf))

	buf, err = s.Read(64)
	require.NoError(t, err)
	assert.Equal(t, "next\n", string(buf))
}

func TestSerial_RawReadCollectsBursts(t *testing.T) {
	port := &fakePort{chunks: [][]byte{[]byte("#18"), []byte("ABCD"), []byte("EFGH")}}
	s, err := NewSerial(port, DefaultSerialConfig("/dev/null"), time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetEOS('\n', false))

	buf, err := s.Read(64)
	require.NoError(t, err)
	assert.Equal(t, "#18ABCDEFGH", string(buf))
	assert.Equal(t, time.Second, port.readTimeout, "timeout restored after the idle gap")
}

func TestSerial_RawReadStopsAtMaxLen(t *testing.T) {
	port := &fakePort{chunks: [][]byte{[]byte("#18"), []byte("ABCD"), []byte("EFGH")}}
	s, err := NewSerial(port, DefaultSerialConfig("/dev/null"), time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetEOS('\n', false))

	buf, err := s.Read(5)
	require.NoError(t, err)
	assert.Equal(t, "#18AB", string(buf))

	buf, err = s.Read(64)
	require.NoError(t, err)
	assert.Equal(t, "CDEFGH", string(buf))
}

func TestSerial_Timeout(t *testing.T) {
	port := &fakePort{chunks: [][]byte{[]byte("partial")}}
	s, err := NewSerial(port, DefaultSerialConfig("/dev/null"), time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetEOS('\n', true))

	buf, err := s.Read(64)
	require.ErrorIs(t, err, ErrIoTimeout)
	assert.Equal(t, "partial", string(buf))

	require.NoError(t, s.SetEOS('\n', false))
	_, err = s.Read(64)
	require.ErrorIs(t, err, ErrIoTimeout)
}

func TestSerial_WriteClearClose(t *testing.T) {
	port := &fakePort{chunks: [][]byte{[]byte("stale")}}
	s, err := NewSerial(port, DefaultSerialConfig("/dev/null"), time.Second, nil)
	require.NoError(t, err)

	n, err := s.Write([]byte("VOLT 1.0\n"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, "VOLT 1.0\n", string(port.written))

	require.NoError(t, s.Clear())
	assert.Equal(t, 1, port.inputResets)
	assert.Equal(t, 1, port.outputResets)

	_, _, err = s.ReadStatusByte()
	require.ErrorIs(t, err, ErrNotSupported)
	require.ErrorIs(t, s.Trigger(), ErrNotSupported)

	require.NoError(t, s.Close())
	assert.True(t, port.closed)
	_, err = s.Write([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
}
