package vxi11test_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-instr/transport"
	"github.com/arloliu/go-instr/vxi11"
	"github.com/arloliu/go-instr/vxi11/vxi11test"
)

func TestServer_QueryRoundTrip(t *testing.T) {
	srv, err := vxi11test.NewServer(func(cmd []byte) []byte {
		if string(cmd) == "*IDN?\n" {
			return []byte("ACME,DMM-1,42,1.0\n")
		}
		return nil
	})
	require.NoError(t, err)
	defer srv.Close()
	srv.SetStatusByte(0x10)

	c, err := vxi11.Open(srv.Host(), "inst0", vxi11.WithCorePort(srv.Port()))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write([]byte("*IDN?\n"))
	require.NoError(t, err)

	buf, err := c.Read(256)
	require.NoError(t, err)
	assert.Equal(t, "ACME,DMM-1,42,1.0\n", string(buf))

	stb, err := c.ReadStatusByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), stb)

	_, err = c.Read(16)
	require.ErrorIs(t, err, transport.ErrIoTimeout, "nothing queued")

	require.NoError(t, c.Trigger())
	require.NoError(t, c.Clear())
	assert.Equal(t, 1, srv.Triggers())
	assert.Equal(t, 1, srv.Clears())
	assert.Equal(t, []string{"*IDN?\n"}, srv.Commands())
}

func TestServer_Lock(t *testing.T) {
	srv, err := vxi11test.NewServer(nil)
	require.NoError(t, err)
	defer srv.Close()

	c, err := vxi11.Open(srv.Host(), "inst0", vxi11.WithCorePort(srv.Port()))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Lock(0))
	err = c.Lock(0)
	pe, ok := vxi11.IsProtocolError(err)
	require.True(t, ok)
	assert.Equal(t, vxi11.ErrCodeLockedByOther, pe.Code)
	require.NoError(t, c.Unlock())
}
