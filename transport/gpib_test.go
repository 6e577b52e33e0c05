package transport

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGPIBDevice struct {
	reads     []fakeGPIBRead
	writes    [][]byte
	eoiFlags  []bool
	stb       []byte
	clears    int
	triggers  int
	locals    int
	remotes   int
	eos       byte
	termOnEOS bool
	timeout   time.Duration
	closed    bool
}

type fakeGPIBRead struct {
	data []byte
	end  bool
	err  error
}

func (d *fakeGPIBDevice) Write(buf []byte, assertEOI bool) (int, error) {
	d.writes = append(d.writes, append([]byte(nil), buf...))
	d.eoiFlags = append(d.eoiFlags, assertEOI)
	return len(buf), nil
}

func (d *fakeGPIBDevice) Read(buf []byte) (int, bool, error) {
	if len(d.reads) == 0 {
		return 0, false, fmt.Errorf("%w: fake", ErrIoTimeout)
	}
	r := d.reads[0]
	d.reads = d.reads[1:]
	n := copy(buf, r.data)
	return n, r.end, r.err
}

func (d *fakeGPIBDevice) SerialPoll() (byte, bool, error) {
	if len(d.stb) == 0 {
		return 0, false, nil
	}
	stb := d.stb[0]
	d.stb = d.stb[1:]
	return stb, len(d.stb) > 0, nil
}

func (d *fakeGPIBDevice) Clear() error   { d.clears++; return nil }
func (d *fakeGPIBDevice) Trigger() error { d.triggers++; return nil }
func (d *fakeGPIBDevice) Local() error   { d.locals++; return nil }
func (d *fakeGPIBDevice) Remote() error  { d.remotes++; return nil }

func (d *fakeGPIBDevice) SetTimeout(t time.Duration) error {
	d.timeout = t
	return nil
}

func (d *fakeGPIBDevice) SetEOS(eos byte, term bool) error {
	d.eos, d.termOnEOS = eos, term
	return nil
}

func (d *fakeGPIBDevice) Close() error {
	d.closed = true
	return nil
}

type fakeGPIBDriver struct {
	dev  *fakeGPIBDevice
	err  error
	addr GPIBAddress
}

func (d *fakeGPIBDriver) Open(addr GPIBAddress, _ time.Duration) (GPIBDevice, error) {
	d.addr = addr
	if d.err != nil {
		return nil, d.err
	}
	return d.dev, nil
}

func TestGPIBAddress(t *testing.T) {
	assert.Equal(t, "0:5", GPIBAddress{Board: 0, PAD: 5}.String())
	assert.Equal(t, "1:22,3", GPIBAddress{Board: 1, PAD: 22, SAD: 0x63}.String())

	require.NoError(t, GPIBAddress{PAD: 30, SAD: 0x7E}.Validate())
	require.Error(t, GPIBAddress{PAD: 31}.Validate())
	require.Error(t, GPIBAddress{PAD: 1, SAD: 5}.Validate())
	require.Error(t, GPIBAddress{Board: -1}.Validate())
}

func TestOpenGPIB(t *testing.T) {
	_, err := OpenGPIB(nil, GPIBAddress{PAD: 5}, time.Second, nil)
	require.ErrorIs(t, err, ErrChannel)

	_, err = OpenGPIB(&fakeGPIBDriver{err: errors.New("no board")}, GPIBAddress{PAD: 5}, time.Second, nil)
	require.ErrorIs(t, err, ErrChannel)

	drv := &fakeGPIBDriver{dev: &fakeGPIBDevice{}}
	g, err := OpenGPIB(drv, GPIBAddress{Board: 0, PAD: 9}, time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, drv.addr.PAD)
	assert.Equal(t, KindGPIB, g.Kind())
}

func TestGPIB_ReadUntilEnd(t *testing.T) {
	dev := &fakeGPIBDevice{reads: []fakeGPIBRead{
		{data: []byte("HEWLETT-")},
		{data: []byte("PACKARD\n"), end: true},
	}}
	g := NewGPIB(dev, GPIBAddress{PAD: 5}, nil)

	buf, err := g.Read(64)
	require.NoError(t, err)
	assert.Equal(t, "HEWLETT-PACKARD\n", string(buf))
}

func TestGPIB_ReadMaxLen(t *testing.T) {
	dev := &fakeGPIBDevice{reads: []fakeGPIBRead{{data: []byte("0123456789")}}}
	g := NewGPIB(dev, GPIBAddress{PAD: 5}, nil)

	buf, err := g.Read(4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf))
}

func TestGPIB_ReadTimeout(t *testing.T) {
	dev := &fakeGPIBDevice{reads: []fakeGPIBRead{{data: []byte("ab")}}}
	g := NewGPIB(dev, GPIBAddress{PAD: 5}, nil)

	buf, err := g.Read(64)
	require.ErrorIs(t, err, ErrIoTimeout)
	assert.Equal(t, "ab", string(buf))
}

func TestGPIB_Primitives(t *testing.T) {
	dev := &fakeGPIBDevice{stb: []byte{0x40, 0x10}}
	g := NewGPIB(dev, GPIBAddress{PAD: 5}, nil)

	_, err := g.Write([]byte("*RST\n"))
	require.NoError(t, err)
	require.NoError(t, g.SetAssertEnd(false))
	_, err = g.Write([]byte("DATA"))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, dev.eoiFlags)

	stb, more, err := g.ReadStatusByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x40), stb)
	assert.True(t, more)

	stb, more, err = g.ReadStatusByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), stb)
	assert.False(t, more)

	require.NoError(t, g.Clear())
	require.NoError(t, g.Trigger())
	require.NoError(t, g.Local())
	require.NoError(t, g.Remote())
	require.NoError(t, g.SetTimeout(3*time.Second))
	require.NoError(t, g.SetEOS('\r', true))
	assert.Equal(t, 1, dev.clears)
	assert.Equal(t, 1, dev.triggers)
	assert.Equal(t, 1, dev.locals)
	assert.Equal(t, 1, dev.remotes)
	assert.Equal(t, 3*time.Second, dev.timeout)
	assert.Equal(t, byte('\r'), dev.eos)
	assert.True(t, dev.termOnEOS)

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.True(t, dev.closed)
	require.ErrorIs(t, g.Clear(), ErrClosed)
}
