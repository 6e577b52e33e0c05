package vxi11

import (
	"time"

	"github.com/arloliu/go-instr/transport"
)

var (
	_ transport.Transport = (*Transport)(nil)
	_ transport.Locker    = (*Transport)(nil)
	_ transport.Remoter   = (*Transport)(nil)
	_ transport.Aborter   = (*Transport)(nil)
)

// Transport adapts a Client to transport.Transport.
type Transport struct {
	*Client
}

// NewTransport wraps c.
func NewTransport(c *Client) *Transport {
	return &Transport{Client: c}
}

// OpenTransport opens a link and wraps it as a transport.
func OpenTransport(host, device string, opts ...Option) (*Transport, error) {
	c, err := Open(host, device, opts...)
	if err != nil {
		return nil, err
	}

	return NewTransport(c), nil
}

// Kind returns transport.KindVXI11.
func (t *Transport) Kind() transport.Kind { return transport.KindVXI11 }

// ReadStatusByte reads the status byte. VXI-11 never reports stacked status bytes.
func (t *Transport) ReadStatusByte() (byte, bool, error) {
	stb, err := t.Client.ReadStatusByte()
	return stb, false, err
}

// SetTimeout sets the I/O timeout budget.
func (t *Transport) SetTimeout(d time.Duration) error {
	return t.SetIOTimeout(d)
}

// SetEOS maps the end-of-string character onto the device_read termination character.
func (t *Transport) SetEOS(eos byte, terminateOnEOS bool) error {
	t.SetTermChar(eos, terminateOnEOS)
	return nil
}

// SetAssertEnd controls the END flag on writes.
func (t *Transport) SetAssertEnd(enabled bool) error {
	t.Client.SetAssertEnd(enabled)
	return nil
}
