package prologix

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arloliu/go-instr/transport"
)

// device is one instrument on a Prologix-controlled bus.
type device struct {
	drv  *Driver
	ctl  *controller
	addr transport.GPIBAddress

	timeout   time.Duration
	eos       byte
	termOnEOS bool

	// Bytes of the last transfer not yet returned by Read.
	pending []byte
	closed  bool
}

var _ transport.GPIBDevice = (*device)(nil)

func (d *device) Write(buf []byte, assertEOI bool) (int, error) {
	if d.closed {
		return 0, transport.ErrClosed
	}

	d.ctl.mu.Lock()
	defer d.ctl.mu.Unlock()

	if err := d.ctl.selectAddress(d.addr); err != nil {
		return 0, err
	}
	if err := d.ctl.setEOI(assertEOI); err != nil {
		return 0, err
	}
	if err := d.ctl.writeData(buf); err != nil {
		return 0, err
	}

	return len(buf), nil
}

// Read returns the bytes of one bus transfer. A transfer longer than buf is
// handed out over several calls; end is set with its last byte.
func (d *device) Read(buf []byte) (int, bool, error) {
	if d.closed {
		return 0, false, transport.ErrClosed
	}

	if len(d.pending) == 0 {
		data, err := d.transfer()
		if err != nil {
			return 0, false, err
		}
		d.pending = data
	}

	n := copy(buf, d.pending)
	d.pending = d.pending[n:]

	return n, len(d.pending) == 0, nil
}

func (d *device) transfer() ([]byte, error) {
	d.ctl.mu.Lock()
	defer d.ctl.mu.Unlock()

	if err := d.ctl.selectAddress(d.addr); err != nil {
		return nil, err
	}
	if err := d.ctl.setReadTimeout(d.timeout); err != nil {
		return nil, err
	}

	cmd := "++read eoi"
	if d.termOnEOS {
		cmd = "++read " + strconv.Itoa(int(d.eos))
	}
	if err := d.ctl.command(cmd); err != nil {
		return nil, err
	}

	return d.ctl.collect(d.timeout, d.eos, d.termOnEOS)
}

func (d *device) SerialPoll() (byte, bool, error) {
	if d.closed {
		return 0, false, transport.ErrClosed
	}

	d.ctl.mu.Lock()
	defer d.ctl.mu.Unlock()

	cmd := "++spoll " + strconv.Itoa(d.addr.PAD)
	if d.addr.SAD != 0 {
		cmd += " " + strconv.Itoa(d.addr.SAD)
	}
	if err := d.ctl.command(cmd); err != nil {
		return 0, false, err
	}

	reply, err := d.ctl.collect(d.timeout, '\n', true)
	if err != nil {
		return 0, false, err
	}

	stb, err := parseStatusByte(reply)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", transport.ErrChannel, err)
	}

	return stb, false, nil
}

func (d *device) Clear() error {
	return d.addressed("++clr")
}

func (d *device) Trigger() error {
	return d.addressed("++trg")
}

func (d *device) Local() error {
	return d.addressed("++loc")
}

// Remote is not available: the adapter asserts REN whenever it is controller
// in charge and offers no command to address a device to remote alone.
func (d *device) Remote() error {
	return transport.ErrNotSupported
}

func (d *device) SetTimeout(t time.Duration) error {
	if t <= 0 {
		return fmt.Errorf("prologix: timeout must be positive, got %v", t)
	}
	d.timeout = t

	return nil
}

func (d *device) SetEOS(eos byte, terminateOnEOS bool) error {
	d.eos = eos
	d.termOnEOS = terminateOnEOS

	return nil
}

func (d *device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.drv.release(d.addr.Board)

	return nil
}

func (d *device) addressed(cmd string) error {
	if d.closed {
		return transport.ErrClosed
	}

	d.ctl.mu.Lock()
	defer d.ctl.mu.Unlock()

	if err := d.ctl.selectAddress(d.addr); err != nil {
		return err
	}

	return d.ctl.command(cmd)
}
