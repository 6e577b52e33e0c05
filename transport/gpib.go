package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-instr/logger"
)

// GPIB address limits (IEEE 488.1).
const (
	MaxGPIBPrimaryAddress = 30
	// GPIBSecondaryBase is added to a 0-30 secondary address to form the
	// on-bus secondary address byte; 0 means "no secondary address".
	GPIBSecondaryBase = 0x60
	MaxGPIBSecondary  = GPIBSecondaryBase + 30
)

// GPIBAddress selects a device on a GPIB board.
type GPIBAddress struct {
	Board int
	PAD   int
	// SAD is 0 (none) or 0x60-0x7E.
	SAD int
}

func (a GPIBAddress) String() string {
	if a.SAD == 0 {
		return fmt.Sprintf("%d:%d", a.Board, a.PAD)
	}

	return fmt.Sprintf("%d:%d,%d", a.Board, a.PAD, a.SAD-GPIBSecondaryBase)
}

// Validate checks the address ranges.
func (a GPIBAddress) Validate() error {
	if a.Board < 0 {
		return fmt.Errorf("transport: invalid GPIB board %d", a.Board)
	}
	if a.PAD < 0 || a.PAD > MaxGPIBPrimaryAddress {
		return fmt.Errorf("transport: GPIB primary address %d out of range [0, %d]", a.PAD, MaxGPIBPrimaryAddress)
	}
	if a.SAD != 0 && (a.SAD < GPIBSecondaryBase || a.SAD > MaxGPIBSecondary) {
		return fmt.Errorf("transport: GPIB secondary address 0x%02X out of range", a.SAD)
	}

	return nil
}

// GPIBDriver opens device handles on a native GPIB controller.
type GPIBDriver interface {
	Open(addr GPIBAddress, timeout time.Duration) (GPIBDevice, error)
}

// GPIBDevice is a synchronous handle to one device on the bus, the small
// surface a native GPIB library offers per device.
type GPIBDevice interface {
	// Write sends buf, asserting EOI with the last byte when assertEOI is set.
	Write(buf []byte, assertEOI bool) (int, error)
	// Read fills buf; end reports that EOI or the EOS character ended the transfer.
	// Drivers return an error wrapping ErrIoTimeout when the device timeout expires.
	Read(buf []byte) (n int, end bool, err error)
	// SerialPoll returns the status byte; more reports further queued status bytes.
	SerialPoll() (stb byte, more bool, err error)
	Clear() error
	Trigger() error
	Local() error
	Remote() error
	SetTimeout(d time.Duration) error
	SetEOS(eos byte, terminateOnEOS bool) error
	Close() error
}

// GPIB is the native GPIB transport, delegating to a driver device handle.
type GPIB struct {
	dev       GPIBDevice
	addr      GPIBAddress
	assertEnd bool
	logger    logger.Logger
	closed    bool
}

var (
	_ Transport = (*GPIB)(nil)
	_ Remoter   = (*GPIB)(nil)
)

// OpenGPIB opens the device at addr through drv.
func OpenGPIB(drv GPIBDriver, addr GPIBAddress, timeout time.Duration, l logger.Logger) (*GPIB, error) {
	if drv == nil {
		return nil, fmt.Errorf("%w: no GPIB driver configured for %s", ErrChannel, addr)
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	dev, err := drv.Open(addr, timeout)
	if err != nil {
		if errors.Is(err, ErrChannel) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: open GPIB %s: %w", ErrChannel, addr, err)
	}

	return NewGPIB(dev, addr, l), nil
}

// NewGPIB wraps an open device handle.
func NewGPIB(dev GPIBDevice, addr GPIBAddress, l logger.Logger) *GPIB {
	if l == nil {
		l = logger.GetLogger()
	}

	return &GPIB{
		dev:       dev,
		addr:      addr,
		assertEnd: true,
		logger:    l.With("transport", "gpib", "address", addr.String()),
	}
}

func (g *GPIB) Kind() Kind { return KindGPIB }

// Address returns the bus address of the device.
func (g *GPIB) Address() GPIBAddress { return g.addr }

func (g *GPIB) Write(buf []byte) (int, error) {
	if g.closed {
		return 0, ErrClosed
	}

	return g.dev.Write(buf, g.assertEnd)
}

func (g *GPIB) Read(maxLen int) ([]byte, error) {
	if g.closed {
		return nil, ErrClosed
	}
	if maxLen <= 0 {
		return nil, fmt.Errorf("transport: invalid read length %d", maxLen)
	}

	buf := make([]byte, maxLen)
	n := 0
	for n < maxLen {
		got, end, err := g.dev.Read(buf[n:])
		n += got
		if err != nil {
			return buf[:n], err
		}
		if end {
			break
		}
	}

	return buf[:n], nil
}

func (g *GPIB) ReadStatusByte() (byte, bool, error) {
	if g.closed {
		return 0, false, ErrClosed
	}

	return g.dev.SerialPoll()
}

func (g *GPIB) Clear() error {
	if g.closed {
		return ErrClosed
	}

	return g.dev.Clear()
}

func (g *GPIB) Trigger() error {
	if g.closed {
		return ErrClosed
	}

	return g.dev.Trigger()
}

func (g *GPIB) Local() error {
	if g.closed {
		return ErrClosed
	}

	return g.dev.Local()
}

func (g *GPIB) Remote() error {
	if g.closed {
		return ErrClosed
	}

	return g.dev.Remote()
}

func (g *GPIB) SetTimeout(d time.Duration) error {
	return g.dev.SetTimeout(d)
}

func (g *GPIB) SetEOS(eos byte, terminateOnEOS bool) error {
	return g.dev.SetEOS(eos, terminateOnEOS)
}

func (g *GPIB) SetAssertEnd(enabled bool) error {
	g.assertEnd = enabled
	return nil
}

func (g *GPIB) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true

	if err := g.dev.Close(); err != nil {
		g.logger.Error("failed to close GPIB device", "error", err)
		return err
	}

	return nil
}
