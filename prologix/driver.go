package prologix

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-instr/logger"
	"github.com/arloliu/go-instr/transport"
)

// Defaults of a Driver.
const (
	DefaultBaud = 115200
	DefaultIdle = 50 * time.Millisecond
)

// Port is the subset of serial.Port used to talk to an adapter.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

var _ Port = serial.Port(nil)

// Driver implements transport.GPIBDriver over Prologix adapters.
type Driver struct {
	// Ports maps board indices to serial device paths.
	Ports map[int]string
	// Baud is the serial rate; USB adapters ignore it. Zero means DefaultBaud.
	Baud int
	// Idle ends a read once the adapter sent nothing for this long.
	// Zero means DefaultIdle.
	Idle time.Duration
	// Logger defaults to the package logger.
	Logger logger.Logger

	openPort func(path string, mode *serial.Mode) (Port, error)

	mu          sync.Mutex
	controllers map[int]*controller
}

var _ transport.GPIBDriver = (*Driver)(nil)

// Open returns a handle for the device at addr, opening the board's adapter
// on first use.
func (d *Driver) Open(addr transport.GPIBAddress, timeout time.Duration) (transport.GPIBDevice, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	ctl, err := d.acquire(addr.Board)
	if err != nil {
		return nil, err
	}

	dev := &device{
		drv:     d,
		ctl:     ctl,
		addr:    addr,
		eos:     '\n',
		timeout: timeout,
	}

	ctl.mu.Lock()
	err = ctl.selectAddress(addr)
	ctl.mu.Unlock()
	if err != nil {
		d.release(addr.Board)
		return nil, err
	}

	return dev, nil
}

func (d *Driver) acquire(board int) (*controller, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ctl, ok := d.controllers[board]; ok {
		ctl.refs++
		return ctl, nil
	}

	path, ok := d.Ports[board]
	if !ok {
		return nil, fmt.Errorf("%w: no prologix adapter configured for board %d", transport.ErrChannel, board)
	}

	baud := d.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	idle := d.Idle
	if idle == 0 {
		idle = DefaultIdle
	}
	l := d.Logger
	if l == nil {
		l = logger.GetLogger()
	}

	open := d.openPort
	if open == nil {
		open = openSerial
	}
	port, err := open(path, &serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", transport.ErrChannel, path, err)
	}

	ctl, err := newController(port, path, idle, l)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	ctl.refs = 1

	if d.controllers == nil {
		d.controllers = make(map[int]*controller)
	}
	d.controllers[board] = ctl
	l.Info("prologix: adapter opened", "board", board, "path", path)

	return ctl, nil
}

func (d *Driver) release(board int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctl, ok := d.controllers[board]
	if !ok {
		return
	}
	ctl.refs--
	if ctl.refs > 0 {
		return
	}

	delete(d.controllers, board)
	if err := ctl.port.Close(); err != nil {
		ctl.logger.Warn("prologix: close adapter", "error", err)
	}
}

func openSerial(path string, mode *serial.Mode) (Port, error) {
	return serial.Open(path, mode)
}
