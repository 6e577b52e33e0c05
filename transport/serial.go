package transport

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-instr/logger"
)

// Parity of a serial line.
type Parity byte

const (
	ParityNone Parity = 'n'
	ParityEven Parity = 'e'
	ParityOdd  Parity = 'o'
)

// FlowControl of a serial line.
type FlowControl string

const (
	FlowNone    FlowControl = "none"
	FlowXonXoff FlowControl = "xonxoff"
	FlowRTSCTS  FlowControl = "rtscts"
)

// SerialConfig describes a serial line, as given by a
// "/dev/ttyS0:9600,8n1,none" address.
type SerialConfig struct {
	Path     string
	Baud     int
	DataBits int
	Parity   Parity
	StopBits int
	Flow     FlowControl
}

// DefaultSerialConfig returns 9600 baud, 8 data bits, no parity, 1 stop bit, no flow control.
func DefaultSerialConfig(path string) SerialConfig {
	return SerialConfig{
		Path:     path,
		Baud:     9600,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: 1,
		Flow:     FlowNone,
	}
}

func (c SerialConfig) String() string {
	return fmt.Sprintf("%s:%d,%d%c%d,%s", c.Path, c.Baud, c.DataBits, c.Parity, c.StopBits, c.Flow)
}

func (c SerialConfig) mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: c.Baud,
		DataBits: c.DataBits,
	}

	switch c.Parity {
	case ParityNone:
		mode.Parity = serial.NoParity
	case ParityEven:
		mode.Parity = serial.EvenParity
	case ParityOdd:
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("transport: invalid parity %q", c.Parity)
	}

	switch c.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("transport: invalid stop bits %d", c.StopBits)
	}

	return mode, nil
}

// SerialPort is the subset of serial.Port used by the serial transport.
type SerialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
	Close() error
}

var _ SerialPort = serial.Port(nil)

// idleReader turns the zero-byte reads a serial port returns on timeout
// into errReadIdle, so buffered readers stop instead of spinning.
type idleReader struct {
	port SerialPort
}

func (r idleReader) Read(p []byte) (int, error) {
	n, err := r.port.Read(p)
	if n == 0 && err == nil {
		return 0, errReadIdle
	}

	return n, err
}

// Serial is a transport over a serial line (RS-232 instruments).
//
// With terminate-on-EOS enabled reads are line oriented and stop at the EOS
// character, otherwise they return whatever arrives until maxLen bytes are in
// or the line goes quiet after the first burst.
// Serial lines carry no status byte or trigger: ReadStatusByte and Trigger
// return ErrNotSupported.
type Serial struct {
	port    SerialPort
	cfg     SerialConfig
	reader  *streamReader
	timeout time.Duration
	logger  logger.Logger
	closed  bool
}

var _ Transport = (*Serial)(nil)

// OpenSerial opens and configures the device named in cfg.
func OpenSerial(cfg SerialConfig, timeout time.Duration, l logger.Logger) (*Serial, error) {
	mode, err := cfg.mode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(cfg.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrChannel, cfg.Path, err)
	}

	s, err := NewSerial(port, cfg, timeout, l)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	return s, nil
}

// NewSerial wraps an already opened port.
func NewSerial(port SerialPort, cfg SerialConfig, timeout time.Duration, l logger.Logger) (*Serial, error) {
	if l == nil {
		l = logger.GetLogger()
	}

	s := &Serial{
		port:   port,
		cfg:    cfg,
		logger: l.With("transport", "serial", "device", cfg.Path),
	}
	s.reader = newStreamReader(bufio.NewReader(idleReader{port: port}), s.idleGap, func(err error) bool {
		return errors.Is(err, errReadIdle)
	})

	if cfg.Flow != FlowNone && cfg.Flow != "" {
		s.logger.Warn("flow control is not applied by the serial driver", "flow", cfg.Flow)
	}

	if err := s.SetTimeout(timeout); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Serial) Kind() Kind { return KindSerial }

// Config returns the line settings the transport was opened with.
func (s *Serial) Config() SerialConfig { return s.cfg }

func (s *Serial) Write(buf []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	for written := 0; written < len(buf); {
		n, err := s.port.Write(buf[written:])
		written += n
		if err != nil {
			return written, fmt.Errorf("%w: serial write: %w", ErrChannel, err)
		}
	}

	return len(buf), nil
}

func (s *Serial) Read(maxLen int) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	buf, err := s.reader.read(maxLen)
	if err != nil {
		if errors.Is(err, errReadIdle) {
			return buf, fmt.Errorf("%w: serial read after %v", ErrIoTimeout, s.timeout)
		}

		return buf, fmt.Errorf("%w: serial read: %w", ErrChannel, err)
	}

	return buf, nil
}

func (s *Serial) ReadStatusByte() (byte, bool, error) {
	return 0, false, ErrNotSupported
}

// Clear flushes both directions of the line.
func (s *Serial) Clear() error {
	if s.closed {
		return ErrClosed
	}

	s.reader.discard()
	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w: reset input: %w", ErrChannel, err)
	}
	if err := s.port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("%w: reset output: %w", ErrChannel, err)
	}

	return nil
}

func (s *Serial) Trigger() error { return ErrNotSupported }

func (s *Serial) Local() error { return nil }

func (s *Serial) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("transport: timeout must be positive, got %v", d)
	}
	if err := s.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("%w: set read timeout: %w", ErrChannel, err)
	}
	s.timeout = d

	return nil
}

// idleGap shortens the port read timeout to the inter-burst gap of a raw read.
func (s *Serial) idleGap(on bool) error {
	d := s.timeout
	if on {
		d = min(s.reader.idle, s.timeout)
	}
	if err := s.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("%w: set read timeout: %w", ErrChannel, err)
	}

	return nil
}

func (s *Serial) SetEOS(eos byte, terminateOnEOS bool) error {
	if s.reader.termOnEOS != terminateOnEOS {
		s.logger.Debug("switching line discipline", "canonical", terminateOnEOS)
	}
	s.reader.eos = eos
	s.reader.termOnEOS = terminateOnEOS

	return nil
}

// SetAssertEnd is accepted for interface compatibility; a serial line has no END line.
func (s *Serial) SetAssertEnd(_ bool) error { return nil }

func (s *Serial) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.port.Close(); err != nil {
		s.logger.Error("failed to close serial port", "error", err)
		return err
	}

	return nil
}
