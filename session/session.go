package session

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-instr/logger"
	"github.com/arloliu/go-instr/transport"
	"github.com/arloliu/go-instr/vxi11"
)

// Session is an open connection to one instrument.
type Session struct {
	tr      transport.Transport
	cfg     *Config
	address string
	logger  logger.Logger
	metrics Metrics

	// depth counts nested status polls; only the outermost one runs.
	depth  int
	closed bool
}

// Open connects to the instrument at address, which is either an address
// string (see ParseAddress) or a name known to the configured Resolver.
func Open(address string, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.resolver != nil {
		if resolved, ok := cfg.resolver.Resolve(address); ok {
			cfg.logger.Debug("session: resolved instrument name", "name", address, "address", resolved)
			address = resolved
		}
	}

	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	tr, err := openTransport(addr, cfg)
	if err != nil {
		return nil, err
	}

	s, err := newSession(tr, addr.String(), cfg)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}

	return s, nil
}

// New wraps an already opened transport, e.g. a custom backend.
func New(tr transport.Transport, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return newSession(tr, tr.Kind().String(), cfg)
}

func newSession(tr transport.Transport, address string, cfg *Config) (*Session, error) {
	s := &Session{
		tr:      tr,
		cfg:     cfg,
		address: address,
		logger:  cfg.logger.With("instrument", address),
	}

	if err := tr.SetTimeout(cfg.ioTimeout); err != nil {
		return nil, err
	}
	term := cfg.terminateOnEOS(tr.Kind())
	if err := tr.SetEOS(cfg.eos, term); err != nil {
		return nil, err
	}
	cfg.termOnEOS, cfg.termOnEOSSet = term, true
	if err := tr.SetAssertEnd(cfg.assertEnd); err != nil {
		return nil, err
	}

	s.logger.Debug("session: opened", "kind", tr.Kind())

	return s, nil
}

func openTransport(addr Address, cfg *Config) (transport.Transport, error) {
	switch addr.Kind {
	case transport.KindVXI11:
		opts := []vxi11.Option{
			vxi11.WithIOTimeout(cfg.ioTimeout),
			vxi11.WithLockTimeout(cfg.lockTimeout),
			vxi11.WithDialTimeout(cfg.dialTimeout),
			vxi11.WithAbortChannel(cfg.abortChannel),
			vxi11.WithAssertEnd(cfg.assertEnd),
			vxi11.WithZeroSizeWriteQuirk(cfg.writeQuirk),
			vxi11.WithLogger(cfg.logger),
		}
		if cfg.portCache != nil {
			opts = append(opts, vxi11.WithPortCache(cfg.portCache))
		}
		opts = append(opts, cfg.vxi11Opts...)

		return vxi11.OpenTransport(addr.Host, addr.Device, opts...)

	case transport.KindSocket:
		hostPort := net.JoinHostPort(addr.Host, strconv.Itoa(addr.Port))
		return transport.DialSocket(hostPort, cfg.dialTimeout, cfg.logger)

	case transport.KindSerial:
		return transport.OpenSerial(addr.Serial, cfg.ioTimeout, cfg.logger)

	case transport.KindGPIB:
		return transport.OpenGPIB(cfg.gpibDriver, addr.GPIB, cfg.ioTimeout, cfg.logger)

	default:
		return nil, fmt.Errorf("%w: unsupported transport %s", ErrAddress, addr.Kind)
	}
}

// Kind returns the transport kind.
func (s *Session) Kind() transport.Kind { return s.tr.Kind() }

// Address returns the normalised address of the instrument.
func (s *Session) Address() string { return s.address }

// Metrics returns the session counters.
func (s *Session) Metrics() *Metrics { return &s.metrics }

// IsClosed reports whether the session was closed, explicitly or by a Fatal verdict.
func (s *Session) IsClosed() bool { return s.closed }

// SetInterpreter installs or removes the status interpreter. Installing it
// after Open lets the interpreter capture the session for nested queries.
func (s *Session) SetInterpreter(fn Interpreter) error {
	if s.closed {
		return ErrClosed
	}
	s.cfg.interpreter = fn

	return nil
}

// SetRetryBackoff sets the backoff unit of status poll retries.
func (s *Session) SetRetryBackoff(d time.Duration) error {
	if s.closed {
		return ErrClosed
	}

	return WithRetryBackoff(d).apply(s.cfg)
}

// Write sends buf and polls the status byte.
func (s *Session) Write(buf []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	n, err := s.write(buf, "write")

	return n, s.poll("write", err)
}

// WriteString sends str and polls the status byte.
func (s *Session) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// Read reads up to maxLen bytes and polls the status byte.
func (s *Session) Read(maxLen int) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	buf, err := s.read(maxLen, "read")

	return buf, s.poll("read", err)
}

// ReadString reads up to maxLen bytes with trailing CR and LF removed.
func (s *Session) ReadString(maxLen int) (string, error) {
	buf, err := s.Read(maxLen)
	return strings.TrimRight(string(buf), "\r\n"), err
}

// Query writes cmd, reads up to maxLen bytes of response, then polls the
// status byte once.
func (s *Session) Query(cmd []byte, maxLen int) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	var buf []byte
	_, err := s.write(cmd, "query")
	if err == nil {
		buf, err = s.read(maxLen, "query")
	}

	return buf, s.poll("query", err)
}

// QueryString is Query with string arguments; trailing CR and LF are removed.
func (s *Session) QueryString(cmd string, maxLen int) (string, error) {
	buf, err := s.Query([]byte(cmd), maxLen)
	return strings.TrimRight(string(buf), "\r\n"), err
}

// Clear sends a device clear, waits settle for the instrument to recover,
// and polls the status byte.
func (s *Session) Clear(settle time.Duration) error {
	if s.closed {
		return ErrClosed
	}

	s.trace("clear", "settle", settle)
	err := s.count(s.tr.Clear())
	if err == nil && settle > 0 {
		s.cfg.sleep(settle)
	}

	return s.poll("clear", err)
}

// Local returns the instrument to front panel control and polls the status byte.
func (s *Session) Local() error {
	if s.closed {
		return ErrClosed
	}

	s.trace("local")

	return s.poll("local", s.count(s.tr.Local()))
}

// Trigger sends a group execute trigger and polls the status byte.
func (s *Session) Trigger() error {
	if s.closed {
		return ErrClosed
	}

	s.trace("trigger")

	return s.poll("trigger", s.count(s.tr.Trigger()))
}

// ReadStatusByte serial-polls the instrument once. The result is returned as
// is and not handed to the interpreter.
func (s *Session) ReadStatusByte() (byte, error) {
	if s.closed {
		return 0, ErrClosed
	}

	stb, _, err := s.tr.ReadStatusByte()
	if err != nil {
		return 0, s.count(err)
	}
	s.trace("status byte", "stb", stb)

	return stb, nil
}

// Remote places the instrument in remote state where the transport can.
func (s *Session) Remote() error {
	if s.closed {
		return ErrClosed
	}

	r, ok := s.tr.(transport.Remoter)
	if !ok {
		return fmt.Errorf("%w: remote on %s", transport.ErrNotSupported, s.tr.Kind())
	}
	s.trace("remote")

	return r.Remote()
}

// Lock acquires the exclusive device lock, waiting up to timeout.
func (s *Session) Lock(timeout time.Duration) error {
	if s.closed {
		return ErrClosed
	}

	l, ok := s.tr.(transport.Locker)
	if !ok {
		return fmt.Errorf("%w: lock on %s", transport.ErrNotSupported, s.tr.Kind())
	}
	s.trace("lock", "timeout", timeout)

	return l.Lock(timeout)
}

// Unlock releases the device lock.
func (s *Session) Unlock() error {
	if s.closed {
		return ErrClosed
	}

	l, ok := s.tr.(transport.Locker)
	if !ok {
		return fmt.Errorf("%w: unlock on %s", transport.ErrNotSupported, s.tr.Kind())
	}
	s.trace("unlock")

	return l.Unlock()
}

// Abort interrupts the remote operation in flight. It may be called from
// another goroutine. Transports without an abort mechanism ignore it.
func (s *Session) Abort() error {
	a, ok := s.tr.(transport.Aborter)
	if !ok {
		return nil
	}

	return a.Abort()
}

// SetEOS sets the end-of-string character.
func (s *Session) SetEOS(eos byte) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.tr.SetEOS(eos, s.cfg.termOnEOS); err != nil {
		return err
	}
	s.cfg.eos = eos

	return nil
}

// SetTerminateOnEOS controls whether reads stop at the end-of-string character.
func (s *Session) SetTerminateOnEOS(enabled bool) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.tr.SetEOS(s.cfg.eos, enabled); err != nil {
		return err
	}
	s.cfg.termOnEOS = enabled

	return nil
}

// SetAssertEndOnWrite controls END/EOI on the last byte written.
func (s *Session) SetAssertEndOnWrite(enabled bool) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.tr.SetAssertEnd(enabled); err != nil {
		return err
	}
	s.cfg.assertEnd = enabled

	return nil
}

// SetTimeout sets the I/O timeout.
func (s *Session) SetTimeout(d time.Duration) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.tr.SetTimeout(d); err != nil {
		return err
	}
	s.cfg.ioTimeout = d

	return nil
}

// SetVerbose logs every primitive at info level when enabled.
func (s *Session) SetVerbose(enabled bool) error {
	if s.closed {
		return ErrClosed
	}
	s.cfg.verbose = enabled

	return nil
}

// Close closes the transport. Further operations return ErrClosed; closing
// again is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.tr.Close()
	s.logger.Debug("session: closed")

	return err
}

func (s *Session) write(buf []byte, tag string) (int, error) {
	n, err := s.tr.Write(buf)
	s.metrics.WriteCount.Add(1)
	s.metrics.BytesWritten.Add(uint64(max(n, 0))) //nolint:gosec // non-negative
	s.trace(tag+" write", "bytes", n, "data", quote(buf[:max(min(n, len(buf)), 0)]))

	return n, s.count(err)
}

func (s *Session) read(maxLen int, tag string) ([]byte, error) {
	buf, err := s.tr.Read(maxLen)
	s.metrics.ReadCount.Add(1)
	s.metrics.BytesRead.Add(uint64(len(buf)))
	s.trace(tag+" read", "bytes", len(buf), "data", quote(buf))

	return buf, s.count(err)
}

func (s *Session) count(err error) error {
	if err == nil {
		return nil
	}
	s.metrics.ErrorCount.Add(1)
	if errors.Is(err, transport.ErrIoTimeout) {
		s.metrics.TimeoutCount.Add(1)
	}

	return err
}

func (s *Session) trace(msg string, keysAndValues ...any) {
	if s.cfg.verbose {
		s.logger.Info(msg, keysAndValues...)
	} else {
		s.logger.Debug(msg, keysAndValues...)
	}
}

const maxTraceData = 128

// quote renders instrument data for logs, truncating long binary transfers.
func quote(buf []byte) string {
	if len(buf) > maxTraceData {
		return strconv.Quote(string(buf[:maxTraceData])) + "..."
	}

	return strconv.Quote(string(buf))
}
