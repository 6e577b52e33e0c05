package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/arloliu/go-instr/logger"
)

// DefaultSocketDialTimeout bounds the TCP connect of a socket transport.
const DefaultSocketDialTimeout = 3 * time.Second

// Socket is a raw TCP byte-stream transport, as spoken by LAN instruments on
// their SCPI socket port (commonly 5025).
//
// Sockets carry no status byte, trigger or clear messages: ReadStatusByte and
// Trigger return ErrNotSupported, Clear discards buffered input.
type Socket struct {
	conn    net.Conn
	reader  *streamReader
	timeout time.Duration
	logger  logger.Logger
	closed  bool
}

var _ Transport = (*Socket)(nil)

// DialSocket connects to addr ("host:port").
func DialSocket(addr string, timeout time.Duration, l logger.Logger) (*Socket, error) {
	conn, err := net.DialTimeout("tcp", addr, DefaultSocketDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrChannel, addr, err)
	}

	s := NewSocket(conn, l)
	s.timeout = timeout

	return s, nil
}

// NewSocket wraps an established connection.
func NewSocket(conn net.Conn, l logger.Logger) *Socket {
	if l == nil {
		l = logger.GetLogger()
	}

	s := &Socket{
		conn:    conn,
		timeout: 10 * time.Second,
		logger:  l.With("transport", "socket", "remote", conn.RemoteAddr().String()),
	}
	s.reader = newStreamReader(bufio.NewReader(conn), s.idleGap, func(err error) bool {
		return errors.Is(err, os.ErrDeadlineExceeded)
	})

	return s
}

// idleGap moves the read deadline to the inter-burst gap of a raw read. The
// next Read sets the full deadline again.
func (s *Socket) idleGap(on bool) error {
	if !on {
		return nil
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(min(s.reader.idle, s.timeout))); err != nil {
		return fmt.Errorf("%w: %w", ErrChannel, err)
	}

	return nil
}

func (s *Socket) Kind() Kind { return KindSocket }

func (s *Socket) Write(buf []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if err := s.conn.SetWriteDeadline(s.deadline()); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrChannel, err)
	}

	n, err := s.conn.Write(buf)
	if err != nil {
		return n, s.mapErr("write", err)
	}

	return n, nil
}

func (s *Socket) Read(maxLen int) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if err := s.conn.SetReadDeadline(s.deadline()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChannel, err)
	}

	buf, err := s.reader.read(maxLen)
	if err != nil {
		return buf, s.mapErr("read", err)
	}

	return buf, nil
}

func (s *Socket) ReadStatusByte() (byte, bool, error) {
	return 0, false, ErrNotSupported
}

func (s *Socket) Clear() error {
	if s.closed {
		return ErrClosed
	}
	s.reader.discard()

	return nil
}

func (s *Socket) Trigger() error { return ErrNotSupported }

func (s *Socket) Local() error { return nil }

func (s *Socket) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("transport: timeout must be positive, got %v", d)
	}
	s.timeout = d

	return nil
}

func (s *Socket) SetEOS(eos byte, terminateOnEOS bool) error {
	s.reader.eos = eos
	s.reader.termOnEOS = terminateOnEOS

	return nil
}

// SetAssertEnd is accepted for interface compatibility; a byte stream has no END line.
func (s *Socket) SetAssertEnd(_ bool) error { return nil }

func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Error("failed to close socket", "error", err)
		return err
	}

	return nil
}

func (s *Socket) deadline() time.Time {
	return time.Now().Add(s.timeout)
}

func (s *Socket) mapErr(op string, err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: socket %s after %v", ErrIoTimeout, op, s.timeout)
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: socket %s: connection closed by peer", ErrChannel, op)
	default:
		return fmt.Errorf("%w: socket %s: %w", ErrChannel, op, err)
	}
}
