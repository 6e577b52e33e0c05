package prologix

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-instr/logger"
	"github.com/arloliu/go-instr/transport"
)

// Controller read timeout limits (++read_tmo_ms).
const (
	MinReadTimeout = time.Millisecond
	MaxReadTimeout = 3000 * time.Millisecond
)

// controller serialises access to one Prologix adapter.
type controller struct {
	mu     sync.Mutex
	port   Port
	path   string
	idle   time.Duration
	refs   int
	logger logger.Logger

	// Settings last sent to the adapter; empty or -1 when unknown.
	addr    string
	eoi     int
	readTmo time.Duration
}

func newController(port Port, path string, idle time.Duration, l logger.Logger) (*controller, error) {
	c := &controller{
		port:   port,
		path:   path,
		idle:   idle,
		eoi:    -1,
		logger: l.With("controller", path),
	}

	if err := port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("%w: reset input of %s: %w", transport.ErrChannel, path, err)
	}

	// Controller mode, no automatic read-after-write, no terminator appended
	// to data: framing is left to the END and EOS handling of the session.
	for _, cmd := range []string{"++mode 1", "++auto 0", "++eos 3"} {
		if err := c.command(cmd); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// command sends one "++" command line.
func (c *controller) command(cmd string) error {
	if _, err := c.port.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("%w: prologix %q: %w", transport.ErrChannel, cmd, err)
	}
	c.logger.Debug("prologix: command", "cmd", cmd)

	return nil
}

func (c *controller) selectAddress(addr transport.GPIBAddress) error {
	arg := strconv.Itoa(addr.PAD)
	if addr.SAD != 0 {
		arg += " " + strconv.Itoa(addr.SAD)
	}
	if arg == c.addr {
		return nil
	}
	if err := c.command("++addr " + arg); err != nil {
		c.addr = ""
		return err
	}
	c.addr = arg

	return nil
}

func (c *controller) setEOI(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	if v == c.eoi {
		return nil
	}
	if err := c.command("++eoi " + strconv.Itoa(v)); err != nil {
		c.eoi = -1
		return err
	}
	c.eoi = v

	return nil
}

func (c *controller) setReadTimeout(d time.Duration) error {
	d = min(max(d, MinReadTimeout), MaxReadTimeout)
	if d == c.readTmo {
		return nil
	}
	if err := c.command("++read_tmo_ms " + strconv.FormatInt(d.Milliseconds(), 10)); err != nil {
		c.readTmo = 0
		return err
	}
	c.readTmo = d

	return nil
}

func (c *controller) writeData(data []byte) error {
	framed := append(escape(data), '\n')
	if _, err := c.port.Write(framed); err != nil {
		return fmt.Errorf("%w: prologix write: %w", transport.ErrChannel, err)
	}

	return nil
}

// collect reads the adapter's answer: it waits up to first for the first
// bytes, then reads until the line goes idle or, with stopOnEOS set, the
// eos byte arrives.
func (c *controller) collect(first time.Duration, eos byte, stopOnEOS bool) ([]byte, error) {
	if err := c.port.SetReadTimeout(first); err != nil {
		return nil, fmt.Errorf("%w: set read timeout: %w", transport.ErrChannel, err)
	}

	var out []byte
	chunk := make([]byte, 512)
	for {
		n, err := c.port.Read(chunk)
		if err != nil {
			return out, fmt.Errorf("%w: prologix read: %w", transport.ErrChannel, err)
		}
		if n == 0 {
			if len(out) == 0 {
				return nil, fmt.Errorf("%w: no data from %s within %v", transport.ErrIoTimeout, c.path, first)
			}

			return out, nil
		}

		if len(out) == 0 {
			if err := c.port.SetReadTimeout(c.idle); err != nil {
				return nil, fmt.Errorf("%w: set read timeout: %w", transport.ErrChannel, err)
			}
		}
		out = append(out, chunk[:n]...)

		if stopOnEOS && bytes.IndexByte(chunk[:n], eos) >= 0 {
			return out, nil
		}
	}
}

var errBadPoll = errors.New("prologix: malformed serial poll reply")

func parseStatusByte(reply []byte) (byte, error) {
	s := strings.TrimSpace(string(reply))
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w %q", errBadPoll, s)
	}

	return byte(v), nil
}
