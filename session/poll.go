package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-instr/transport"
)

// poll runs the status monitor after the primitive tagged tag, which
// returned ioErr. It returns ioErr unless the interpreter gives a Fatal
// verdict, in which case the session is closed and a *FatalError is returned.
//
// Only the outermost poll runs: I/O issued by the interpreter itself comes
// back here with depth > 1 and returns immediately.
func (s *Session) poll(tag string, ioErr error) error {
	s.depth++
	defer func() { s.depth-- }()

	if s.depth != 1 || s.cfg.interpreter == nil {
		return ioErr
	}

	attempt := 0
	for !s.closed {
		stb, more, err := s.tr.ReadStatusByte()
		if err != nil {
			if errors.Is(err, transport.ErrNotSupported) {
				return ioErr
			}
			_ = s.count(err)
			s.logger.Warn("session: status poll failed", "tag", tag, "error", err)
			if ioErr != nil {
				return ioErr
			}

			return fmt.Errorf("session: status poll after %s: %w", tag, err)
		}
		s.metrics.PollCount.Add(1)

		verdict := s.cfg.interpreter(stb, tag)
		s.trace("status", "tag", tag, "stb", fmt.Sprintf("0x%02X", stb), "more", more, "verdict", verdict)

		switch {
		case verdict.IsFatal():
			s.metrics.FatalCount.Add(1)
			s.logger.Error("session: fatal instrument status, closing", "tag", tag, "stb", stb, "code", verdict.Code())
			if err := s.Close(); err != nil {
				s.logger.Warn("session: close after fatal status", "error", err)
			}

			return &FatalError{Code: verdict.Code(), Tag: tag, Status: stb}

		case verdict.IsRetry():
			attempt++
			s.metrics.RetryCount.Add(1)
			s.cfg.sleep(time.Duration(attempt) * s.cfg.retryBackoff)

		default:
			if !more {
				return ioErr
			}
		}
	}

	// The interpreter closed the session.
	return ioErr
}
