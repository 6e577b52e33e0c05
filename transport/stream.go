package transport

import (
	"bufio"
	"errors"
	"fmt"
	"time"
)

// DefaultReadIdle ends a raw read once no further byte arrived for this long
// after the first burst.
const DefaultReadIdle = 100 * time.Millisecond

// errReadIdle is returned by idleReader when the underlying device reports
// a read timeout as a zero-byte read.
var errReadIdle = errors.New("transport: read idle timeout")

// streamReader implements end-of-string handling for byte-stream backends
// (serial lines and sockets), which have no EOI line of their own.
//
// With terminateOnEOS set, a read collects bytes until the EOS character has
// been received or maxLen bytes are collected; bytes following the EOS
// character stay buffered for the next read. Otherwise a read waits up to
// the transport timeout for the first burst, then keeps collecting until
// maxLen bytes arrived or the line stayed quiet for idle.
type streamReader struct {
	r         *bufio.Reader
	eos       byte
	termOnEOS bool
	idle      time.Duration

	// idleGap switches the device between the idle gap (on) and the
	// transport timeout (off) for the next read.
	idleGap func(on bool) error
	// isIdle reports whether a read error means the idle gap expired.
	isIdle func(err error) bool
}

func newStreamReader(r *bufio.Reader, idleGap func(on bool) error, isIdle func(err error) bool) *streamReader {
	return &streamReader{
		r:       r,
		eos:     '\n',
		idle:    DefaultReadIdle,
		idleGap: idleGap,
		isIdle:  isIdle,
	}
}

func (s *streamReader) read(maxLen int) ([]byte, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("transport: invalid read length %d", maxLen)
	}

	if !s.termOnEOS {
		return s.readRaw(maxLen)
	}

	buf := make([]byte, 0, min(maxLen, 4096))
	for len(buf) < maxLen {
		c, err := s.r.ReadByte()
		if err != nil {
			return buf, err
		}
		buf = append(buf, c)
		if c == s.eos {
			break
		}
	}

	return buf, nil
}

func (s *streamReader) readRaw(maxLen int) (buf []byte, err error) {
	buf = make([]byte, maxLen)
	n, err := s.r.Read(buf)
	if n == 0 {
		return nil, err
	}

	defer func() {
		if gerr := s.idleGap(false); gerr != nil && err == nil {
			err = gerr
		}
	}()

	for n < len(buf) {
		if err := s.idleGap(true); err != nil {
			return buf[:n], err
		}

		m, err := s.r.Read(buf[n:])
		n += m
		if err != nil {
			if s.isIdle(err) {
				break
			}

			return buf[:n], err
		}
		if m == 0 {
			break
		}
	}

	return buf[:n], nil
}

// discard drops any buffered input.
func (s *streamReader) discard() {
	s.r.Discard(s.r.Buffered()) //nolint:errcheck // discarding only buffered bytes cannot fail
}
