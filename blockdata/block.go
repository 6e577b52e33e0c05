package blockdata

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrFormat indicates malformed block data framing.
var ErrFormat = errors.New("blockdata: format error")

// Mode selects which block data forms Decode accepts.
type Mode uint8

const (
	// Either accepts definite and indefinite length forms.
	Either Mode = iota
	// DefiniteOnly accepts only the '#<N><len>' form.
	DefiniteOnly
	// IndefiniteOnly accepts only the '#0 ... \n' form.
	IndefiniteOnly
)

func (m Mode) String() string {
	switch m {
	case Either:
		return "either"
	case DefiniteOnly:
		return "definite"
	case IndefiniteOnly:
		return "indefinite"
	default:
		return "unknown"
	}
}

// indefiniteOverhead is '#', '0' and the terminating newline.
const indefiniteOverhead = 3

// maxLengthDigits is the largest N a definite header can carry.
const maxLengthDigits = 9

// Decode parses buf as 488.2 block data and returns the payload and the number
// of bytes consumed from buf.
//
// For the indefinite form the whole buffer is consumed and must end in '\n'.
// For the definite form consumed is 2 + N + L, and trailing bytes beyond that
// (usually the response terminator) are left for the caller.
func Decode(buf []byte, mode Mode) ([]byte, int, error) {
	if len(buf) < indefiniteOverhead {
		return nil, 0, fmt.Errorf("%w: %d bytes is too short for a block header", ErrFormat, len(buf))
	}
	if buf[0] != '#' {
		return nil, 0, fmt.Errorf("%w: leading byte 0x%02X is not '#'", ErrFormat, buf[0])
	}

	switch d := buf[1]; {
	case d == '0':
		if mode == DefiniteOnly {
			return nil, 0, fmt.Errorf("%w: indefinite length block not permitted", ErrFormat)
		}
		return decodeIndefinite(buf)
	case d >= '1' && d <= '9':
		if mode == IndefiniteOnly {
			return nil, 0, fmt.Errorf("%w: definite length block not permitted", ErrFormat)
		}
		return decodeDefinite(buf, int(d-'0'))
	default:
		return nil, 0, fmt.Errorf("%w: invalid length digit 0x%02X", ErrFormat, d)
	}
}

func decodeIndefinite(buf []byte) ([]byte, int, error) {
	if buf[len(buf)-1] != '\n' {
		return nil, 0, fmt.Errorf("%w: indefinite length block is not newline terminated", ErrFormat)
	}

	return buf[2 : len(buf)-1], len(buf), nil
}

func decodeDefinite(buf []byte, llen int) ([]byte, int, error) {
	if 2+llen > len(buf) {
		return nil, 0, fmt.Errorf("%w: length field of %d digits exceeds %d available bytes",
			ErrFormat, llen, len(buf)-2)
	}

	field := buf[2 : 2+llen]
	for _, c := range field {
		if c < '0' || c > '9' {
			return nil, 0, fmt.Errorf("%w: length field %q is not decimal", ErrFormat, field)
		}
	}

	declared, err := strconv.ParseUint(string(field), 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: length field %q: %w", ErrFormat, field, err)
	}

	start := uint64(2 + llen)
	if declared > uint64(len(buf))-start {
		return nil, 0, fmt.Errorf("%w: declared length %d exceeds %d available bytes",
			ErrFormat, declared, uint64(len(buf))-start)
	}

	end := int(start + declared)

	return buf[start:end], end, nil
}

// EncodeDefinite frames payload in the definite length form.
func EncodeDefinite(payload []byte) ([]byte, error) {
	digits := strconv.Itoa(len(payload))
	if len(digits) > maxLengthDigits {
		return nil, fmt.Errorf("%w: payload of %d bytes needs more than %d length digits",
			ErrFormat, len(payload), maxLengthDigits)
	}

	out := make([]byte, 0, 2+len(digits)+len(payload))
	out = append(out, '#', byte('0'+len(digits)))
	out = append(out, digits...)
	out = append(out, payload...)

	return out, nil
}

// EncodeIndefinite frames payload in the indefinite length form.
func EncodeIndefinite(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+indefiniteOverhead)
	out = append(out, '#', '0')
	out = append(out, payload...)

	return append(out, '\n')
}
