package session

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-instr/transport"
)

var (
	// ErrAddress indicates a malformed or unrecognised address string.
	ErrAddress = errors.New("session: invalid address")

	// ErrClosed indicates an operation on a closed session.
	ErrClosed = transport.ErrClosed
)

// FatalError reports a Fatal verdict of the status interpreter. It replaces
// the result of the I/O primitive that triggered the poll.
type FatalError struct {
	// Code is the code returned by the interpreter.
	Code int
	// Tag identifies the primitive whose status poll failed.
	Tag string
	// Status is the status byte the verdict was given for.
	Status byte
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("session: fatal status 0x%02X after %s (code %d)", e.Status, e.Tag, e.Code)
}

// IsFatal checks whether err is a FatalError and returns it.
func IsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}

	return nil, false
}
