package vxi11

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-instr/transport"
)

// ErrBadResponse indicates a reply that violates the VXI-11 protocol, such as a
// maximum receive size below 1024 bytes.
var ErrBadResponse = errors.New("vxi11: bad response")

// Device error codes (VXI-11 rev 1.0, table B.2).
const (
	ErrCodeNone               int32 = 0
	ErrCodeSyntax             int32 = 1
	ErrCodeNotAccessible      int32 = 3
	ErrCodeInvalidLinkID      int32 = 4
	ErrCodeParameter          int32 = 5
	ErrCodeChannelNotEstab    int32 = 6
	ErrCodeNotSupported       int32 = 8
	ErrCodeOutOfResources     int32 = 9
	ErrCodeLockedByOther      int32 = 11
	ErrCodeNoLockHeld         int32 = 12
	ErrCodeIOTimeout          int32 = 15
	ErrCodeIOError            int32 = 17
	ErrCodeInvalidAddress     int32 = 21
	ErrCodeAbort              int32 = 23
	ErrCodeChannelAlreadyOpen int32 = 29
)

var errCodeNames = map[int32]string{
	ErrCodeSyntax:             "syntax error",
	ErrCodeNotAccessible:      "device not accessible",
	ErrCodeInvalidLinkID:      "invalid link identifier",
	ErrCodeParameter:          "parameter error",
	ErrCodeChannelNotEstab:    "channel not established",
	ErrCodeNotSupported:       "operation not supported",
	ErrCodeOutOfResources:     "out of resources",
	ErrCodeLockedByOther:      "device locked by another link",
	ErrCodeNoLockHeld:         "no lock held by this link",
	ErrCodeIOTimeout:          "I/O timeout",
	ErrCodeIOError:            "I/O error",
	ErrCodeInvalidAddress:     "invalid address",
	ErrCodeAbort:              "abort",
	ErrCodeChannelAlreadyOpen: "channel already established",
}

// ProtocolError is a non-zero error code reported by the remote device.
type ProtocolError struct {
	Op   string
	Code int32
}

func (e *ProtocolError) Error() string {
	desc := errCodeNames[e.Code]
	if desc == "" {
		desc = "unknown error"
	}

	return fmt.Sprintf("vxi11: %s: error %d (%s)", e.Op, e.Code, desc)
}

// Is lets callers match the remote I/O timeout and abort codes against the
// transport-level sentinels.
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case transport.ErrIoTimeout:
		return e.Code == ErrCodeIOTimeout
	case transport.ErrAborted:
		return e.Code == ErrCodeAbort
	default:
		return false
	}
}

func newProtocolError(op string, code int32) *ProtocolError {
	return &ProtocolError{Op: op, Code: code}
}

// IsProtocolError checks whether err is a ProtocolError and returns it.
func IsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}

	return nil, false
}
