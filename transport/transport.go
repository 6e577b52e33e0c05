package transport

import (
	"time"
)

// Kind identifies a transport backend.
type Kind uint8

const (
	KindVXI11 Kind = iota + 1
	KindGPIB
	KindSerial
	KindSocket
)

func (k Kind) String() string {
	switch k {
	case KindVXI11:
		return "vxi11"
	case KindGPIB:
		return "gpib"
	case KindSerial:
		return "serial"
	case KindSocket:
		return "socket"
	default:
		return "unknown"
	}
}

// Transport is the set of primitives a session needs from a backend.
//
// Implementations are not goroutine-safe unless stated otherwise.
type Transport interface {
	// Kind returns the backend kind.
	Kind() Kind

	// Write sends buf to the instrument and returns the number of bytes accepted.
	Write(buf []byte) (int, error)

	// Read returns up to maxLen bytes, stopping early on an end indication
	// (EOI, END reason or, when enabled, the end-of-string character).
	Read(maxLen int) ([]byte, error)

	// ReadStatusByte serial-polls the instrument. more reports that further
	// status bytes are pending, e.g. from an autopoll stack.
	ReadStatusByte() (stb byte, more bool, err error)

	// Clear sends a selected device clear.
	Clear() error

	// Trigger sends a group execute trigger.
	Trigger() error

	// Local returns the instrument to local (front panel) control.
	Local() error

	// SetTimeout sets the I/O timeout used for subsequent operations.
	SetTimeout(d time.Duration) error

	// SetEOS sets the end-of-string character and whether reads terminate on it.
	SetEOS(eos byte, terminateOnEOS bool) error

	// SetAssertEnd controls whether END/EOI is asserted with the last byte written.
	SetAssertEnd(enabled bool) error

	// Close releases the backend. Close is idempotent.
	Close() error
}

// Locker is implemented by backends supporting an exclusive remote device lock.
type Locker interface {
	Lock(timeout time.Duration) error
	Unlock() error
}

// Remoter is implemented by backends able to place the instrument in remote state.
type Remoter interface {
	Remote() error
}

// Aborter is implemented by backends able to abort an in-flight remote operation.
// Abort may be called from a goroutine other than the one blocked in I/O.
type Aborter interface {
	Abort() error
}
