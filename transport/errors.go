package transport

import "errors"

var (
	// ErrChannel indicates the connection or RPC channel to the instrument
	// could not be established or broke down.
	ErrChannel = errors.New("transport: channel error")

	// ErrIoTimeout indicates the I/O timeout budget was exhausted.
	ErrIoTimeout = errors.New("transport: I/O timeout")

	// ErrClosed indicates an operation on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrNotSupported indicates the backend has no equivalent of the primitive.
	ErrNotSupported = errors.New("transport: operation not supported")

	// ErrAborted indicates an in-flight operation was aborted.
	ErrAborted = errors.New("transport: aborted")
)
