// Package session is the uniform instrument session API.
//
// A Session wraps exactly one transport (VXI-11, native GPIB, serial line or
// raw socket) chosen from an address string:
//
//	192.0.2.5               VXI-11, device inst0
//	192.0.2.5:gpib0,22      VXI-11, device "gpib0,22" behind a gateway
//	192.0.2.5:5025          raw TCP socket
//	/dev/ttyS0:9600,8n1     serial line
//	22  or  0:22,5          native GPIB (board 0, pad 22, optional sad)
//
// After every I/O primitive (write, read, query, clear, local, trigger) the
// session reads the instrument's status byte and hands it to the installed
// Interpreter, whose Verdict decides whether to go on, poll again after a
// linear backoff, or give up. A Fatal verdict closes the session and
// replaces the result of the primitive with a *FatalError.
//
// Interpreters commonly query the instrument themselves, e.g. to read an
// error register. Such nested I/O does not trigger another status poll.
//
// A Session is not safe for concurrent use, except for Abort.
package session
