package transport

import (
	"net"
	"testing"
	"time"
)

// fakePort is an in-memory SerialPort. Each queued chunk is returned by one
// Read call; an empty queue behaves like a read timeout.
type fakePort struct {
	chunks       [][]byte
	written      []byte
	readTimeout  time.Duration
	inputResets  int
	outputResets int
	closed       bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	if n < len(p.chunks[0]) {
		p.chunks[0] = p.chunks[0][n:]
	} else {
		p.chunks = p.chunks[1:]
	}

	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.readTimeout = t
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.inputResets++
	p.chunks = nil
	return nil
}

func (p *fakePort) ResetOutputBuffer() error {
	p.outputResets++
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

// newPipeSocket returns a Socket on one end of net.Pipe and the remote end.
func newPipeSocket(t *testing.T) (*Socket, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	return NewSocket(local, nil), remote
}
