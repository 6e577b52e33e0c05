package session

import (
	"io"
	"time"

	"github.com/arloliu/go-instr/logger"
	"github.com/arloliu/go-instr/transport"
)

type statusReply struct {
	stb  byte
	more bool
}

// fakeTransport records primitives and replays scripted reads and status bytes.
type fakeTransport struct {
	kind transport.Kind

	ops      []string
	written  []byte
	reads    [][]byte
	readErr  error
	writeErr error

	status  []statusReply
	pollErr error
	polls   int

	timeout   time.Duration
	eos       byte
	termOnEOS bool
	assertEnd bool
	closed    int
}

var _ transport.Transport = (*fakeTransport)(nil)

func newFakeTransport(kind transport.Kind) *fakeTransport {
	return &fakeTransport{kind: kind}
}

func (f *fakeTransport) Kind() transport.Kind { return f.kind }

func (f *fakeTransport) Write(buf []byte) (int, error) {
	f.ops = append(f.ops, "write")
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, buf...)

	return len(buf), nil
}

func (f *fakeTransport) Read(maxLen int) ([]byte, error) {
	f.ops = append(f.ops, "read")
	if f.readErr != nil {
		return nil, f.readErr
	}
	if len(f.reads) == 0 {
		return nil, transport.ErrIoTimeout
	}
	buf := f.reads[0]
	f.reads = f.reads[1:]

	return buf[:min(len(buf), maxLen)], nil
}

func (f *fakeTransport) ReadStatusByte() (byte, bool, error) {
	f.ops = append(f.ops, "stb")
	f.polls++
	if f.pollErr != nil {
		return 0, false, f.pollErr
	}
	if len(f.status) == 0 {
		return 0, false, nil
	}
	r := f.status[0]
	f.status = f.status[1:]

	return r.stb, r.more, nil
}

func (f *fakeTransport) Clear() error {
	f.ops = append(f.ops, "clear")
	return nil
}

func (f *fakeTransport) Trigger() error {
	f.ops = append(f.ops, "trigger")
	return nil
}

func (f *fakeTransport) Local() error {
	f.ops = append(f.ops, "local")
	return nil
}

func (f *fakeTransport) SetTimeout(d time.Duration) error {
	f.timeout = d
	return nil
}

func (f *fakeTransport) SetEOS(eos byte, terminateOnEOS bool) error {
	f.eos = eos
	f.termOnEOS = terminateOnEOS

	return nil
}

func (f *fakeTransport) SetAssertEnd(enabled bool) error {
	f.assertEnd = enabled
	return nil
}

func (f *fakeTransport) Close() error {
	f.ops = append(f.ops, "close")
	f.closed++

	return nil
}

// fakeVXITransport adds the optional capabilities.
type fakeVXITransport struct {
	*fakeTransport
	lockTimeout time.Duration
	aborts      int
}

func (f *fakeVXITransport) Lock(timeout time.Duration) error {
	f.ops = append(f.ops, "lock")
	f.lockTimeout = timeout

	return nil
}

func (f *fakeVXITransport) Unlock() error {
	f.ops = append(f.ops, "unlock")
	return nil
}

func (f *fakeVXITransport) Remote() error {
	f.ops = append(f.ops, "remote")
	return nil
}

func (f *fakeVXITransport) Abort() error {
	f.aborts++
	return nil
}

// sleepRecorder replaces time.Sleep.
type sleepRecorder struct {
	sleeps []time.Duration
}

func (r *sleepRecorder) option() Option {
	return optFunc(func(cfg *Config) error {
		cfg.sleep = func(d time.Duration) { r.sleeps = append(r.sleeps, d) }
		return nil
	})
}

func quietLogger() logger.Logger {
	return logger.NewSlogWriter(io.Discard, logger.DebugLevel, false)
}
