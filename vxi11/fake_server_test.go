package vxi11

import (
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-instr/logger"
)

// rpcHandler decodes the arguments of one call from args and returns the
// result to encode, or nil to send no reply at all.
type rpcHandler func(program, proc uint32, args io.Reader) any

// fakeRPCServer is an in-process ONC RPC server on a loopback listener.
type fakeRPCServer struct {
	ln      net.Listener
	handler rpcHandler
	wg      sync.WaitGroup

	mu    sync.Mutex
	conns []net.Conn
}

func newFakeRPCServer(t *testing.T, handler rpcHandler) *fakeRPCServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeRPCServer{ln: ln, handler: handler}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.close)

	return s
}

func (s *fakeRPCServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeRPCServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *fakeRPCServer) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	for {
		record, err := readRecord(conn)
		if err != nil {
			return
		}

		r := bytes.NewReader(record)
		var hdr callHeader
		if _, err := xdr.Unmarshal(r, &hdr); err != nil {
			return
		}

		result := s.handler(hdr.Program, hdr.Procedure, r)
		if result == nil {
			continue
		}

		var buf bytes.Buffer
		_, _ = xdr.Marshal(&buf, &replyHeader{Xid: hdr.Xid, MsgType: msgReply, ReplyStat: replyAccepted})
		_, _ = xdr.Marshal(&buf, &acceptedReply{AcceptStat: acceptSuccess})
		_, _ = xdr.Marshal(&buf, result)
		if err := writeRecord(conn, buf.Bytes()); err != nil {
			return
		}
	}
}

func (s *fakeRPCServer) close() {
	_ = s.ln.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// fakeDevice emulates a VXI-11 instrument, including the portmapper.
type fakeDevice struct {
	mu sync.Mutex

	linkID      int32
	maxRecvSize uint32
	abortPort   uint32
	linkError   int32
	corePort    uint32

	writes    []deviceWriteParms
	written   []byte
	writeResp func(p deviceWriteParms) deviceWriteResp
	delay     time.Duration

	reads     []deviceReadParms
	readResps []deviceReadResp

	stb       uint32
	procError map[uint32]int32
	calls     []uint32
	docmds    []deviceDocmdParms
	docmdOut  []byte
	locks     []deviceLockParms
	aborts    int
	getPorts  int
	destroyed int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		linkID:      7,
		maxRecvSize: 1024,
		procError:   make(map[uint32]int32),
	}
}

func (d *fakeDevice) handle(program, proc uint32, args io.Reader) any {
	d.mu.Lock()
	delay := d.delay
	d.mu.Unlock()
	if delay > 0 && (proc == procDeviceWrite || proc == procDeviceRead) && program == coreProgram {
		time.Sleep(delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch program {
	case portmapProgram:
		var m portmapMapping
		_, _ = xdr.Unmarshal(args, &m)
		d.getPorts++
		if m.Program != coreProgram || m.Protocol != ipProtoTCP {
			return &portmapPort{}
		}
		return &portmapPort{Port: d.corePort}

	case abortProgram:
		var l deviceLink
		_, _ = xdr.Unmarshal(args, &l)
		d.aborts++
		return &deviceError{Error: d.procError[procDeviceAbort]}
	}

	d.calls = append(d.calls, proc)
	errCode := d.procError[proc]

	switch proc {
	case procCreateLink:
		var p createLinkParms
		_, _ = xdr.Unmarshal(args, &p)
		return &createLinkResp{
			Error:       d.linkError,
			LinkID:      d.linkID,
			AbortPort:   d.abortPort,
			MaxRecvSize: d.maxRecvSize,
		}

	case procDeviceWrite:
		var p deviceWriteParms
		_, _ = xdr.Unmarshal(args, &p)
		d.writes = append(d.writes, p)
		if d.writeResp != nil {
			return ptr(d.writeResp(p))
		}
		d.written = append(d.written, p.Data...)
		return &deviceWriteResp{Error: errCode, Size: uint32(len(p.Data))}

	case procDeviceRead:
		var p deviceReadParms
		_, _ = xdr.Unmarshal(args, &p)
		d.reads = append(d.reads, p)
		if errCode != 0 {
			return &deviceReadResp{Error: errCode}
		}
		if len(d.readResps) == 0 {
			return &deviceReadResp{Data: []byte("x")}
		}
		resp := d.readResps[0]
		d.readResps = d.readResps[1:]
		return &resp

	case procDeviceReadStb:
		var p deviceGenericParms
		_, _ = xdr.Unmarshal(args, &p)
		return &deviceReadStbResp{Error: errCode, Stb: d.stb}

	case procDeviceTrigger, procDeviceClear, procDeviceRemote, procDeviceLocal:
		var p deviceGenericParms
		_, _ = xdr.Unmarshal(args, &p)
		return &deviceError{Error: errCode}

	case procDeviceLock:
		var p deviceLockParms
		_, _ = xdr.Unmarshal(args, &p)
		d.locks = append(d.locks, p)
		return &deviceError{Error: errCode}

	case procDeviceUnlock:
		var l deviceLink
		_, _ = xdr.Unmarshal(args, &l)
		return &deviceError{Error: errCode}

	case procDeviceDocmd:
		var p deviceDocmdParms
		_, _ = xdr.Unmarshal(args, &p)
		d.docmds = append(d.docmds, p)
		return &deviceDocmdResp{Error: errCode, DataOut: d.docmdOut}

	case procDestroyLink:
		var l deviceLink
		_, _ = xdr.Unmarshal(args, &l)
		d.destroyed++
		return &deviceError{Error: errCode}
	}

	return nil
}

func (d *fakeDevice) callCount(proc uint32) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, p := range d.calls {
		if p == proc {
			n++
		}
	}

	return n
}

func ptr[T any](v T) *T { return &v }

// startDevice serves dev on a loopback core port and returns a client
// linked to it.
func startDevice(t *testing.T, dev *fakeDevice, opts ...Option) (*Client, *fakeRPCServer) {
	t.Helper()

	srv := newFakeRPCServer(t, dev.handle)
	dev.corePort = uint32(srv.port()) //nolint:gosec // port fits

	opts = append([]Option{
		WithCorePort(srv.port()),
		WithLogger(logger.NewSlogWriter(io.Discard, logger.DebugLevel, false)),
	}, opts...)

	c, err := Open("127.0.0.1", "inst0", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, srv
}
