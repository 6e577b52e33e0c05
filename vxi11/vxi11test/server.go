// Package vxi11test provides a VXI-11 instrument emulator for tests of code
// built on the vxi11 and session packages.
//
// The emulator speaks the core channel protocol on a loopback port. Commands
// written with END are passed to a Responder; its answer is queued for the
// following reads.
//
//	srv, _ := vxi11test.NewServer(func(cmd []byte) []byte { return []byte("ACME,1,2,3\n") })
//	defer srv.Close()
//	s, _ := session.Open(srv.Host(), session.WithVXI11Options(vxi11.WithCorePort(srv.Port())))
package vxi11test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Responder returns the response to a complete command, or nil for none.
type Responder func(cmd []byte) []byte

// Server is a VXI-11 instrument emulator.
type Server struct {
	ln      net.Listener
	respond Responder
	wg      sync.WaitGroup

	mu          sync.Mutex
	conns       []net.Conn
	maxRecvSize uint32
	stb         byte
	input       []byte
	output      []byte
	commands    []string
	clears      int
	triggers    int
	locked      bool
}

// NewServer starts an emulator on 127.0.0.1.
func NewServer(respond Responder) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:          ln,
		respond:     respond,
		maxRecvSize: 4096,
	}
	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Host returns the emulator's host.
func (s *Server) Host() string { return "127.0.0.1" }

// Port returns the core channel port.
func (s *Server) Port() int { return s.ln.Addr().(*net.TCPAddr).Port }

// SetStatusByte sets the status byte returned by device_readstb.
func (s *Server) SetStatusByte(stb byte) {
	s.mu.Lock()
	s.stb = stb
	s.mu.Unlock()
}

// SetMaxRecvSize sets the maximum receive size announced by create_link.
func (s *Server) SetMaxRecvSize(n uint32) {
	s.mu.Lock()
	s.maxRecvSize = n
	s.mu.Unlock()
}

// Commands returns the complete commands received so far.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.commands...)
}

// Clears returns the number of device clears received.
func (s *Server) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clears
}

// Triggers returns the number of triggers received.
func (s *Server) Triggers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.triggers
}

// Close stops the emulator and drops all connections.
func (s *Server) Close() error {
	err := s.ln.Close()

	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()

	return err
}

func (s *Server) serve() {
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

func (s *Server) serveConn(conn net.Conn) {
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

		var reply bytes.Buffer
		_, _ = xdr.Marshal(&reply, &replyHeader{Xid: hdr.Xid, MsgType: 1})
		if hdr.Program != coreProgram {
			_, _ = xdr.Marshal(&reply, &acceptedReply{AcceptStat: acceptProgUnavail})
		} else if result := s.dispatch(hdr.Procedure, r); result == nil {
			_, _ = xdr.Marshal(&reply, &acceptedReply{AcceptStat: acceptProcUnavail})
		} else {
			_, _ = xdr.Marshal(&reply, &acceptedReply{})
			_, _ = xdr.Marshal(&reply, result)
		}

		if err := writeRecord(conn, reply.Bytes()); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(proc uint32, args io.Reader) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch proc {
	case procCreateLink:
		var p createLinkParms
		_, _ = xdr.Unmarshal(args, &p)
		return &createLinkResp{LinkID: 1, MaxRecvSize: s.maxRecvSize}

	case procDeviceWrite:
		var p deviceWriteParms
		_, _ = xdr.Unmarshal(args, &p)
		s.input = append(s.input, p.Data...)
		if p.Flags&flagEnd != 0 {
			s.complete()
		}
		return &deviceWriteResp{Size: uint32(len(p.Data))} //nolint:gosec // bounded by maxRecvSize

	case procDeviceRead:
		var p deviceReadParms
		_, _ = xdr.Unmarshal(args, &p)
		if len(s.output) == 0 {
			return &deviceReadResp{Error: errIOTimeout}
		}
		n := min(int(p.RequestSize), len(s.output))
		data := s.output[:n]
		s.output = s.output[n:]

		var reason int32
		switch {
		case len(s.output) == 0:
			reason = reasonEnd
		case n == int(p.RequestSize):
			reason = reasonReqCnt
		}
		return &deviceReadResp{Reason: reason, Data: data}

	case procDeviceReadStb:
		var p deviceGenericParms
		_, _ = xdr.Unmarshal(args, &p)
		return &deviceReadStbResp{Stb: uint32(s.stb)}

	case procDeviceClear:
		var p deviceGenericParms
		_, _ = xdr.Unmarshal(args, &p)
		s.clears++
		s.input, s.output = nil, nil
		return &deviceError{}

	case procDeviceTrigger:
		var p deviceGenericParms
		_, _ = xdr.Unmarshal(args, &p)
		s.triggers++
		return &deviceError{}

	case procDeviceRemote, procDeviceLocal:
		var p deviceGenericParms
		_, _ = xdr.Unmarshal(args, &p)
		return &deviceError{}

	case procDeviceLock:
		var p deviceLockParms
		_, _ = xdr.Unmarshal(args, &p)
		if s.locked {
			return &deviceError{Error: errLockedByOther}
		}
		s.locked = true
		return &deviceError{}

	case procDeviceUnlock:
		var l deviceLink
		_, _ = xdr.Unmarshal(args, &l)
		if !s.locked {
			return &deviceError{Error: errNoLockHeld}
		}
		s.locked = false
		return &deviceError{}

	case procDestroyLink:
		var l deviceLink
		_, _ = xdr.Unmarshal(args, &l)
		s.locked = false
		return &deviceError{}
	}

	return nil
}

// complete hands the buffered command to the responder.
func (s *Server) complete() {
	cmd := s.input
	s.input = nil
	s.commands = append(s.commands, string(cmd))

	if s.respond != nil {
		s.output = append(s.output, s.respond(cmd)...)
	}
}

func writeRecord(w io.Writer, msg []byte) error {
	framed := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(framed, uint32(len(msg))|0x80000000) //nolint:gosec // replies are small
	copy(framed[4:], msg)
	_, err := w.Write(framed)

	return err
}

func readRecord(r io.Reader) ([]byte, error) {
	var record []byte
	var hdr [4]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		mark := binary.BigEndian.Uint32(hdr[:])
		n := int(mark & 0x7FFFFFFF)
		if n > 1<<24 {
			return nil, errors.New("vxi11test: fragment too large")
		}
		start := len(record)
		record = append(record, make([]byte, n)...)
		if _, err := io.ReadFull(r, record[start:]); err != nil {
			return nil, err
		}
		if mark&0x80000000 != 0 {
			return record, nil
		}
	}
}
