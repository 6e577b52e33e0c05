package vxi11

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"sync/atomic"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/arloliu/go-instr/logger"
	"github.com/arloliu/go-instr/transport"
)

// ONC RPC constants (RFC 5531).
const (
	rpcVersion = 2

	msgCall  = 0
	msgReply = 1

	replyAccepted = 0
	replyDenied   = 1

	acceptSuccess      = 0
	acceptProgUnavail  = 1
	acceptProgMismatch = 2
	acceptProcUnavail  = 3
	acceptGarbageArgs  = 4
	acceptSystemErr    = 5

	rejectRPCMismatch = 0
	rejectAuthError   = 1

	authNull = 0

	// lastFragmentBit marks the final fragment of a record (RFC 5531 §11).
	lastFragmentBit = 0x80000000
	fragmentLenMask = 0x7FFFFFFF

	// maxRecordSize bounds a reassembled reply; large reads are chunked by
	// the device well below this.
	maxRecordSize = 64 * 1024 * 1024
)

var (
	errStaleReply     = errors.New("vxi11: stale rpc reply")
	errRecordTooLarge = errors.New("vxi11: rpc record too large")
)

type callHeader struct {
	Xid        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	CredFlavor uint32
	CredBody   []byte
	VerfFlavor uint32
	VerfBody   []byte
}

type replyHeader struct {
	Xid       uint32
	MsgType   uint32
	ReplyStat uint32
}

type acceptedReply struct {
	VerfFlavor uint32
	VerfBody   []byte
	AcceptStat uint32
}

type versionRange struct {
	Low  uint32
	High uint32
}

// rpcClient is a synchronous ONC RPC client for one program over TCP.
//
// It is not goroutine-safe; the core and abort channels each own one.
type rpcClient struct {
	conn    net.Conn
	records *recordReader
	program uint32
	version uint32
	xid     atomic.Uint32
	logger  logger.Logger

	// broken is set once the byte stream can no longer be framed.
	broken error
}

func dialRPC(addr string, program, version uint32, timeout time.Duration, l logger.Logger) (*rpcClient, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", transport.ErrChannel, addr, err)
	}

	return newRPCClient(conn, program, version, l), nil
}

func newRPCClient(conn net.Conn, program, version uint32, l logger.Logger) *rpcClient {
	c := &rpcClient{
		conn:    conn,
		records: &recordReader{r: conn},
		program: program,
		version: version,
		logger:  l,
	}
	// Any starting value works; time-based keeps xids distinct across reconnects.
	c.xid.Store(uint32(time.Now().UnixNano())) //nolint:gosec // truncation intended

	return c
}

// call invokes proc with args and decodes the result into result.
// timeout bounds the whole round trip on the client side.
func (c *rpcClient) call(proc uint32, args any, result any, timeout time.Duration) error {
	if c.broken != nil {
		return fmt.Errorf("%w: proc %d: %w", transport.ErrChannel, proc, c.broken)
	}

	xid := c.xid.Add(1)

	msg, err := buildCall(xid, c.program, c.version, proc, args)
	if err != nil {
		return fmt.Errorf("%w: encode call %d: %w", transport.ErrChannel, proc, err)
	}

	if err := c.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("%w: set deadline: %w", transport.ErrChannel, err)
	}

	if n, err := c.conn.Write(frameRecord(msg)); err != nil {
		if n > 0 {
			c.broken = fmt.Errorf("call record cut short after %d bytes", n)
		}
		return c.ioError("send call", proc, err)
	}

	for {
		// A reply cut short by the deadline is resumed here and, carrying an
		// old xid, dropped as stale.
		record, err := c.records.read()
		if errors.Is(err, errRecordTooLarge) {
			c.broken = err
		}
		if err != nil {
			return c.ioError("receive reply", proc, err)
		}

		body, err := parseReply(record, xid)
		if errors.Is(err, errStaleReply) {
			// Reply to an earlier call that timed out on our side.
			c.logger.Debug("vxi11: discarding stale rpc reply", "proc", proc)
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: proc %d: %w", transport.ErrChannel, proc, err)
		}

		if result == nil {
			return nil
		}
		if _, err := xdr.Unmarshal(body, result); err != nil {
			return fmt.Errorf("%w: decode reply to proc %d: %w", transport.ErrChannel, proc, err)
		}

		return nil
	}
}

func (c *rpcClient) ioError(what string, proc uint32, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %w: %s for proc %d", transport.ErrChannel, transport.ErrIoTimeout, what, proc)
	}

	return fmt.Errorf("%w: %s for proc %d: %w", transport.ErrChannel, what, proc, err)
}

func (c *rpcClient) close() error {
	return c.conn.Close()
}

func buildCall(xid, program, version, proc uint32, args any) ([]byte, error) {
	var buf bytes.Buffer

	hdr := callHeader{
		Xid:        xid,
		MsgType:    msgCall,
		RPCVersion: rpcVersion,
		Program:    program,
		Version:    version,
		Procedure:  proc,
		CredFlavor: authNull,
		VerfFlavor: authNull,
	}
	if _, err := xdr.Marshal(&buf, &hdr); err != nil {
		return nil, err
	}

	if args != nil {
		if _, err := xdr.Marshal(&buf, args); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// parseReply validates the reply header and returns a reader positioned at the results.
func parseReply(record []byte, xid uint32) (io.Reader, error) {
	r := bytes.NewReader(record)

	var hdr replyHeader
	if _, err := xdr.Unmarshal(r, &hdr); err != nil {
		return nil, fmt.Errorf("decode reply header: %w", err)
	}
	if hdr.MsgType != msgReply {
		return nil, fmt.Errorf("unexpected message type %d", hdr.MsgType)
	}
	if hdr.Xid != xid {
		return nil, errStaleReply
	}

	switch hdr.ReplyStat {
	case replyAccepted:
		var acc acceptedReply
		if _, err := xdr.Unmarshal(r, &acc); err != nil {
			return nil, fmt.Errorf("decode accepted reply: %w", err)
		}

		switch acc.AcceptStat {
		case acceptSuccess:
			return r, nil
		case acceptProgMismatch:
			var vr versionRange
			_, _ = xdr.Unmarshal(r, &vr)
			return nil, fmt.Errorf("program version mismatch, remote supports %d-%d", vr.Low, vr.High)
		case acceptProgUnavail:
			return nil, errors.New("program unavailable")
		case acceptProcUnavail:
			return nil, errors.New("procedure unavailable")
		case acceptGarbageArgs:
			return nil, errors.New("remote could not decode arguments")
		case acceptSystemErr:
			return nil, errors.New("remote system error")
		default:
			return nil, fmt.Errorf("unknown accept status %d", acc.AcceptStat)
		}

	case replyDenied:
		var rejectStat uint32
		if _, err := xdr.Unmarshal(r, &rejectStat); err != nil {
			return nil, fmt.Errorf("decode denied reply: %w", err)
		}
		if rejectStat == rejectRPCMismatch {
			var vr versionRange
			_, _ = xdr.Unmarshal(r, &vr)
			return nil, fmt.Errorf("rpc version mismatch, remote supports %d-%d", vr.Low, vr.High)
		}
		if rejectStat == rejectAuthError {
			return nil, errors.New("authentication rejected")
		}

		return nil, fmt.Errorf("call denied with status %d", rejectStat)

	default:
		return nil, fmt.Errorf("unknown reply status %d", hdr.ReplyStat)
	}
}

// frameRecord prefixes msg with the marker of a single, last fragment.
func frameRecord(msg []byte) []byte {
	framed := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(framed[0:4], uint32(len(msg))|lastFragmentBit) //nolint:gosec // call messages are small
	copy(framed[4:], msg)

	return framed
}

// writeRecord sends msg as a single-fragment record.
func writeRecord(w io.Writer, msg []byte) error {
	_, err := w.Write(frameRecord(msg))

	return err
}

// readRecord reads fragments until the last one and returns the reassembled record.
func readRecord(r io.Reader) ([]byte, error) {
	return (&recordReader{r: r}).read()
}

// recordReader reassembles record-marked fragments. Its position survives a
// failed read, so the next read continues the same record instead of taking
// body bytes for a marker.
type recordReader struct {
	r io.Reader

	hdr    [4]byte
	hdrN   int
	inFrag bool
	fragN  int
	last   bool
	record []byte
}

func (rr *recordReader) read() ([]byte, error) {
	for {
		if !rr.inFrag {
			for rr.hdrN < len(rr.hdr) {
				n, err := rr.r.Read(rr.hdr[rr.hdrN:])
				rr.hdrN += n
				if err != nil && rr.hdrN < len(rr.hdr) {
					return nil, err
				}
			}
			rr.hdrN = 0

			mark := binary.BigEndian.Uint32(rr.hdr[:])
			rr.fragN = int(mark & fragmentLenMask)
			rr.last = mark&lastFragmentBit != 0
			if len(rr.record)+rr.fragN > maxRecordSize {
				return nil, fmt.Errorf("%w: more than %d bytes", errRecordTooLarge, maxRecordSize)
			}
			rr.record = slices.Grow(rr.record, rr.fragN)
			rr.inFrag = true
		}

		for rr.fragN > 0 {
			start := len(rr.record)
			n, err := rr.r.Read(rr.record[start : start+rr.fragN])
			rr.record = rr.record[:start+n]
			rr.fragN -= n
			if err != nil && rr.fragN > 0 {
				return nil, err
			}
		}
		rr.inFrag = false

		if rr.last {
			record := rr.record
			rr.record = nil

			return record, nil
		}
	}
}
