package vxi11

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/arloliu/go-instr/logger"
	"github.com/arloliu/go-instr/transport"
)

// DefaultDevice is the device name used when none is given.
const DefaultDevice = "inst0"

var defaultPortCache = NewPortCache()

// Link describes an established device link.
type Link struct {
	ID          int32
	MaxRecvSize uint32
	AbortPort   uint16
	Host        string
	Device      string
}

// Client is a VXI-11 core channel client bound to one device link.
//
// Client is not goroutine-safe, with the exception of Abort, which may be
// called while another goroutine is blocked in Write or Read.
type Client struct {
	cfg    *Config
	link   Link
	core   *rpcClient
	logger logger.Logger
	state  atomicLinkState

	abortMu sync.Mutex
	abort   *rpcClient
}

// Open creates a link to device on host.
//
// The core channel port is resolved through the portmapper unless a fixed
// port is configured with WithCorePort. Errors wrap transport.ErrChannel when
// the host cannot be reached, are a *ProtocolError when the device refuses the
// link, and wrap ErrBadResponse when the device announces a maximum receive
// size below MinMaxRecvSize.
func Open(host, device string, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if host == "" {
		return nil, errors.New("vxi11: empty host")
	}
	if device == "" {
		device = DefaultDevice
	}

	c := &Client{
		cfg:    cfg,
		logger: cfg.logger.With("host", host, "device", device),
	}

	core, err := c.dialCore(host)
	if err != nil {
		return nil, err
	}
	c.core = core

	if err := c.createLink(host, device); err != nil {
		_ = core.close()
		return nil, err
	}
	c.state.ToLinked()

	if cfg.abortChannel {
		if err := c.openAbortChannel(host); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	c.logger.Info("vxi11: link created",
		"link_id", c.link.ID,
		"max_recv_size", c.link.MaxRecvSize,
		"abort_port", c.link.AbortPort,
	)

	return c, nil
}

func (c *Client) dialCore(host string) (*rpcClient, error) {
	if c.cfg.corePort != 0 {
		addr := net.JoinHostPort(host, strconv.Itoa(c.cfg.corePort))
		return dialRPC(addr, coreProgram, coreVersion, c.cfg.dialTimeout, c.logger)
	}

	cache := c.cfg.portCache
	if cache == nil {
		cache = defaultPortCache
	}
	_, cached := cache.Get(host)

	port, err := cache.lookup(host, c.cfg.portmapperPort, c.cfg.dialTimeout, c.logger)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	rpc, err := dialRPC(addr, coreProgram, coreVersion, c.cfg.dialTimeout, c.logger)
	if err == nil || !cached {
		return rpc, err
	}

	// The instrument may have restarted its RPC server on another port.
	c.logger.Debug("vxi11: cached core port unreachable, asking portmapper again", "port", port)
	cache.Forget(host)

	port, err = cache.lookup(host, c.cfg.portmapperPort, c.cfg.dialTimeout, c.logger)
	if err != nil {
		return nil, err
	}
	addr = net.JoinHostPort(host, strconv.Itoa(int(port)))

	return dialRPC(addr, coreProgram, coreVersion, c.cfg.dialTimeout, c.logger)
}

func (c *Client) createLink(host, device string) error {
	parms := createLinkParms{
		ClientID:    c.cfg.clientID,
		LockDevice:  c.cfg.lockOnOpen,
		LockTimeout: millis(c.cfg.lockTimeout),
		Device:      device,
	}

	var resp createLinkResp
	if err := c.core.call(procCreateLink, &parms, &resp, c.rpcTimeout(c.cfg.ioTimeout)); err != nil {
		return err
	}
	if resp.Error != ErrCodeNone {
		return newProtocolError("create_link", resp.Error)
	}

	c.link = Link{
		ID:          resp.LinkID,
		MaxRecvSize: resp.MaxRecvSize,
		AbortPort:   uint16(resp.AbortPort), //nolint:gosec // port numbers fit
		Host:        host,
		Device:      device,
	}

	if resp.MaxRecvSize < MinMaxRecvSize {
		c.destroyLink()
		return fmt.Errorf("%w: max receive size %d below %d", ErrBadResponse, resp.MaxRecvSize, MinMaxRecvSize)
	}

	return nil
}

func (c *Client) openAbortChannel(host string) error {
	if c.link.AbortPort == 0 {
		return fmt.Errorf("%w: device announced no abort port", transport.ErrChannel)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(c.link.AbortPort)))
	rpc, err := dialRPC(addr, abortProgram, abortVersion, c.cfg.dialTimeout, c.logger)
	if err != nil {
		return err
	}

	c.abortMu.Lock()
	c.abort = rpc
	c.abortMu.Unlock()

	return nil
}

// Link returns the link description.
func (c *Client) Link() Link { return c.link }

// State returns the link state.
func (c *Client) State() LinkState { return c.state.Get() }

// Config returns the client configuration.
func (c *Client) Config() *Config { return c.cfg }

// SetIOTimeout sets the I/O timeout budget of subsequent operations.
func (c *Client) SetIOTimeout(d time.Duration) error {
	if err := checkTimeout("io timeout", d); err != nil {
		return err
	}
	c.cfg.ioTimeout = d

	return nil
}

// SetLockTimeout sets how long operations wait for a lock held by another link.
func (c *Client) SetLockTimeout(d time.Duration) error {
	if err := checkTimeout("lock timeout", d); err != nil {
		return err
	}
	c.cfg.lockTimeout = d

	return nil
}

// SetTermChar enables or disables termination of reads on c.
func (c *Client) SetTermChar(ch byte, enabled bool) {
	if enabled {
		c.cfg.termChar = int(ch)
	} else {
		c.cfg.termChar = -1
	}
}

// SetAssertEnd controls the END flag on the last chunk of a write.
func (c *Client) SetAssertEnd(enabled bool) {
	c.cfg.assertEnd = enabled
}

// Write sends buf in chunks of at most the link's maximum receive size.
//
// All chunks share one I/O timeout budget, reduced by the round trip time of
// each chunk. END is flagged on the final chunk only. When the budget runs out
// with bytes left, Write returns the count sent so far and an error wrapping
// transport.ErrIoTimeout.
func (c *Client) Write(buf []byte) (int, error) {
	if !c.state.IsLinked() {
		return 0, transport.ErrClosed
	}

	budget := c.cfg.ioTimeout
	maxChunk := int(c.link.MaxRecvSize)
	sent := 0

	for {
		end := min(sent+maxChunk, len(buf))
		chunk := buf[sent:end]
		last := end == len(buf)

		flags := c.lockFlags()
		if last && c.cfg.assertEnd {
			flags |= flagEnd
		}

		parms := deviceWriteParms{
			LinkID:      c.link.ID,
			IOTimeout:   millis(budget),
			LockTimeout: millis(c.cfg.lockTimeout),
			Flags:       flags,
			Data:        chunk,
		}

		var resp deviceWriteResp
		start := time.Now()
		err := c.core.call(procDeviceWrite, &parms, &resp, c.rpcTimeout(budget))
		budget -= time.Since(start)
		if err != nil {
			return sent, err
		}
		if resp.Error != ErrCodeNone {
			return sent, newProtocolError("device_write", resp.Error)
		}

		n := int(resp.Size)
		if n == 0 && len(chunk) == maxChunk && c.cfg.zeroSizeWriteQuirk {
			n = len(chunk)
		}
		sent += min(n, len(chunk))

		if sent >= len(buf) {
			return sent, nil
		}
		if budget <= 0 {
			return sent, fmt.Errorf("%w: write stopped after %d of %d bytes", transport.ErrIoTimeout, sent, len(buf))
		}
	}
}

// Read collects up to maxLen bytes with repeated device_read calls until the
// device reports END, the termination character (when set) is seen, or maxLen
// bytes arrived. The calls share one I/O timeout budget; running out of it
// returns the bytes read so far and an error wrapping transport.ErrIoTimeout.
func (c *Client) Read(maxLen int) ([]byte, error) {
	if !c.state.IsLinked() {
		return nil, transport.ErrClosed
	}
	if maxLen <= 0 {
		return nil, fmt.Errorf("vxi11: invalid read length %d", maxLen)
	}

	budget := c.cfg.ioTimeout
	out := make([]byte, 0, min(maxLen, int(c.link.MaxRecvSize)))

	for {
		flags := c.lockFlags()
		var termChar uint32
		if c.cfg.termChar >= 0 {
			flags |= flagTermCharSet
			termChar = uint32(c.cfg.termChar) //nolint:gosec // byte value
		}

		request := maxLen - len(out)
		parms := deviceReadParms{
			LinkID:      c.link.ID,
			RequestSize: uint32(request), //nolint:gosec // positive int
			IOTimeout:   millis(budget),
			LockTimeout: millis(c.cfg.lockTimeout),
			Flags:       flags,
			TermChar:    termChar,
		}

		var resp deviceReadResp
		start := time.Now()
		err := c.core.call(procDeviceRead, &parms, &resp, c.rpcTimeout(budget))
		budget -= time.Since(start)
		if err != nil {
			return out, err
		}
		if resp.Error != ErrCodeNone {
			return out, newProtocolError("device_read", resp.Error)
		}

		data := resp.Data
		if len(data) > request {
			c.logger.Warn("vxi11: device returned more data than requested", "requested", request, "received", len(data))
			data = data[:request]
		}
		out = append(out, data...)

		if resp.Reason&reasonEnd != 0 {
			return out, nil
		}
		if c.cfg.termChar >= 0 && resp.Reason&reasonChr != 0 {
			return out, nil
		}
		if len(out) >= maxLen {
			return out, nil
		}
		if budget <= 0 {
			return out, fmt.Errorf("%w: read stopped after %d bytes", transport.ErrIoTimeout, len(out))
		}
	}
}

// ReadStatusByte returns the device's status byte.
func (c *Client) ReadStatusByte() (byte, error) {
	if !c.state.IsLinked() {
		return 0, transport.ErrClosed
	}

	parms := c.genericParms()
	var resp deviceReadStbResp
	if err := c.core.call(procDeviceReadStb, &parms, &resp, c.rpcTimeout(c.cfg.ioTimeout)); err != nil {
		return 0, err
	}
	if resp.Error != ErrCodeNone {
		return 0, newProtocolError("device_readstb", resp.Error)
	}

	return byte(resp.Stb), nil //nolint:gosec // status byte travels in the low bits
}

// Trigger sends a group execute trigger to the device.
func (c *Client) Trigger() error {
	return c.generic("device_trigger", procDeviceTrigger)
}

// Clear sends a selected device clear.
func (c *Client) Clear() error {
	return c.generic("device_clear", procDeviceClear)
}

// Remote places the device in remote state.
func (c *Client) Remote() error {
	return c.generic("device_remote", procDeviceRemote)
}

// Local returns the device to local state.
func (c *Client) Local() error {
	return c.generic("device_local", procDeviceLocal)
}

// Lock acquires the exclusive device lock, waiting up to timeout for a lock
// held by another link.
func (c *Client) Lock(timeout time.Duration) error {
	if !c.state.IsLinked() {
		return transport.ErrClosed
	}
	if err := checkTimeout("lock timeout", timeout); err != nil {
		return err
	}

	var flags int32
	if timeout > 0 {
		flags = flagWaitLock
	}
	parms := deviceLockParms{
		LinkID:      c.link.ID,
		Flags:       flags,
		LockTimeout: millis(timeout),
	}

	var resp deviceError
	if err := c.core.call(procDeviceLock, &parms, &resp, timeout+c.cfg.rpcSlack); err != nil {
		return err
	}
	if resp.Error != ErrCodeNone {
		return newProtocolError("device_lock", resp.Error)
	}

	return nil
}

// Unlock releases the device lock.
func (c *Client) Unlock() error {
	if !c.state.IsLinked() {
		return transport.ErrClosed
	}

	parms := deviceLink{LinkID: c.link.ID}
	var resp deviceError
	if err := c.core.call(procDeviceUnlock, &parms, &resp, c.rpcTimeout(0)); err != nil {
		return err
	}
	if resp.Error != ErrCodeNone {
		return newProtocolError("device_unlock", resp.Error)
	}

	return nil
}

// DoCmd executes a device-specific command. dataSize is the size of one
// data element in bytes and networkOrder states that in is big-endian.
func (c *Client) DoCmd(cmd int32, networkOrder bool, dataSize int32, in []byte) ([]byte, error) {
	if !c.state.IsLinked() {
		return nil, transport.ErrClosed
	}

	parms := deviceDocmdParms{
		LinkID:       c.link.ID,
		Flags:        c.lockFlags(),
		IOTimeout:    millis(c.cfg.ioTimeout),
		LockTimeout:  millis(c.cfg.lockTimeout),
		Cmd:          cmd,
		NetworkOrder: networkOrder,
		DataSize:     dataSize,
		DataIn:       in,
	}

	var resp deviceDocmdResp
	if err := c.core.call(procDeviceDocmd, &parms, &resp, c.rpcTimeout(c.cfg.ioTimeout)); err != nil {
		return nil, err
	}
	if resp.Error != ErrCodeNone {
		return nil, newProtocolError("device_docmd", resp.Error)
	}

	return resp.DataOut, nil
}

// Abort interrupts the operation in progress on the core channel. It requires
// the abort channel (WithAbortChannel) and returns transport.ErrNotSupported
// otherwise. Abort is safe to call from another goroutine.
func (c *Client) Abort() error {
	if !c.state.IsLinked() {
		return transport.ErrClosed
	}

	c.abortMu.Lock()
	defer c.abortMu.Unlock()

	if c.abort == nil {
		return fmt.Errorf("%w: abort channel not open", transport.ErrNotSupported)
	}

	parms := deviceLink{LinkID: c.link.ID}
	var resp deviceError
	if err := c.abort.call(procDeviceAbort, &parms, &resp, c.cfg.dialTimeout+c.cfg.rpcSlack); err != nil {
		return err
	}
	if resp.Error != ErrCodeNone {
		return newProtocolError("device_abort", resp.Error)
	}

	c.logger.Debug("vxi11: abort sent")

	return nil
}

// Close destroys the link and closes both channels. Failures are logged and
// not returned; Close always returns nil and may be called more than once.
func (c *Client) Close() error {
	wasLinked := c.state.IsLinked()
	if !c.state.ToClosed() {
		return nil
	}

	if wasLinked {
		c.destroyLink()
	}

	c.abortMu.Lock()
	if c.abort != nil {
		if err := c.abort.close(); err != nil {
			c.logger.Debug("vxi11: close abort channel", "error", err)
		}
		c.abort = nil
	}
	c.abortMu.Unlock()

	if err := c.core.close(); err != nil {
		c.logger.Debug("vxi11: close core channel", "error", err)
	}

	c.logger.Info("vxi11: link closed", "link_id", c.link.ID)

	return nil
}

func (c *Client) destroyLink() {
	parms := deviceLink{LinkID: c.link.ID}
	var resp deviceError
	if err := c.core.call(procDestroyLink, &parms, &resp, c.rpcTimeout(0)); err != nil {
		c.logger.Warn("vxi11: destroy_link failed", "link_id", c.link.ID, "error", err)
		return
	}
	if resp.Error != ErrCodeNone {
		c.logger.Warn("vxi11: destroy_link failed", "link_id", c.link.ID, "error", newProtocolError("destroy_link", resp.Error))
	}
}

func (c *Client) generic(op string, proc uint32) error {
	if !c.state.IsLinked() {
		return transport.ErrClosed
	}

	parms := c.genericParms()
	var resp deviceError
	if err := c.core.call(proc, &parms, &resp, c.rpcTimeout(c.cfg.ioTimeout)); err != nil {
		return err
	}
	if resp.Error != ErrCodeNone {
		return newProtocolError(op, resp.Error)
	}

	return nil
}

func (c *Client) genericParms() deviceGenericParms {
	return deviceGenericParms{
		LinkID:      c.link.ID,
		Flags:       c.lockFlags(),
		LockTimeout: millis(c.cfg.lockTimeout),
		IOTimeout:   millis(c.cfg.ioTimeout),
	}
}

func (c *Client) lockFlags() int32 {
	if c.cfg.lockTimeout > 0 {
		return flagWaitLock
	}

	return 0
}

// rpcTimeout is the client-side deadline of one call: the device may take the
// I/O budget plus the lock timeout before answering.
func (c *Client) rpcTimeout(budget time.Duration) time.Duration {
	return max(budget, 0) + c.cfg.lockTimeout + c.cfg.rpcSlack
}

func millis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	if d > MaxTimeout {
		return 1<<32 - 1
	}

	return uint32(d / time.Millisecond) //nolint:gosec // range checked above
}
