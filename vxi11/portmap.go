package vxi11

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-instr/logger"
	"github.com/arloliu/go-instr/transport"
)

// Portmapper (RFC 1833) constants.
const (
	portmapProgram = 100000
	portmapVersion = 2
	portmapGetPort = 3

	ipProtoTCP = 6

	// DefaultPortmapperPort is the well-known portmapper port.
	DefaultPortmapperPort = 111
)

type portmapMapping struct {
	Program  uint32
	Version  uint32
	Protocol uint32
	Port     uint32
}

type portmapPort struct {
	Port uint32
}

// PortCache remembers the core channel port of each host so that repeated
// opens skip the portmapper round trip. It is safe for concurrent use and may
// be shared between clients.
type PortCache struct {
	ports *xsync.MapOf[string, uint16]
}

// NewPortCache creates an empty port cache.
func NewPortCache() *PortCache {
	return &PortCache{ports: xsync.NewMapOf[string, uint16]()}
}

// Get returns the cached core port for host.
func (pc *PortCache) Get(host string) (uint16, bool) {
	return pc.ports.Load(host)
}

// Forget drops the cached port of host, e.g. after the instrument rebooted.
func (pc *PortCache) Forget(host string) {
	pc.ports.Delete(host)
}

// Len returns the number of cached hosts.
func (pc *PortCache) Len() int {
	return pc.ports.Size()
}

// lookup returns the cached port of host or asks the portmapper.
func (pc *PortCache) lookup(host string, pmPort int, timeout time.Duration, l logger.Logger) (uint16, error) {
	if port, ok := pc.ports.Load(host); ok {
		return port, nil
	}

	port, err := getPort(host, pmPort, coreProgram, coreVersion, timeout, l)
	if err != nil {
		return 0, err
	}
	pc.ports.Store(host, port)

	return port, nil
}

// getPort asks the portmapper on host for the TCP port of program/version.
func getPort(host string, pmPort int, program, version uint32, timeout time.Duration, l logger.Logger) (uint16, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(pmPort))

	rpc, err := dialRPC(addr, portmapProgram, portmapVersion, timeout, l)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rpc.close() }()

	args := portmapMapping{
		Program:  program,
		Version:  version,
		Protocol: ipProtoTCP,
	}

	var reply portmapPort
	if err := rpc.call(portmapGetPort, &args, &reply, timeout); err != nil {
		return 0, err
	}

	if reply.Port == 0 || reply.Port > 65535 {
		return 0, fmt.Errorf("%w: program 0x%X not registered on %s", transport.ErrChannel, program, host)
	}

	l.Debug("vxi11: portmapper lookup", "host", host, "program", program, "port", reply.Port)

	return uint16(reply.Port), nil
}
