package session

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/arloliu/go-instr/transport"
	"github.com/arloliu/go-instr/vxi11"
)

// Address is a parsed instrument address.
type Address struct {
	Kind transport.Kind

	// Host and Device are set for VXI-11; Host and Port for sockets.
	Host   string
	Device string
	Port   int

	GPIB   transport.GPIBAddress
	Serial transport.SerialConfig
}

func (a Address) String() string {
	switch a.Kind {
	case transport.KindVXI11:
		return joinHost(a.Host, a.Device)
	case transport.KindSocket:
		return joinHost(a.Host, strconv.Itoa(a.Port))
	case transport.KindGPIB:
		return a.GPIB.String()
	case transport.KindSerial:
		return a.Serial.String()
	default:
		return ""
	}
}

func joinHost(host, rest string) string {
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	return host + ":" + rest
}

func addrError(s, format string, args ...any) error {
	return fmt.Errorf("%w %q: %s", ErrAddress, s, fmt.Sprintf(format, args...))
}

// ParseAddress parses an address string:
//
//	host[:device[,pad[,sad]]]           VXI-11 (device defaults to inst0)
//	host:port                           raw TCP socket
//	/dev/path[:baud[,8n1[,flow]]]       serial line
//	pad | board:pad[,sad]               native GPIB
//
// A secondary address may be given as 0-30 or as the bus byte 96-126.
// IPv6 hosts are written in brackets.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, addrError(s, "empty")
	}

	if strings.HasPrefix(s, "/") {
		return parseSerial(s)
	}

	if isDigits(s) {
		pad, err := parseNumber(s, "primary address")
		if err != nil {
			return Address{}, addrError(s, "%v", err)
		}

		return gpibAddress(s, 0, pad, "")
	}

	host, rest, hasRest, err := splitHost(s)
	if err != nil {
		return Address{}, err
	}

	if isDigits(host) {
		if !hasRest {
			return Address{}, addrError(s, "missing primary address")
		}
		board, err := parseNumber(host, "board")
		if err != nil {
			return Address{}, addrError(s, "%v", err)
		}
		padStr, sadStr, _ := strings.Cut(rest, ",")
		pad, err := parseNumber(padStr, "primary address")
		if err != nil {
			return Address{}, addrError(s, "%v", err)
		}

		return gpibAddress(s, board, pad, sadStr)
	}

	if err := validateHost(s, host); err != nil {
		return Address{}, err
	}

	if !hasRest {
		return Address{Kind: transport.KindVXI11, Host: host, Device: vxi11.DefaultDevice}, nil
	}

	if isDigits(rest) {
		port, err := strconv.Atoi(rest)
		if err != nil || port < 1 || port > 65535 {
			return Address{}, addrError(s, "port %s out of range [1, 65535]", rest)
		}

		return Address{Kind: transport.KindSocket, Host: host, Port: port}, nil
	}

	if err := validateDevice(s, rest); err != nil {
		return Address{}, err
	}

	return Address{Kind: transport.KindVXI11, Host: host, Device: rest}, nil
}

// splitHost separates the host from what follows the first colon, honouring
// bracketed IPv6 literals.
func splitHost(s string) (host, rest string, hasRest bool, err error) {
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", "", false, addrError(s, "unterminated IPv6 literal")
		}
		host = s[1:end]
		tail := s[end+1:]
		if tail == "" {
			return host, "", false, nil
		}
		if tail[0] != ':' {
			return "", "", false, addrError(s, "unexpected %q after IPv6 literal", tail)
		}

		return host, tail[1:], true, nil
	}

	host, rest, hasRest = strings.Cut(s, ":")
	if hasRest && strings.Contains(rest, ":") {
		return "", "", false, addrError(s, "IPv6 hosts must be written in brackets")
	}

	return host, rest, hasRest, nil
}

func validateHost(s, host string) error {
	if host == "" {
		return addrError(s, "empty host")
	}
	if ip := net.ParseIP(host); ip != nil {
		return nil
	}

	for _, c := range host {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '-' || c == '_':
		default:
			return addrError(s, "invalid character %q in host", c)
		}
	}

	return nil
}

// validateDevice checks a VXI-11 device name such as "inst0" or "gpib0,22,5".
func validateDevice(s, device string) error {
	parts := strings.Split(device, ",")
	if parts[0] == "" {
		return addrError(s, "empty device name")
	}
	if len(parts) > 3 {
		return addrError(s, "too many fields in device name")
	}
	for _, c := range parts[0] {
		if c <= ' ' || c == '/' || c > '~' {
			return addrError(s, "invalid character %q in device name", c)
		}
	}

	if len(parts) > 1 {
		pad, err := parseNumber(parts[1], "primary address")
		if err != nil {
			return addrError(s, "%v", err)
		}
		if pad > transport.MaxGPIBPrimaryAddress {
			return addrError(s, "primary address %d out of range [0, %d]", pad, transport.MaxGPIBPrimaryAddress)
		}
	}
	if len(parts) > 2 {
		if _, err := secondary(parts[2]); err != nil {
			return addrError(s, "%v", err)
		}
	}

	return nil
}

func gpibAddress(s string, board, pad int, sadStr string) (Address, error) {
	addr := transport.GPIBAddress{Board: board, PAD: pad}
	if sadStr != "" {
		sad, err := secondary(sadStr)
		if err != nil {
			return Address{}, addrError(s, "%v", err)
		}
		addr.SAD = sad
	}
	if err := addr.Validate(); err != nil {
		return Address{}, addrError(s, "%v", err)
	}

	return Address{Kind: transport.KindGPIB, GPIB: addr}, nil
}

// secondary converts a 0-30 or 96-126 secondary address to its bus byte.
func secondary(s string) (int, error) {
	sad, err := parseNumber(s, "secondary address")
	if err != nil {
		return 0, err
	}

	switch {
	case sad <= 30:
		return transport.GPIBSecondaryBase + sad, nil
	case sad >= transport.GPIBSecondaryBase && sad <= transport.MaxGPIBSecondary:
		return sad, nil
	default:
		return 0, fmt.Errorf("secondary address %d out of range", sad)
	}
}

func parseSerial(s string) (Address, error) {
	path, params, hasParams := strings.Cut(s, ":")
	if len(path) < 2 || strings.HasSuffix(path, "/") {
		return Address{}, addrError(s, "invalid device path")
	}

	cfg := transport.DefaultSerialConfig(path)
	if !hasParams {
		return Address{Kind: transport.KindSerial, Serial: cfg}, nil
	}

	fields := strings.Split(params, ",")
	if len(fields) > 3 {
		return Address{}, addrError(s, "too many serial parameters")
	}

	baud, err := strconv.Atoi(fields[0])
	if err != nil || baud <= 0 {
		return Address{}, addrError(s, "invalid baud rate %q", fields[0])
	}
	cfg.Baud = baud

	if len(fields) > 1 {
		frame := strings.ToLower(fields[1])
		if len(frame) != 3 {
			return Address{}, addrError(s, "invalid frame %q, want e.g. 8n1", fields[1])
		}
		cfg.DataBits = int(frame[0] - '0')
		if cfg.DataBits < 5 || cfg.DataBits > 8 {
			return Address{}, addrError(s, "invalid data bits %q", frame[0])
		}
		cfg.Parity = transport.Parity(frame[1])
		if cfg.Parity != transport.ParityNone && cfg.Parity != transport.ParityEven && cfg.Parity != transport.ParityOdd {
			return Address{}, addrError(s, "invalid parity %q", frame[1])
		}
		cfg.StopBits = int(frame[2] - '0')
		if cfg.StopBits != 1 && cfg.StopBits != 2 {
			return Address{}, addrError(s, "invalid stop bits %q", frame[2])
		}
	}

	if len(fields) > 2 {
		switch flow := transport.FlowControl(strings.ToLower(fields[2])); flow {
		case transport.FlowNone, transport.FlowXonXoff, transport.FlowRTSCTS:
			cfg.Flow = flow
		default:
			return Address{}, addrError(s, "invalid flow control %q", fields[2])
		}
	}

	return Address{Kind: transport.KindSerial, Serial: cfg}, nil
}

func parseNumber(s, what string) (int, error) {
	if !isDigits(s) {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}

	return n, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}
