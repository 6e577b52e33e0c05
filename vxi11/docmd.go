package vxi11

import (
	"encoding/binary"
	"fmt"
)

// device_docmd command codes for IEEE 488 bus control (VXI-11 rev 1.0, B.5.2).
const (
	DocmdSendCommand = 0x020000
	DocmdBusStatus   = 0x020001
	DocmdATNControl  = 0x020002
	DocmdRENControl  = 0x020003
	DocmdPassControl = 0x020004
	DocmdBusAddress  = 0x02000A
	DocmdIFCControl  = 0x020010
)

// BusStatusItem selects the value returned by BusStatus.
type BusStatusItem uint16

const (
	BusStatusRemote             BusStatusItem = 1
	BusStatusSRQ                BusStatusItem = 2
	BusStatusNDAC               BusStatusItem = 3
	BusStatusSystemController   BusStatusItem = 4
	BusStatusControllerInCharge BusStatusItem = 5
	BusStatusTalker             BusStatusItem = 6
	BusStatusListener           BusStatusItem = 7
	BusStatusBusAddress         BusStatusItem = 8
)

// SendCommand sends cmds as bus command bytes (with ATN asserted) and returns
// the bytes echoed by the gateway.
func (c *Client) SendCommand(cmds []byte) ([]byte, error) {
	return c.DoCmd(DocmdSendCommand, true, 1, cmds)
}

// BusStatus queries one item of the gateway's bus status.
func (c *Client) BusStatus(item BusStatusItem) (uint16, error) {
	in := binary.BigEndian.AppendUint16(nil, uint16(item))

	out, err := c.DoCmd(DocmdBusStatus, true, 2, in)
	if err != nil {
		return 0, err
	}
	if len(out) < 2 {
		return 0, fmt.Errorf("%w: bus status reply of %d bytes", ErrBadResponse, len(out))
	}

	return binary.BigEndian.Uint16(out), nil
}

// SetATN asserts or releases the ATN line.
func (c *Client) SetATN(asserted bool) error {
	return c.boolCmd(DocmdATNControl, asserted)
}

// SetREN asserts or releases the REN line.
func (c *Client) SetREN(asserted bool) error {
	return c.boolCmd(DocmdRENControl, asserted)
}

// PassControl passes controller-in-charge to the device at addr.
func (c *Client) PassControl(addr uint32) error {
	_, err := c.DoCmd(DocmdPassControl, true, 4, binary.BigEndian.AppendUint32(nil, addr))
	return err
}

// SetBusAddress sets the gateway's own bus address.
func (c *Client) SetBusAddress(addr uint32) error {
	_, err := c.DoCmd(DocmdBusAddress, true, 4, binary.BigEndian.AppendUint32(nil, addr))
	return err
}

// SendIFC pulses the interface clear line.
func (c *Client) SendIFC() error {
	_, err := c.DoCmd(DocmdIFCControl, true, 0, nil)
	return err
}

func (c *Client) boolCmd(cmd int32, v bool) error {
	var val uint16
	if v {
		val = 1
	}
	_, err := c.DoCmd(cmd, true, 2, binary.BigEndian.AppendUint16(nil, val))

	return err
}
