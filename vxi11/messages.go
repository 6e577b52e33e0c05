package vxi11

// Core channel program (VXI-11 rev 1.0, appendix B).
const (
	coreProgram = 0x0607AF
	coreVersion = 1

	abortProgram = 0x0607B0
	abortVersion = 1
)

// Core channel procedures.
const (
	procCreateLink    = 10
	procDeviceWrite   = 11
	procDeviceRead    = 12
	procDeviceReadStb = 13
	procDeviceTrigger = 14
	procDeviceClear   = 15
	procDeviceRemote  = 16
	procDeviceLocal   = 17
	procDeviceLock    = 18
	procDeviceUnlock  = 19
	procDeviceDocmd   = 22
	procDestroyLink   = 23

	procDeviceAbort = 1
)

// Device_Flags bits.
const (
	flagWaitLock    = 0x01
	flagEnd         = 0x08
	flagTermCharSet = 0x80
)

// Device_ReadResp reason bits.
const (
	reasonReqCnt = 0x01
	reasonChr    = 0x02
	reasonEnd    = 0x04
)

// MinMaxRecvSize is the smallest maxRecvSize a conforming device may announce.
const MinMaxRecvSize = 1024

// XDR shapes of the VXI-11 arguments and results. Field order is wire order;
// the protocol's u_short and u_char fields travel as 32-bit XDR integers.

type createLinkParms struct {
	ClientID    int32
	LockDevice  bool
	LockTimeout uint32
	Device      string
}

type createLinkResp struct {
	Error       int32
	LinkID      int32
	AbortPort   uint32
	MaxRecvSize uint32
}

type deviceWriteParms struct {
	LinkID      int32
	IOTimeout   uint32
	LockTimeout uint32
	Flags       int32
	Data        []byte
}

type deviceWriteResp struct {
	Error int32
	Size  uint32
}

type deviceReadParms struct {
	LinkID      int32
	RequestSize uint32
	IOTimeout   uint32
	LockTimeout uint32
	Flags       int32
	TermChar    uint32
}

type deviceReadResp struct {
	Error  int32
	Reason int32
	Data   []byte
}

type deviceGenericParms struct {
	LinkID      int32
	Flags       int32
	LockTimeout uint32
	IOTimeout   uint32
}

type deviceReadStbResp struct {
	Error int32
	Stb   uint32
}

type deviceLockParms struct {
	LinkID      int32
	Flags       int32
	LockTimeout uint32
}

type deviceDocmdParms struct {
	LinkID       int32
	Flags        int32
	IOTimeout    uint32
	LockTimeout  uint32
	Cmd          int32
	NetworkOrder bool
	DataSize     int32
	DataIn       []byte
}

type deviceDocmdResp struct {
	Error   int32
	DataOut []byte
}

type deviceLink struct {
	LinkID int32
}

type deviceError struct {
	Error int32
}
