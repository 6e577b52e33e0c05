package vxi11test

// Wire shapes mirrored from the protocol definition; the vxi11 package keeps
// its own copies unexported.

const (
	coreProgram = 0x0607AF

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
	procDestroyLink   = 23

	flagEnd = 0x08

	reasonReqCnt = 0x01
	reasonEnd    = 0x04

	errLockedByOther = 11
	errNoLockHeld    = 12
	errIOTimeout     = 15

	acceptProgUnavail = 1
	acceptProcUnavail = 3
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

type deviceLink struct {
	LinkID int32
}

type deviceError struct {
	Error int32
}
