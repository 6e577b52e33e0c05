// Package vxi11 implements the client side of the VXI-11 instrument control
// protocol (VXIbus Consortium VXI-11 rev 1.0), an ONC RPC program spoken by
// LAN instruments and LAN/GPIB gateways.
//
// # Channels
//
// A Client holds up to two RPC channels to the remote host:
//
//   - the core channel (program 0x0607AF), found through the portmapper, which
//     carries link management, data transfer and bus control calls;
//   - the optional abort channel (program 0x0607B0), on the port announced by
//     create_link, used to cancel a call in flight on the core channel.
//
// # Links
//
// Open creates one link to a named device ("inst0", "gpib0,5", ...). The remote
// announces the largest write it accepts per call (maxRecvSize, never below
// 1024 bytes); Write splits larger buffers into chunks of that size and sets
// the END flag on the last chunk only.
//
// # Timeouts
//
// The I/O timeout is a budget rather than a per-call deadline: a chunked
// Write or Read hands the remaining budget to each call and subtracts the
// call's wall-clock duration, so many individually fast calls can still
// exhaust it.
package vxi11
