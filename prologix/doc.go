// Package prologix drives GPIB instruments through Prologix GPIB-USB (and
// GPIB-ETHERNET in serial mode) controllers.
//
// A Driver maps GPIB board indices to the serial devices of the controllers
// and implements transport.GPIBDriver, so sessions can open "board:pad"
// addresses without a vendor GPIB library. Devices on the same board share
// one controller; every operation re-addresses the controller as needed.
//
//	drv := &prologix.Driver{Ports: map[int]string{0: "/dev/ttyUSB0"}}
//	s, err := session.Open("0:22", session.WithGPIBDriver(drv))
package prologix
