// Package transport defines the capability interface every instrument
// backend implements, together with the socket, serial and native GPIB
// backends. The VXI-11 backend lives in package vxi11.
//
// A Transport exposes raw primitives only: it never polls the status byte
// on its own and never retries. Sessions layer the status monitor on top.
//
// Backends that have no notion of a given primitive (a serial line has no
// serial poll, a socket has no trigger) return ErrNotSupported.
package transport
