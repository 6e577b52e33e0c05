// Package blockdata decodes IEEE 488.2 arbitrary block response data.
//
// Instruments return binary payloads (waveforms, screen dumps, learn strings)
// framed in one of two forms:
//
//   - Definite length:   '#' <N> <N decimal digits giving L> <L payload bytes>
//   - Indefinite length: '#' '0' <payload bytes> '\n'
//
// Decode reinterprets a caller-owned buffer in place; the returned payload is a
// sub-slice of the input and nothing is copied.
package blockdata
