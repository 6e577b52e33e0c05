// Package learnstr parses and builds instrument learn strings: concatenable,
// checksummed configuration records used to save and restore a complete
// instrument state as one byte stream.
//
// Each record on the wire is:
//
//	[Tag(2)][Length(2, big-endian)][Payload(Length-2)][CRC-16(2, big-endian)]
//
// Length covers the payload and the trailing CRC but not the 4-byte tag and
// length header. Records are concatenated back to back with no outer framing,
// and the stream must be reproduced byte for byte for the instrument to accept
// it on restore.
//
// The CRC of inverse assembler records (TagInverseAssembler) is left
// uninitialised by the instruments that produce it, so it is never validated.
package learnstr
