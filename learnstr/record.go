package learnstr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrFormat indicates malformed record framing.
	ErrFormat = errors.New("learnstr: format error")
	// ErrTruncated indicates a stream ending inside a record. It wraps ErrFormat.
	ErrTruncated = fmt.Errorf("%w: truncated record", ErrFormat)
	// ErrChecksum indicates a CRC mismatch on a record that is subject to validation.
	ErrChecksum = errors.New("learnstr: checksum mismatch")
)

const (
	headerSize = 4
	crcSize    = 2

	// MaxPayloadSize is the largest payload a 16-bit length field can describe.
	MaxPayloadSize = 0xFFFF - crcSize
)

// Tag identifies the kind of payload a record carries.
type Tag string

// Known record tags.
const (
	TagConfig           Tag = "RC"
	TagState            Tag = "RS"
	TagTiming           Tag = "RT"
	TagAnalog           Tag = "RA"
	TagInverseAssembler Tag = "RI"
)

// IsValid reports whether t is one of the known record tags.
func (t Tag) IsValid() bool {
	switch t {
	case TagConfig, TagState, TagTiming, TagAnalog, TagInverseAssembler:
		return true
	default:
		return false
	}
}

// ChecksumExempt reports whether records with this tag skip CRC validation.
func (t Tag) ChecksumExempt() bool {
	return t == TagInverseAssembler
}

func (t Tag) String() string {
	switch t {
	case TagConfig:
		return "config"
	case TagState:
		return "state"
	case TagTiming:
		return "timing"
	case TagAnalog:
		return "analog"
	case TagInverseAssembler:
		return "inverse-assembler"
	default:
		return fmt.Sprintf("unknown(%q)", string(t))
	}
}

// Record is one learn string record. Payload excludes the trailing CRC.
type Record struct {
	Tag     Tag
	Payload []byte
}

// Size returns the encoded size of the record.
func (r Record) Size() int {
	return headerSize + len(r.Payload) + crcSize
}

// ParseOne parses the record at the start of buf and returns it together with
// the number of bytes it occupies.
//
// The returned payload aliases buf. When the error is ErrChecksum the record
// and consumed length are still valid, so a caller may report the corrupt
// record and continue with the next one.
func ParseOne(buf []byte) (Record, int, error) {
	if len(buf) < headerSize {
		return Record{}, 0, fmt.Errorf("%w: %d bytes left, need a %d-byte header", ErrTruncated, len(buf), headerSize)
	}

	tag := Tag(buf[0:2])
	if !tag.IsValid() {
		return Record{}, 0, fmt.Errorf("%w: unknown tag %q", ErrFormat, string(buf[0:2]))
	}

	length := int(binary.BigEndian.Uint16(buf[2:4]))
	if length < crcSize {
		return Record{}, 0, fmt.Errorf("%w: %s record length %d cannot hold a checksum", ErrFormat, tag, length)
	}

	consumed := length + headerSize
	if consumed > len(buf) {
		return Record{}, 0, fmt.Errorf("%w: %s record needs %d bytes, %d available", ErrTruncated, tag, consumed, len(buf))
	}

	rec := Record{
		Tag:     tag,
		Payload: buf[headerSize : consumed-crcSize],
	}

	if !tag.ChecksumExempt() {
		wire := binary.BigEndian.Uint16(buf[consumed-crcSize : consumed])
		calc := Checksum(rec.Payload)
		if wire != calc {
			return rec, consumed, fmt.Errorf("%w: %s record wire=0x%04X, computed=0x%04X", ErrChecksum, tag, wire, calc)
		}
	}

	return rec, consumed, nil
}

// ParseAll parses a concatenation of records. It stops at the first error.
func ParseAll(buf []byte) ([]Record, error) {
	var records []Record

	for off := 0; off < len(buf); {
		rec, n, err := ParseOne(buf[off:])
		if err != nil {
			return records, fmt.Errorf("record %d at offset %d: %w", len(records), off, err)
		}
		records = append(records, rec)
		off += n
	}

	return records, nil
}

// Encode serializes records into one learn string, computing each CRC.
// Inverse assembler records get a computed CRC as well; the instrument ignores it.
func Encode(records ...Record) ([]byte, error) {
	size := 0
	for _, r := range records {
		if !r.Tag.IsValid() {
			return nil, fmt.Errorf("%w: unknown tag %q", ErrFormat, string(r.Tag))
		}
		if len(r.Payload) > MaxPayloadSize {
			return nil, fmt.Errorf("%w: %s payload of %d bytes exceeds %d", ErrFormat, r.Tag, len(r.Payload), MaxPayloadSize)
		}
		size += r.Size()
	}

	out := make([]byte, 0, size)
	for _, r := range records {
		out = append(out, r.Tag[0], r.Tag[1])
		out = binary.BigEndian.AppendUint16(out, uint16(len(r.Payload)+crcSize)) //nolint:gosec // bounded by MaxPayloadSize
		out = append(out, r.Payload...)
		out = binary.BigEndian.AppendUint16(out, Checksum(r.Payload))
	}

	return out, nil
}
