package learnstr

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawRecord builds a record by hand, independent of Encode.
func rawRecord(tag string, payload []byte, crc uint16) []byte {
	buf := []byte(tag)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(payload)+2))
	buf = append(buf, payload...)

	return binary.BigEndian.AppendUint16(buf, crc)
}

func TestChecksum_CheckValue(t *testing.T) {
	assert.Equal(t, uint16(0xBB3D), Checksum([]byte("123456789")))
	assert.Equal(t, uint16(0), Checksum(nil))

	// Incremental update must match a single pass.
	crc := UpdateChecksum(0, []byte("1234"))
	crc = UpdateChecksum(crc, []byte("56789"))
	assert.Equal(t, uint16(0xBB3D), crc)
}

func TestParseOne_ConfigRecord(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	buf := rawRecord("RC", payload, Checksum(payload))
	require.Len(t, buf, 10)

	rec, consumed, err := ParseOne(buf)
	require.NoError(t, err)
	assert.Equal(t, 10, consumed)
	assert.Equal(t, TagConfig, rec.Tag)
	assert.Equal(t, payload, rec.Payload)
	assert.Len(t, rec.Payload, 4)
}

func TestParseOne_IgnoresTrailingData(t *testing.T) {
	payload := []byte("abc")
	buf := append(rawRecord("RS", payload, Checksum(payload)), 'R', 'T')

	rec, consumed, err := ParseOne(buf)
	require.NoError(t, err)
	assert.Equal(t, 9, consumed)
	assert.Equal(t, TagState, rec.Tag)
}

func TestParseOne_CorruptedPayloadByte(t *testing.T) {
	payload := []byte("timing-data-0123")
	orig := rawRecord("RT", payload, Checksum(payload))

	for i := headerSize; i < len(orig)-crcSize; i++ {
		buf := append([]byte(nil), orig...)
		buf[i] ^= 0x01

		rec, consumed, err := ParseOne(buf)
		require.ErrorIs(t, err, ErrChecksum, "byte %d", i)
		assert.Equal(t, len(orig), consumed, "consumed must stay valid on checksum error")
		assert.Equal(t, TagTiming, rec.Tag)
	}
}

func TestParseOne_InverseAssemblerExempt(t *testing.T) {
	payload := []byte("ia")
	buf := rawRecord("RI", payload, 0xDEAD)

	rec, consumed, err := ParseOne(buf)
	require.NoError(t, err)
	assert.Equal(t, TagInverseAssembler, rec.Tag)
	assert.Equal(t, 8, consumed)
}

func TestParseOne_FormatErrors(t *testing.T) {
	good := rawRecord("RA", []byte("xy"), Checksum([]byte("xy")))

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"short header", []byte("RA\x00")},
		{"unknown tag", rawRecord("ZZ", []byte("xy"), 0)},
		{"length below crc size", []byte{'R', 'C', 0x00, 0x01, 0x00}},
		{"truncated body", good[:len(good)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, consumed, err := ParseOne(tt.buf)
			require.ErrorIs(t, err, ErrFormat)
			assert.Zero(t, consumed)
		})
	}
}

func TestParseAll_RoundTrip(t *testing.T) {
	records := []Record{
		{Tag: TagConfig, Payload: []byte{0x00, 0x10, 0x20}},
		{Tag: TagState, Payload: []byte{}},
		{Tag: TagTiming, Payload: []byte("timing")},
		{Tag: TagAnalog, Payload: make([]byte, 300)},
		{Tag: TagInverseAssembler, Payload: []byte("ia-program")},
	}

	buf, err := Encode(records...)
	require.NoError(t, err)

	size := 0
	for _, r := range records {
		size += r.Size()
	}
	assert.Len(t, buf, size)

	parsed, err := ParseAll(buf)
	require.NoError(t, err)
	require.Len(t, parsed, len(records))
	for i := range records {
		assert.Equal(t, records[i].Tag, parsed[i].Tag)
		assert.Equal(t, len(records[i].Payload), len(parsed[i].Payload))
		assert.Equal(t, []byte(records[i].Payload), []byte(parsed[i].Payload))
	}
}

func TestParseAll_Truncated(t *testing.T) {
	buf, err := Encode(Record{Tag: TagConfig, Payload: []byte("abcd")}, Record{Tag: TagState, Payload: []byte("ef")})
	require.NoError(t, err)

	parsed, err := ParseAll(buf[:len(buf)-3])
	require.ErrorIs(t, err, ErrFormat)
	require.ErrorIs(t, err, ErrTruncated)
	assert.Len(t, parsed, 1, "records before the truncation are returned")
}

func TestParseAll_Empty(t *testing.T) {
	parsed, err := ParseAll(nil)
	require.NoError(t, err)
	assert.Empty(t, parsed)
}

func TestParseOne_SkipCorruptRecord(t *testing.T) {
	first := rawRecord("RC", []byte("bad"), 0x0000)
	second := rawRecord("RS", []byte("ok"), Checksum([]byte("ok")))
	buf := append(first, second...)

	var tags []Tag
	var corrupt int
	for off := 0; off < len(buf); {
		rec, n, err := ParseOne(buf[off:])
		if err != nil {
			require.ErrorIs(t, err, ErrChecksum)
			corrupt++
		} else {
			tags = append(tags, rec.Tag)
		}
		require.Positive(t, n)
		off += n
	}

	assert.Equal(t, 1, corrupt)
	assert.Equal(t, []Tag{TagState}, tags)
}

func TestEncode_Rejects(t *testing.T) {
	_, err := Encode(Record{Tag: "XX"})
	require.ErrorIs(t, err, ErrFormat)

	_, err = Encode(Record{Tag: TagConfig, Payload: make([]byte, MaxPayloadSize+1)})
	require.ErrorIs(t, err, ErrFormat)
}

func TestTag_String(t *testing.T) {
	assert.Equal(t, "config", TagConfig.String())
	assert.Equal(t, "inverse-assembler", TagInverseAssembler.String())
	assert.True(t, TagInverseAssembler.ChecksumExempt())
	assert.False(t, TagConfig.ChecksumExempt())
	assert.Contains(t, Tag("QQ").String(), "unknown")
}
