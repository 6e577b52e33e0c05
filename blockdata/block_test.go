package blockdata

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Definite(t *testing.T) {
	tests := []struct {
		name     string
		buf      string
		payload  string
		consumed int
	}{
		{"one digit", "#15HELLO", "HELLO", 7},
		{"trailing terminator left", "#15HELLO\n", "HELLO", 7},
		{"two digits", "#210abcdefghij", "abcdefghij", 14},
		{"zero length", "#10", "", 3},
		{"leading zeros", "#3004DATA", "DATA", 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, consumed, err := Decode([]byte(tt.buf), Either)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, string(payload))
			assert.Equal(t, tt.consumed, consumed)

			payload, consumed, err = Decode([]byte(tt.buf), DefiniteOnly)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, string(payload))
			assert.Equal(t, tt.consumed, consumed)
		})
	}
}

func TestDecode_Indefinite(t *testing.T) {
	payload, consumed, err := Decode([]byte("#0\x01\x02\x03\n"), Either)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, payload)
	assert.Equal(t, 6, consumed)

	payload, consumed, err = Decode([]byte("#0\n"), IndefiniteOnly)
	require.NoError(t, err)
	assert.Empty(t, payload)
	assert.Equal(t, 3, consumed)
}

func TestDecode_ModeRejection(t *testing.T) {
	_, _, err := Decode([]byte("#0abc\n"), DefiniteOnly)
	require.ErrorIs(t, err, ErrFormat)

	_, _, err = Decode([]byte("#13abc"), IndefiniteOnly)
	require.ErrorIs(t, err, ErrFormat)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"too short", []byte("#1")},
		{"no hash", []byte("X15HELLO")},
		{"bad digit", []byte("#A5HELLO")},
		{"length field exceeds buffer", []byte("#91234")},
		{"length field not decimal", []byte("#2x5HELLO")},
		{"declared exceeds available", []byte("#16HELLO")},
		{"huge declared length", []byte("#9999999999abc")},
		{"indefinite without newline", []byte("#0abc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, consumed, err := Decode(tt.buf, Either)
			require.ErrorIs(t, err, ErrFormat)
			assert.Nil(t, payload)
			assert.Zero(t, consumed)
		})
	}
}

func TestDecode_PayloadAliasesInput(t *testing.T) {
	buf := []byte("#13abc")
	payload, _, err := Decode(buf, Either)
	require.NoError(t, err)

	payload[0] = 'X'
	assert.Equal(t, "#13Xbc", string(buf))
}

func TestEncodeDefinite(t *testing.T) {
	out, err := EncodeDefinite([]byte("HELLO"))
	require.NoError(t, err)
	assert.Equal(t, "#15HELLO", string(out))

	big := bytes.Repeat([]byte{0xAA}, 1234)
	out, err = EncodeDefinite(big)
	require.NoError(t, err)
	assert.Equal(t, "#41234", string(out[:6]))

	payload, consumed, err := Decode(out, DefiniteOnly)
	require.NoError(t, err)
	assert.Equal(t, big, payload)
	assert.Equal(t, len(out), consumed)
}

func TestEncodeIndefinite(t *testing.T) {
	out := EncodeIndefinite([]byte("xyz"))
	assert.Equal(t, "#0xyz\n", string(out))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "either", Either.String())
	assert.Equal(t, "definite", DefiniteOnly.String())
	assert.Equal(t, "indefinite", IndefiniteOnly.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
