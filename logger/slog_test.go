package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSONOutput(t *testing.T) {
	t.Setenv(FormatEnv, "")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)

	l.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug must be filtered at info level")

	l.With("address", "192.0.2.5:inst0").Info("write", "bytes", 6)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "write", rec["msg"])
	assert.Equal(t, "192.0.2.5:inst0", rec["address"])
	assert.InDelta(t, 6, rec["bytes"], 0)
	assert.Contains(t, rec, "ts")
}

func TestSlogLogger_SetLevelSharedWithChild(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)
	child := l.With("k", "v")

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.Level())

	child.Debug("trace")
	assert.Contains(t, buf.String(), "trace")

	l.SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, l.Level())
}

func TestSlogLogger_ConsoleFormat(t *testing.T) {
	t.Setenv(FormatEnv, "console")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)
	l.Warn("quirk", "chunk", 1024)

	assert.Contains(t, buf.String(), "quirk")
	assert.Contains(t, buf.String(), "1024")
}
