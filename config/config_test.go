package config

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-instr/session"
)

const sample = `
instruments:
  scope: "192.0.2.5:inst0"
  dmm:   "0:22"
  psu:   "/dev/ttyS0:9600,8n1,none"
gpib:
  0: /dev/ttyUSB0
timeout: 5s
`

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "instr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, sample)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, map[int]string{0: "/dev/ttyUSB0"}, cfg.GPIB)

	addr, ok := cfg.Resolve("scope")
	require.True(t, ok)
	assert.Equal(t, "192.0.2.5:inst0", addr)

	_, ok = cfg.Resolve("missing")
	assert.False(t, ok)

	names := cfg.Names()
	sort.Strings(names)
	assert.Equal(t, []string{"dmm", "psu", "scope"}, names)
}

func TestParse_InvalidAddress(t *testing.T) {
	_, err := Parse([]byte("instruments:\n  bad: \"0:99\"\n"))
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorIs(t, err, session.ErrAddress)
	assert.Contains(t, err.Error(), "bad")
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("instruments: [1, 2"))
	require.ErrorIs(t, err, ErrConfig)

	_, err = Parse([]byte("gpib:\n  0: \"\"\n"))
	require.ErrorIs(t, err, ErrConfig)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Names())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDefault_FromEnv(t *testing.T) {
	path := writeFile(t, sample)
	t.Setenv(EnvPath, path)

	cfg, err := LoadDefault()
	require.NoError(t, err)
	assert.Len(t, cfg.Instruments, 3)
}

func TestConfigAsResolver(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	var r session.Resolver = cfg
	addr, ok := r.Resolve("dmm")
	require.True(t, ok)
	assert.Equal(t, "0:22", addr)
}
