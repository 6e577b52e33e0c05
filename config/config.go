// Package config loads the instrument table that maps instrument names to
// session addresses.
//
//	instruments:
//	  scope: "192.0.2.5:inst0"
//	  dmm:   "0:22"
//	gpib:
//	  0: /dev/ttyUSB0
//	timeout: 5s
//
// A *Config implements session.Resolver.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-instr/session"
)

const (
	// EnvPath names the environment variable overriding DefaultPath.
	EnvPath = "INSTR_CONFIG"
	// DefaultPath is read when EnvPath is unset.
	DefaultPath = "/etc/instr.yaml"
)

// ErrConfig indicates an unreadable or invalid configuration file.
var ErrConfig = errors.New("config: invalid configuration")

// Config is the parsed instrument table.
type Config struct {
	// Instruments maps names to address strings.
	Instruments map[string]string `yaml:"instruments"`
	// GPIB maps board indices to the serial devices of Prologix adapters.
	GPIB map[int]string `yaml:"gpib,omitempty"`
	// Timeout is the default I/O timeout; zero leaves the session default.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	path string
}

var _ session.Resolver = (*Config)(nil)

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	cfg.path = path

	return cfg, nil
}

// LoadDefault loads $INSTR_CONFIG, or /etc/instr.yaml when it is unset.
// A missing default file yields an empty table, not an error.
func LoadDefault() (*Config, error) {
	if path := os.Getenv(EnvPath); path != "" {
		return Load(path)
	}

	cfg, err := Load(DefaultPath)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{Instruments: map[string]string{}}, nil
	}

	return cfg, err
}

// Parse decodes a YAML instrument table and checks every address.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if cfg.Instruments == nil {
		cfg.Instruments = map[string]string{}
	}

	for name, addr := range cfg.Instruments {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: empty instrument name", ErrConfig)
		}
		if _, err := session.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("%w: instrument %q: %w", ErrConfig, name, err)
		}
	}
	for board, path := range cfg.GPIB {
		if board < 0 || path == "" {
			return nil, fmt.Errorf("%w: invalid gpib board %d -> %q", ErrConfig, board, path)
		}
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: negative timeout %v", ErrConfig, cfg.Timeout)
	}

	return &cfg, nil
}

// Path returns the file the table was loaded from, if any.
func (c *Config) Path() string { return c.path }

// Resolve returns the address configured for name.
func (c *Config) Resolve(name string) (string, bool) {
	addr, ok := c.Instruments[name]
	return addr, ok
}

// Names returns the configured instrument names.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Instruments))
	for name := range c.Instruments {
		names = append(names, name)
	}

	return names
}
