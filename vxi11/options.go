package vxi11

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-instr/logger"
)

// Default values for a client configuration.
const (
	DefaultIOTimeout   = 10 * time.Second
	DefaultLockTimeout = 0
	DefaultDialTimeout = 3 * time.Second
	DefaultRPCSlack    = 2 * time.Second

	// MaxTimeout is the largest timeout representable in the protocol's
	// unsigned 32-bit millisecond fields.
	MaxTimeout = time.Duration(1<<32-1) * time.Millisecond
)

// Config holds the settings of a VXI-11 client.
type Config struct {
	ioTimeout   time.Duration
	lockTimeout time.Duration
	dialTimeout time.Duration
	rpcSlack    time.Duration

	lockOnOpen   bool
	abortChannel bool
	assertEnd    bool
	termChar     int // -1: none

	zeroSizeWriteQuirk bool

	clientID       int32
	corePort       int // 0: portmapper lookup
	portmapperPort int
	portCache      *PortCache

	logger logger.Logger
}

func defaultConfig() *Config {
	return &Config{
		ioTimeout:      DefaultIOTimeout,
		lockTimeout:    DefaultLockTimeout,
		dialTimeout:    DefaultDialTimeout,
		rpcSlack:       DefaultRPCSlack,
		assertEnd:      true,
		termChar:       -1,
		portmapperPort: DefaultPortmapperPort,
		logger:         logger.GetLogger(),
	}
}

// IOTimeout returns the I/O timeout budget of each operation.
func (cfg *Config) IOTimeout() time.Duration { return cfg.ioTimeout }

// LockTimeout returns how long the device waits for a lock held by another link.
func (cfg *Config) LockTimeout() time.Duration { return cfg.lockTimeout }

// AssertEnd reports whether END is sent with the last chunk of a write.
func (cfg *Config) AssertEnd() bool { return cfg.assertEnd }

// Option is a functional option for configuring a Client.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

func checkTimeout(name string, d time.Duration) error {
	if d < 0 || d > MaxTimeout {
		return fmt.Errorf("vxi11: %s %v out of range [0, %v]", name, d, MaxTimeout)
	}

	return nil
}

// WithIOTimeout sets the I/O timeout budget shared by the RPCs of one operation.
func WithIOTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("io timeout", d); err != nil {
			return err
		}
		cfg.ioTimeout = d

		return nil
	})
}

// WithLockTimeout sets how long the device waits for a lock held by another link.
func WithLockTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("lock timeout", d); err != nil {
			return err
		}
		cfg.lockTimeout = d

		return nil
	})
}

// WithDialTimeout sets the TCP dial timeout of the portmapper, core and abort channels.
func WithDialTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("vxi11: dial timeout must be positive")
		}
		cfg.dialTimeout = d

		return nil
	})
}

// WithRPCSlack sets the extra time granted to each RPC beyond the device timeouts,
// covering network latency.
func WithRPCSlack(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("vxi11: rpc slack must not be negative")
		}
		cfg.rpcSlack = d

		return nil
	})
}

// WithLockOnOpen requests an exclusive lock as part of create_link.
func WithLockOnOpen(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.lockOnOpen = enabled
		return nil
	})
}

// WithAbortChannel opens the abort channel so that Abort can interrupt
// an in-flight operation.
func WithAbortChannel(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.abortChannel = enabled
		return nil
	})
}

// WithAssertEnd controls the END flag on the last chunk of a write. Enabled by default.
func WithAssertEnd(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.assertEnd = enabled
		return nil
	})
}

// WithTermChar makes reads also stop on c.
func WithTermChar(c byte) Option {
	return optFunc(func(cfg *Config) error {
		cfg.termChar = int(c)
		return nil
	})
}

// WithZeroSizeWriteQuirk treats a successful device_write reporting zero bytes
// as a full chunk. Some instrument firmware answers that way; a conforming
// device never does, so this is disabled by default.
func WithZeroSizeWriteQuirk(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.zeroSizeWriteQuirk = enabled
		return nil
	})
}

// WithClientID sets the client id sent in create_link.
func WithClientID(id int32) Option {
	return optFunc(func(cfg *Config) error {
		cfg.clientID = id
		return nil
	})
}

// WithCorePort connects to a fixed core channel port and skips the portmapper.
func WithCorePort(port int) Option {
	return optFunc(func(cfg *Config) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("vxi11: core port %d out of range [1, 65535]", port)
		}
		cfg.corePort = port

		return nil
	})
}

// WithPortmapperPort sets the portmapper port. Defaults to 111.
func WithPortmapperPort(port int) Option {
	return optFunc(func(cfg *Config) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("vxi11: portmapper port %d out of range [1, 65535]", port)
		}
		cfg.portmapperPort = port

		return nil
	})
}

// WithPortCache shares a port cache between clients.
func WithPortCache(pc *PortCache) Option {
	return optFunc(func(cfg *Config) error {
		if pc == nil {
			return errors.New("vxi11: port cache must not be nil")
		}
		cfg.portCache = pc

		return nil
	})
}

// WithLogger sets the logger of the client.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("vxi11: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
