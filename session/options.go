package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-instr/logger"
	"github.com/arloliu/go-instr/transport"
	"github.com/arloliu/go-instr/vxi11"
)

// Default session settings.
const (
	DefaultIOTimeout    = 10 * time.Second
	DefaultDialTimeout  = 3 * time.Second
	DefaultRetryBackoff = 10 * time.Millisecond
	DefaultEOS          = '\n'

	MaxRetryBackoff = 10 * time.Second
)

// Config holds the settings of a session.
type Config struct {
	interpreter  Interpreter
	retryBackoff time.Duration
	resolver     Resolver

	ioTimeout   time.Duration
	lockTimeout time.Duration
	dialTimeout time.Duration

	eos          byte
	termOnEOS    bool
	termOnEOSSet bool
	assertEnd    bool
	verbose      bool

	gpibDriver   transport.GPIBDriver
	abortChannel bool
	writeQuirk   bool
	portCache    *vxi11.PortCache
	vxi11Opts    []vxi11.Option

	logger logger.Logger
	sleep  func(time.Duration)
}

func defaultConfig() *Config {
	return &Config{
		retryBackoff: DefaultRetryBackoff,
		ioTimeout:    DefaultIOTimeout,
		dialTimeout:  DefaultDialTimeout,
		eos:          DefaultEOS,
		assertEnd:    true,
		logger:       logger.GetLogger(),
		sleep:        time.Sleep,
	}
}

// terminateOnEOS returns the configured setting or the default of kind:
// byte-stream transports need the EOS character to find the end of a
// message, VXI-11 and GPIB have END/EOI.
func (cfg *Config) terminateOnEOS(kind transport.Kind) bool {
	if cfg.termOnEOSSet {
		return cfg.termOnEOS
	}

	return kind == transport.KindSerial || kind == transport.KindSocket
}

// Option is a functional option for configuring a Session.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithInterpreter installs the status interpreter. Without one, status
// bytes are not polled.
func WithInterpreter(fn Interpreter) Option {
	return optFunc(func(cfg *Config) error {
		cfg.interpreter = fn
		return nil
	})
}

// WithRetryBackoff sets the backoff unit: the n-th retry of a status poll
// sleeps n*d. Microsecond granularity is kept.
func WithRetryBackoff(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxRetryBackoff {
			return fmt.Errorf("session: retry backoff %v out of range [0, %v]", d, MaxRetryBackoff)
		}
		cfg.retryBackoff = d.Truncate(time.Microsecond)

		return nil
	})
}

// WithResolver looks instrument names up before parsing the address.
func WithResolver(r Resolver) Option {
	return optFunc(func(cfg *Config) error {
		cfg.resolver = r
		return nil
	})
}

// WithIOTimeout sets the I/O timeout.
func WithIOTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("session: io timeout must be positive")
		}
		cfg.ioTimeout = d

		return nil
	})
}

// WithLockTimeout sets how long VXI-11 operations wait for a lock held by another client.
func WithLockTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("session: lock timeout must not be negative")
		}
		cfg.lockTimeout = d

		return nil
	})
}

// WithDialTimeout sets the connect timeout of network transports.
func WithDialTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("session: dial timeout must be positive")
		}
		cfg.dialTimeout = d

		return nil
	})
}

// WithEOS sets the end-of-string character. Defaults to '\n'.
func WithEOS(eos byte) Option {
	return optFunc(func(cfg *Config) error {
		cfg.eos = eos
		return nil
	})
}

// WithTerminateOnEOS controls whether reads stop at the EOS character.
// Enabled by default for serial and socket transports only.
func WithTerminateOnEOS(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.termOnEOS = enabled
		cfg.termOnEOSSet = true

		return nil
	})
}

// WithAssertEndOnWrite controls END/EOI on the last byte written. Enabled by default.
func WithAssertEndOnWrite(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.assertEnd = enabled
		return nil
	})
}

// WithVerbose logs every primitive at info level instead of debug.
func WithVerbose(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.verbose = enabled
		return nil
	})
}

// WithGPIBDriver sets the driver used for native GPIB addresses.
func WithGPIBDriver(drv transport.GPIBDriver) Option {
	return optFunc(func(cfg *Config) error {
		cfg.gpibDriver = drv
		return nil
	})
}

// WithAbortChannel opens the VXI-11 abort channel so Abort can interrupt
// an operation in flight.
func WithAbortChannel(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.abortChannel = enabled
		return nil
	})
}

// WithZeroSizeWriteQuirk enables the workaround for VXI-11 gateways that
// report zero bytes written on success.
func WithZeroSizeWriteQuirk(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.writeQuirk = enabled
		return nil
	})
}

// WithPortCache shares a VXI-11 core port cache between sessions.
func WithPortCache(pc *vxi11.PortCache) Option {
	return optFunc(func(cfg *Config) error {
		cfg.portCache = pc
		return nil
	})
}

// WithVXI11Options passes further options to the VXI-11 client. They are
// applied after the options derived from the session settings.
func WithVXI11Options(opts ...vxi11.Option) Option {
	return optFunc(func(cfg *Config) error {
		cfg.vxi11Opts = append(cfg.vxi11Opts, opts...)
		return nil
	})
}

// WithLogger sets the logger of the session and its transport.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("session: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
