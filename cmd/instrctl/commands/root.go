// Package commands implements the instrctl command line.
package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/arloliu/go-instr/config"
	"github.com/arloliu/go-instr/logger"
	"github.com/arloliu/go-instr/prologix"
	"github.com/arloliu/go-instr/session"
	"github.com/arloliu/go-instr/vxi11"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

// rootOptions holds the global flags.
type rootOptions struct {
	address    string
	configPath string
	logFormat  string
	timeout    time.Duration
	eos        string
	termOnEOS  bool
	verbose    bool
	debug      bool
	checkESR   bool
	metrics    bool
	corePort   int
	abort      bool
}

// NewRootCmd builds the instrctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "instrctl",
		Short: "Talk to test and measurement instruments",
		Long: `instrctl sends commands to and reads responses from instruments
reachable over VXI-11, GPIB (Prologix adapters), serial lines or raw sockets.

Addresses:
  host[:device]            VXI-11, device defaults to inst0
  host:port                raw TCP socket
  /dev/ttyS0[:9600,8n1]    serial line
  [board:]pad[,sad]        GPIB
  name                     an instrument from the configuration file

Examples:
  # Identify an instrument
  instrctl -a 192.0.2.5 query '*IDN?'

  # Save a setup using a configured name
  instrctl -a scope learn save ':SYSTEM:SETUP?' -o scope.lrn`,
		Version:       Version + " (" + Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.logFormat != "" {
				return os.Setenv(logger.FormatEnv, opts.logFormat)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.address, "address", "a", "", "instrument address or configured name")
	flags.StringVarP(&opts.configPath, "config", "c", "", "instrument table (default: $"+config.EnvPath+" or "+config.DefaultPath+")")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (json|console)")
	flags.DurationVarP(&opts.timeout, "timeout", "t", session.DefaultIOTimeout, "I/O timeout")
	flags.StringVar(&opts.eos, "eos", "lf", "end-of-string character (lf|cr|none|<byte>)")
	flags.BoolVar(&opts.termOnEOS, "term-on-eos", false, "end reads on the EOS character (default depends on the transport)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every I/O primitive")
	flags.BoolVar(&opts.debug, "debug", false, "log protocol traces")
	flags.BoolVar(&opts.checkESR, "check-esr", false, "query *ESR? when the event status bit is set and fail on error bits")
	flags.BoolVar(&opts.metrics, "metrics", false, "print session metrics to stderr on exit")
	flags.IntVar(&opts.corePort, "vxi11-port", 0, "VXI-11 core port, skipping the portmapper")
	flags.BoolVar(&opts.abort, "abort-channel", false, "open the VXI-11 abort channel")

	cmd.AddCommand(
		newWriteCmd(opts),
		newReadCmd(opts),
		newQueryCmd(opts),
		newStbCmd(opts),
		newClearCmd(opts),
		newTriggerCmd(opts),
		newLocalCmd(opts),
		newLockCmd(opts),
		newBlockCmd(opts),
		newLearnCmd(opts),
	)

	return cmd
}

// Execute runs the command line and prints a failure to stderr.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		cmd.PrintErrf("instrctl: %v\n", err)
	}

	return err
}

// withSession opens the addressed instrument, runs fn and closes it again.
func withSession(cmd *cobra.Command, opts *rootOptions, fn func(*session.Session) error) error {
	if opts.address == "" {
		return fmt.Errorf("no instrument address, use --address")
	}

	sessOpts, err := opts.sessionOptions(cmd)
	if err != nil {
		return err
	}

	s, err := session.Open(opts.address, sessOpts...)
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.checkESR {
		if err := s.SetInterpreter(esrInterpreter(s, opts.logger(cmd))); err != nil {
			return err
		}
	}

	err = fn(s)

	if opts.metrics {
		if merr := dumpMetrics(cmd, opts.address, s); merr != nil && err == nil {
			err = merr
		}
	}

	return err
}

func (opts *rootOptions) sessionOptions(cmd *cobra.Command) ([]session.Option, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	eos, hasEOS, err := parseEOS(opts.eos)
	if err != nil {
		return nil, err
	}

	timeout := opts.timeout
	if !cmd.Flags().Changed("timeout") && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	l := opts.logger(cmd)
	sessOpts := []session.Option{
		session.WithResolver(cfg),
		session.WithIOTimeout(timeout),
		session.WithVerbose(opts.verbose),
		session.WithAbortChannel(opts.abort),
		session.WithLogger(l),
	}
	if hasEOS {
		sessOpts = append(sessOpts, session.WithEOS(eos))
	}
	switch {
	case !hasEOS:
		sessOpts = append(sessOpts, session.WithTerminateOnEOS(false))
	case cmd.Flags().Changed("term-on-eos"):
		sessOpts = append(sessOpts, session.WithTerminateOnEOS(opts.termOnEOS))
	}
	if opts.corePort > 0 {
		sessOpts = append(sessOpts, session.WithVXI11Options(vxi11.WithCorePort(opts.corePort)))
	}
	if len(cfg.GPIB) > 0 {
		sessOpts = append(sessOpts, session.WithGPIBDriver(&prologix.Driver{Ports: cfg.GPIB, Logger: l}))
	}

	return sessOpts, nil
}

func (opts *rootOptions) logger(cmd *cobra.Command) logger.Logger {
	level := logger.InfoLevel
	if opts.debug {
		level = logger.DebugLevel
	} else if !opts.verbose {
		level = logger.WarnLevel
	}

	return logger.NewSlogWriter(cmd.ErrOrStderr(), level, false)
}

// parseEOS accepts lf, cr, none or a decimal or 0x-prefixed byte value.
func parseEOS(s string) (byte, bool, error) {
	switch strings.ToLower(s) {
	case "lf", "":
		return '\n', true, nil
	case "cr":
		return '\r', true, nil
	case "none":
		return 0, false, nil
	}

	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, false, fmt.Errorf("invalid eos %q", s)
	}

	return byte(v), true, nil
}

func dumpMetrics(cmd *cobra.Command, name string, s *session.Session) error {
	reg := prometheus.NewRegistry()
	for _, c := range s.Metrics().Collectors(prometheus.Labels{"instrument": name}) {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(cmd.ErrOrStderr(), mf); err != nil {
			return err
		}
	}

	return nil
}
