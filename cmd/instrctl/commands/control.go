package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-instr/session"
)

func newClearCmd(opts *rootOptions) *cobra.Command {
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Send a device clear",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(s *session.Session) error {
				return s.Clear(settle)
			})
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", 0, "wait this long after the clear")

	return cmd
}

func newTriggerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Send a group execute trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(s *session.Session) error {
				return s.Trigger()
			})
		},
	}
}

func newLocalCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "local",
		Short: "Return the instrument to front panel control",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(s *session.Session) error {
				return s.Local()
			})
		},
	}
}

func newLockCmd(opts *rootOptions) *cobra.Command {
	var wait, hold time.Duration

	cmd := &cobra.Command{
		Use:   "lock [command]...",
		Short: "Hold the device lock, optionally sending a command under it",
		Long: `Acquire the exclusive VXI-11 device lock, send the optional command,
keep the lock for --hold and release it.`,
		Example: `  instrctl -a 192.0.2.5 lock --wait 5s --hold 30s ':ACQ:SING'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Session) error {
				if err := s.Lock(wait); err != nil {
					return err
				}

				var err error
				if len(args) > 0 {
					_, err = s.WriteString(command(args))
				}
				if err == nil && hold > 0 {
					time.Sleep(hold)
				}

				if uerr := s.Unlock(); err == nil {
					err = uerr
				}

				return err
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "how long to wait for the lock")
	cmd.Flags().DurationVar(&hold, "hold", 0, "how long to keep the lock")

	return cmd
}
