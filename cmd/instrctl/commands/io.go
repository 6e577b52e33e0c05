package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-instr/session"
)

// DefaultMaxRead bounds a single response read.
const DefaultMaxRead = 1 << 20

// command joins args into one program message terminated by a newline.
func command(args []string) string {
	msg := strings.Join(args, " ")
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	return msg
}

func newWriteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "write <command>...",
		Short: "Send a program message",
		Example: `  instrctl -a 192.0.2.5 write '*RST'
  instrctl -a dmm write CONF:VOLT:DC 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Session) error {
				_, err := s.WriteString(command(args))
				return err
			})
		},
	}
}

func newReadCmd(opts *rootOptions) *cobra.Command {
	var maxLen int

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read one response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(s *session.Session) error {
				resp, err := s.ReadString(maxLen)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), resp)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&maxLen, "max", "m", DefaultMaxRead, "maximum response length")

	return cmd
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var maxLen int

	cmd := &cobra.Command{
		Use:     "query <command>...",
		Short:   "Send a query and print the response",
		Example: `  instrctl -a 192.0.2.5 query '*IDN?'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Session) error {
				resp, err := s.QueryString(command(args), maxLen)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), resp)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&maxLen, "max", "m", DefaultMaxRead, "maximum response length")

	return cmd
}

func newStbCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stb",
		Short: "Serial poll the status byte",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(s *session.Session) error {
				stb, err := s.ReadStatusByte()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d (0x%02X)\n", stb, stb)
				return err
			})
		},
	}
}
