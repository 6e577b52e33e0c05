package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-instr/blockdata"
	"github.com/arloliu/go-instr/learnstr"
	"github.com/arloliu/go-instr/session"
)

// ErrCorrupt reports a learn string with records that failed validation.
var ErrCorrupt = errors.New("learn string has corrupt records")

func newLearnCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Save, restore and check learn strings",
		Long: `A learn string is a concatenation of checksummed setup records as
produced by the instrument. It is stored byte for byte as received.`,
	}
	cmd.AddCommand(newLearnSaveCmd(opts), newLearnRestoreCmd(opts), newLearnCheckCmd())

	return cmd
}

func newLearnSaveCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:     "save <query>...",
		Short:   "Read the instrument setup into a file",
		Example: `  instrctl -a scope learn save ':SYSTEM:SETUP?' -o scope.lrn`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Session) error {
				stream, err := queryBlock(s, command(args), 64*DefaultMaxRead, blockdata.Either)
				if err != nil {
					return err
				}

				if err := checkStream(cmd, stream); err != nil && !(force && errors.Is(err, ErrCorrupt)) {
					return err
				}

				return writeOutput(cmd, output, stream)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file")
	cmd.Flags().BoolVar(&force, "force", false, "save even when records fail their checksum")

	return cmd
}

func newLearnRestoreCmd(opts *rootOptions) *cobra.Command {
	var (
		prefix string
		force  bool
	)

	cmd := &cobra.Command{
		Use:     "restore <file>",
		Short:   "Send a saved setup back to the instrument",
		Example: `  instrctl -a scope learn restore scope.lrn --prefix ':SYSTEM:SETUP '`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := checkStream(cmd, stream); err != nil && !(force && errors.Is(err, ErrCorrupt)) {
				return err
			}

			block, err := blockdata.EncodeDefinite(stream)
			if err != nil {
				return err
			}
			msg := append([]byte(prefix), block...)
			msg = append(msg, '\n')

			return withSession(cmd, opts, func(s *session.Session) error {
				_, err := s.Write(msg)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", ":SYSTEM:SETUP ", "command header preceding the block")
	cmd.Flags().BoolVar(&force, "force", false, "restore even when records fail their checksum")

	return cmd
}

func newLearnCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "List the records of a saved setup and validate them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			return checkStream(cmd, stream)
		},
	}
}

// checkStream prints one line per record. Corrupt records are reported and
// skipped; framing errors end the scan.
func checkStream(cmd *cobra.Command, stream []byte) error {
	out := cmd.ErrOrStderr()
	if cmd.Name() == "check" {
		out = cmd.OutOrStdout()
	}

	corrupt := 0
	for off := 0; off < len(stream); {
		rec, n, err := learnstr.ParseOne(stream[off:])
		switch {
		case errors.Is(err, learnstr.ErrChecksum):
			corrupt++
			fmt.Fprintf(out, "%6d  %s %-17s %5d bytes  CORRUPT\n", off, string(rec.Tag), rec.Tag, len(rec.Payload))
		case err != nil:
			return fmt.Errorf("offset %d: %w", off, err)
		default:
			fmt.Fprintf(out, "%6d  %s %-17s %5d bytes  ok\n", off, string(rec.Tag), rec.Tag, len(rec.Payload))
		}
		off += n
	}

	if corrupt > 0 {
		return fmt.Errorf("%w: %d", ErrCorrupt, corrupt)
	}

	return nil
}
