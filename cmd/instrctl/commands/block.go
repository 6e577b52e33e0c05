package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-instr/blockdata"
	"github.com/arloliu/go-instr/session"
)

func parseBlockMode(s string) (blockdata.Mode, error) {
	for _, m := range []blockdata.Mode{blockdata.Either, blockdata.DefiniteOnly, blockdata.IndefiniteOnly} {
		if m.String() == s {
			return m, nil
		}
	}

	return 0, fmt.Errorf("invalid block mode %q", s)
}

// queryBlock sends query and decodes the block data response.
func queryBlock(s *session.Session, query string, maxLen int, mode blockdata.Mode) ([]byte, error) {
	resp, err := s.Query([]byte(query), maxLen)
	if err != nil {
		return nil, err
	}

	payload, _, err := blockdata.Decode(resp, mode)
	if err != nil {
		return nil, err
	}

	return payload, nil
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	var w io.Writer = cmd.OutOrStdout()
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	_, err := w.Write(data)

	return err
}

func newBlockCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		mode   string
		maxLen int
	)

	cmd := &cobra.Command{
		Use:   "block <query>...",
		Short: "Fetch a block data response and write its payload",
		Example: `  # Save a screenshot
  instrctl -a scope block ':DISP:DATA? PNG' -o screen.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseBlockMode(mode)
			if err != nil {
				return err
			}

			return withSession(cmd, opts, func(s *session.Session) error {
				payload, err := queryBlock(s, command(args), maxLen, m)
				if err != nil {
					return err
				}

				return writeOutput(cmd, output, payload)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file")
	cmd.Flags().StringVar(&mode, "mode", blockdata.Either.String(), "accepted block form (either|definite|indefinite)")
	cmd.Flags().IntVarP(&maxLen, "max", "m", 64*DefaultMaxRead, "maximum response length")

	return cmd
}
