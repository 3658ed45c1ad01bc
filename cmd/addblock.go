package cmd

import (
	"fmt"

	"github.com/mezonai/powchain/logx"
	"github.com/spf13/cobra"
)

func newAddBlockCmd(root *rootOptions) *cobra.Command {
	var difficulty uint32

	cmd := &cobra.Command{
		Use:   "addblock <DATA>",
		Short: "Mine a block carrying DATA on top of the current tip",
		Long: `This command mines a new block on top of the chain tip and advances the tip.
Examples:
  addblock "send 1 to addr2"
  addblock --difficulty 5 "harder block"
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.newSession()
			if err != nil {
				return err
			}
			defer s.close()

			bs, err := s.openStore()
			if err != nil {
				return err
			}

			d := s.mining.Difficulty
			if cmd.Flags().Changed("difficulty") {
				d = difficulty
			}

			b, err := bs.Append(cmd.Context(), []byte(args[0]), d)
			if err != nil {
				return err
			}

			logx.Info("CMD", "Added block ", b.Hash, " at height ", b.Height)
			fmt.Fprintf(cmd.OutOrStdout(), "Block added.\n%s", b)
			return nil
		},
	}

	cmd.Flags().Uint32Var(&difficulty, "difficulty", 0, "leading zero hex digits required (default from mining config)")
	return cmd
}
