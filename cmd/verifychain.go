package cmd

import (
	"fmt"

	"github.com/mezonai/powchain/jsonx"
	"github.com/spf13/cobra"
)

func newVerifyChainCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verifychain",
		Short: "Check links, heights, timestamps and proof of work of the whole chain",
		Args:  cobra.NoArgs,
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
			stats, err := bs.Verify(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return jsonx.WriteIndented(out, stats)
			}
			fmt.Fprintf(out, "Chain OK\nTip:             %s\nHeight:          %d\nBlocks:          %d\nCumulative work: %s\n",
				stats.TipHash, stats.Height, stats.Blocks, stats.CumulativeWork.Dec())
			if stats.Orphans > 0 {
				fmt.Fprintf(out, "Orphans:         %d\n", stats.Orphans)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
