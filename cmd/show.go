package cmd

import (
	"fmt"

	"github.com/mezonai/powchain/block"
	chainerrors "github.com/mezonai/powchain/errors"
	"github.com/mezonai/powchain/jsonx"
	"github.com/spf13/cobra"
)

func newShowCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <HASH>",
		Short: "Print a single block by hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := args[0]
			if !block.IsHashHex(hash) {
				return chainerrors.NewError(chainerrors.ErrCodeInvalidArgument, fmt.Sprintf("%q is not a block hash", hash))
			}

			s, err := root.newSession()
			if err != nil {
				return err
			}
			defer s.close()

			bs, err := s.openStore()
			if err != nil {
				return err
			}
			b, err := bs.Get(hash)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("block %s not found", hash)
			}

			if asJSON {
				return jsonx.WriteIndented(cmd.OutOrStdout(), newBlockView(b))
			}
			printBlock(cmd.OutOrStdout(), b)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the block as JSON")
	return cmd
}
