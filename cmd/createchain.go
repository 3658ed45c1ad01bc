package cmd

import (
	"fmt"

	"github.com/mezonai/powchain/logx"
	"github.com/mezonai/powchain/store"
	"github.com/spf13/cobra"
)

type createChainOptions struct {
	data    string
	address string
}

// rewardPayload is the genesis payload crediting the mining reward to address.
func rewardPayload(address string) string {
	return fmt.Sprintf("Reward to '%s'", address)
}

func newCreateChainCmd(root *rootOptions) *cobra.Command {
	opts := &createChainOptions{}

	cmd := &cobra.Command{
		Use:   "createchain [flags]",
		Short: "Mine the genesis block and initialize a new chain",
		Long: `This command mines a genesis block and stores it as the tip of a new chain.
It refuses to run against a directory that already holds a chain.
Examples:
  # Genesis payload from config
  createchain
  # Coinbase-style genesis payload
  createchain --address addr1
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.newSession()
			if err != nil {
				return err
			}
			defer s.close()

			payload := s.node.GenesisPayload
			switch {
			case cmd.Flags().Changed("address"):
				payload = rewardPayload(opts.address)
			case cmd.Flags().Changed("data"):
				payload = opts.data
			}

			bs, err := store.Create(cmd.Context(), s.provider, []byte(payload), s.node.GenesisDifficulty, store.WithMiner(s.miner()))
			if err != nil {
				return err
			}
			genesis, err := bs.TipBlock()
			if err != nil {
				return err
			}

			logx.Info("CMD", "Chain created in ", s.node.DataDir, " with genesis ", genesis.Hash)
			fmt.Fprintf(cmd.OutOrStdout(), "Chain created.\n%s", genesis)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.data, "data", "", "genesis payload")
	cmd.Flags().StringVar(&opts.address, "address", "", "address credited by the genesis payload")
	cmd.MarkFlagsMutuallyExclusive("data", "address")
	return cmd
}
