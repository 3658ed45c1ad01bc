package cmd

import (
	"fmt"
	"io"

	"github.com/mezonai/powchain/block"
	"github.com/mezonai/powchain/jsonx"
	"github.com/spf13/cobra"
)

// blockView is the JSON shape of a block with its payload rendered as text.
type blockView struct {
	Height     uint64 `json:"height"`
	Hash       string `json:"hash"`
	PrevHash   string `json:"prev_hash"`
	Timestamp  uint64 `json:"timestamp"`
	Difficulty uint32 `json:"difficulty"`
	Nonce      int64  `json:"nonce"`
	Payload    string `json:"payload"`
}

func newBlockView(b *block.Block) blockView {
	return blockView{
		Height:     b.Height,
		Hash:       b.Hash,
		PrevHash:   b.PrevHash,
		Timestamp:  b.Timestamp,
		Difficulty: b.Difficulty,
		Nonce:      b.Nonce,
		Payload:    string(b.Payload),
	}
}

func printBlock(w io.Writer, b *block.Block) {
	fmt.Fprintf(w, "%s\n", b)
}

func newPrintChainCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "printchain",
		Short: "Print every block from the tip back to genesis",
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
			tip, err := bs.Tip()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			it := bs.Iterator(tip)
			if !asJSON {
				for it.Next() {
					printBlock(out, it.Block())
				}
				return it.Err()
			}

			views := []blockView{}
			for it.Next() {
				views = append(views, newBlockView(it.Block()))
			}
			if err := it.Err(); err != nil {
				return err
			}
			return jsonx.WriteIndented(out, views)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the chain as a JSON array")
	return cmd
}
