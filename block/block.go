package block

import (
	"fmt"
	"strings"
)

// GenesisPayload is used when a chain is created without an explicit payload.
const GenesisPayload = "Genesis Block"

// Block is a sealed ledger entry. Once returned by the miner it must not be modified.
type Block struct {
	Timestamp  uint64 `json:"timestamp"`  // ms since unix epoch at mining start
	Payload    []byte `json:"payload"`    // opaque data carried by the block
	PrevHash   string `json:"prev_hash"`  // hex hash of the parent, empty for genesis
	Hash       string `json:"hash"`       // hex hash of this block
	Height     uint64 `json:"height"`     // genesis is 0
	Nonce      int64  `json:"nonce"`      // winning proof-of-work counter
	Difficulty uint32 `json:"difficulty"` // leading zero nibbles required when sealed
}

func (b *Block) GetHash() string {
	return b.Hash
}

func (b *Block) GetPrevHash() string {
	return b.PrevHash
}

// IsGenesis reports whether b is the root of a chain.
func (b *Block) IsGenesis() bool {
	return b.PrevHash == "" && b.Height == 0
}

// ComputeHash recomputes the hash from the block's own fields under the given difficulty.
func (b *Block) ComputeHash(difficulty uint32) string {
	return HashHex(b.PrevHash, b.Payload, b.Timestamp, difficulty, b.Nonce)
}

func (b *Block) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Height:     %d\n", b.Height)
	fmt.Fprintf(&sb, "Hash:       %s\n", b.Hash)
	fmt.Fprintf(&sb, "PrevHash:   %s\n", b.PrevHash)
	fmt.Fprintf(&sb, "Timestamp:  %d\n", b.Timestamp)
	fmt.Fprintf(&sb, "Difficulty: %d\n", b.Difficulty)
	fmt.Fprintf(&sb, "Nonce:      %d\n", b.Nonce)
	fmt.Fprintf(&sb, "Payload:    %q\n", b.Payload)
	return sb.String()
}
