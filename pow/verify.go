package pow

import (
	"fmt"

	"github.com/mezonai/powchain/block"
	chainerrors "github.com/mezonai/powchain/errors"
)

// Validate recomputes b's hash under difficulty and reports whether it both
// matches the stored hash and satisfies the difficulty.
func Validate(b *block.Block, difficulty uint32) bool {
	return Check(b, difficulty) == nil
}

// Check is Validate with a reason. Failures carry the ChainIntegrity code.
func Check(b *block.Block, difficulty uint32) error {
	if b == nil {
		return chainerrors.NewError(chainerrors.ErrCodeInvalidArgument, "nil block")
	}
	computed := b.ComputeHash(difficulty)
	if computed != b.Hash {
		return chainerrors.NewError(chainerrors.ErrCodeChainIntegrity,
			fmt.Sprintf("block %d hash mismatch: stored %s, computed %s", b.Height, b.Hash, computed))
	}
	if !block.MeetsDifficulty(b.Hash, difficulty) {
		return chainerrors.NewError(chainerrors.ErrCodeChainIntegrity,
			fmt.Sprintf("block %d hash %s does not meet difficulty %d", b.Height, b.Hash, difficulty))
	}
	return nil
}
