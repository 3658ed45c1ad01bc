package store

import (
	"fmt"

	"github.com/mezonai/powchain/block"
	chainerrors "github.com/mezonai/powchain/errors"
	"github.com/mezonai/powchain/monitoring"
)

// ChainIterator walks from a block back to genesis following PrevHash links.
// It is single use:
//
//	it := s.Iterator(tip)
//	for it.Next() {
//		b := it.Block()
//	}
//	if err := it.Err(); err != nil { ... }
type ChainIterator struct {
	store   *GenericBlockStore
	next    string
	current *block.Block
	err     error
	done    bool
}

// Iterator returns a lazy iterator starting at hash. An empty hash yields nothing.
func (s *GenericBlockStore) Iterator(hash string) *ChainIterator {
	return &ChainIterator{
		store: s,
		next:  hash,
		done:  hash == "",
	}
}

// Next loads the next block. It returns false at genesis or on error.
func (it *ChainIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	b, err := it.store.Get(it.next)
	if err != nil {
		it.fail(err)
		return false
	}
	if b == nil {
		if it.current == nil {
			it.fail(chainerrors.Newf(chainerrors.ErrCodeChainIntegrity, chainerrors.ErrMsgTipMissing, it.next))
		} else {
			it.fail(chainerrors.Newf(chainerrors.ErrCodeChainIntegrity, chainerrors.ErrMsgDanglingPrevHash, it.current.Hash, it.next))
		}
		return false
	}

	if it.current != nil && b.Height+1 != it.current.Height {
		it.fail(chainerrors.NewError(chainerrors.ErrCodeChainIntegrity,
			fmt.Sprintf("block %s at height %d has parent %s at height %d", it.current.Hash, it.current.Height, b.Hash, b.Height)))
		return false
	}
	if b.PrevHash == "" && b.Height != 0 {
		it.fail(chainerrors.NewError(chainerrors.ErrCodeChainIntegrity,
			fmt.Sprintf("block %s at height %d has no parent", b.Hash, b.Height)))
		return false
	}
	if b.PrevHash != "" && b.Height == 0 {
		it.fail(chainerrors.NewError(chainerrors.ErrCodeChainIntegrity,
			fmt.Sprintf("block %s at height 0 references parent %s", b.Hash, b.PrevHash)))
		return false
	}

	it.current = b
	it.next = b.PrevHash
	it.done = b.PrevHash == ""
	return true
}

// Block returns the block loaded by the last successful Next.
func (it *ChainIterator) Block() *block.Block {
	return it.current
}

// Err returns the error that stopped the iteration, if any.
func (it *ChainIterator) Err() error {
	return it.err
}

// Collect drains the iterator.
func (it *ChainIterator) Collect() ([]*block.Block, error) {
	var blocks []*block.Block
	for it.Next() {
		blocks = append(blocks, it.Block())
	}
	return blocks, it.Err()
}

func (it *ChainIterator) fail(err error) {
	monitoring.RecordStoreError(monitoring.StoreOpIterate)
	it.err = err
	it.current = nil
}
