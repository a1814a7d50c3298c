package state

import (
	"fmt"
	"slices"
)

// RevertBlock undoes the latest block during a reorganization. Its
// transactions go back into the mempool so they can be mined again. Only
// blocks still in the journal history can be reverted, older ones require
// a resync.
func (s *State) RevertBlock(num uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	block := s.latestBlock
	if num == 0 || num != block.Header.Number {
		return fmt.Errorf("blk[%d]: %w, latest is blk[%d]", num, ErrNotLatest, block.Header.Number)
	}

	if !slices.Contains(s.db.HistoryNumbers(), num) || !slices.Contains(s.names.HistoryNumbers(), num) {
		return fmt.Errorf("blk[%d]: %w", num, ErrHistoryExhausted)
	}

	prevBlock, err := s.loadBlock(num - 1)
	if err != nil {
		return fmt.Errorf("blk[%d]: load parent: %w", num, err)
	}

	s.evHandler("state: RevertBlock: blk[%d]: revert journals", num)

	if !s.names.RevertTransaction(num) {
		return fmt.Errorf("blk[%d]: unable to revert registry transaction", num)
	}

	if !s.db.RevertTransaction(num) {
		return fmt.Errorf("blk[%d]: unable to revert ledger transaction, ledger is inconsistent", num)
	}

	s.evHandler("state: RevertBlock: blk[%d]: delete from journal store", num)

	if err := s.store.Delete(num); err != nil {
		return fmt.Errorf("blk[%d]: delete: %w", num, err)
	}

	s.latestBlock = prevBlock
	s.setBlockVersion(prevBlock.Header.Version)
	blockHeight.WithLabelValues().Set(float64(prevBlock.Header.Number))
	blocksReverted.WithLabelValues().Inc()

	for _, tx := range block.Values() {
		delete(s.used, usedKey(tx))
		if _, err := s.mempool.Upsert(tx); err != nil {
			s.evHandler("state: RevertBlock: blk[%d]: requeue tx[%s]: %s", num, tx, err)
		}
	}
	mempoolSize.WithLabelValues().Set(float64(s.mempool.Count()))

	s.evHandler(`viewer: revert: {"number":%d,"hash":%q}`, num, block.Hash())

	return nil
}
