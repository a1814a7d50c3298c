package state

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ixledger/node/foundation/blockchain/journal"
	"github.com/ixledger/node/foundation/blockchain/journaldb"
)

// restore replays every persisted block on top of the genesis ledger, or
// the latest persisted snapshot, and checks each one against the checksums
// it carries. The store is trusted
// to be in block order, any gap or mismatch is reported as corruption.
func (s *State) restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: restore: started")

	if err := s.restoreSnapshot(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	err := s.store.ForEach(journaldb.Header, func(num uint64, data []byte) error {
		if num <= s.base.Header.Number {
			return nil
		}

		latest := s.latestBlock

		block, err := decodeBlock(num, data)
		if err != nil {
			return errors.Wrap(journal.ErrCorrupt, err.Error())
		}

		if num != latest.Header.Number+1 || block.Header.PrevBlockHash != latest.Hash() {
			return errors.Wrapf(journal.ErrCorrupt, "blk[%d] doesn't follow blk[%d]", num, latest.Header.Number)
		}

		rec, err := s.store.Read(num)
		if err != nil {
			return errors.Wrapf(err, "blk[%d]", num)
		}

		s.setBlockVersion(block.Header.Version)

		walletsTx, err := s.db.DecodeTransaction(rec.Wallets)
		if err != nil {
			return errors.Wrapf(err, "blk[%d]: wallets", num)
		}

		namesTx, err := s.names.DecodeTransaction(rec.Names)
		if err != nil {
			return errors.Wrapf(err, "blk[%d]: names", num)
		}

		if walletsTx.Number() != num || namesTx.Number() != num {
			return errors.Wrapf(journal.ErrCorrupt, "blk[%d]: journal holds blk[%d] and blk[%d]", num, walletsTx.Number(), namesTx.Number())
		}

		if err := s.db.ReplayTransaction(walletsTx); err != nil {
			return err
		}

		if err := s.names.ReplayTransaction(namesTx); err != nil {
			return err
		}

		wallets, names, err := s.checksums(num)
		if err != nil {
			return err
		}

		if !block.Header.ChecksumsEqual(wallets, names) {
			return errors.Wrapf(journal.ErrCorrupt, "blk[%d]: %s", num, ErrChecksumMismatch)
		}

		for _, tx := range block.Values() {
			s.used[usedKey(tx)] = num
		}

		s.latestBlock = block
		s.evHandler("state: restore: blk[%d]: replayed", num)

		return nil
	})

	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	blockHeight.WithLabelValues().Set(float64(s.latestBlock.Header.Number))
	s.evHandler("state: restore: completed: latest blk[%d]", s.latestBlock.Header.Number)

	return nil
}

// restoreSnapshot loads the latest persisted snapshot, if any.
func (s *State) restoreSnapshot() error {
	num, data, found, err := s.store.LatestSnapshot()
	if err != nil {
		return err
	}

	if !found {
		return nil
	}

	var snap Snapshot
	if err := snap.UnmarshalBinary(data); err != nil {
		return errors.Wrapf(err, "snapshot blk[%d]", num)
	}

	if snap.Block.Header.Number != num {
		return errors.Wrapf(journal.ErrCorrupt, "snapshot blk[%d] holds blk[%d]", num, snap.Block.Header.Number)
	}

	if err := s.loadSnapshot(snap); err != nil {
		return errors.Wrap(journal.ErrCorrupt, err.Error())
	}

	s.evHandler("state: restore: snapshot blk[%d]: loaded", num)

	return nil
}
