package database

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/ixledger/node/foundation/blockchain/journal"
)

// Chunk is one piece of the ledger sent to a node that is syncing.
type Chunk struct {
	BlockNum uint64
	Index    uint32
	Accounts []Account
}

// Chunks splits the ledger into chunks of at most size accounts, in the
// order of their ids. A size of zero returns a single chunk.
func (db *Database) Chunks(size int, blockNum uint64) []Chunk {
	db.mu.Lock()
	defer db.mu.Unlock()

	ids := db.sortedIDs()
	if size <= 0 {
		size = max(len(ids), 1)
	}

	chunks := make([]Chunk, 0, len(ids)/size+1)
	for start := 0; start < len(ids) || len(chunks) == 0; start += size {
		end := min(start+size, len(ids))

		accounts := make([]Account, 0, end-start)
		for _, id := range ids[start:end] {
			accounts = append(accounts, db.ledger.accounts[id].Clone())
		}

		chunks = append(chunks, Chunk{
			BlockNum: blockNum,
			Index:    uint32(len(chunks)),
			Accounts: accounts,
		})
	}

	return chunks
}

// Clear drops every account without journaling it, so the chunks of a
// snapshot replace the ledger instead of merging with the genesis
// balances. Like ApplyChunk it is only allowed before any block is
// processed.
func (db *Database) Clear() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.journal.InTransaction() || db.journal.HistoryLen() > 0 {
		return ErrChunkAfterSync
	}

	db.ledger.accounts = make(map[AccountID]Account)
	db.purge()
	accountCount.WithLabelValues().Set(0)

	return nil
}

// ApplyChunk inserts or replaces the accounts without journaling them. It
// is only allowed while the node syncs, before any block is processed.
func (db *Database) ApplyChunk(accounts []Account) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.journal.InTransaction() || db.journal.HistoryLen() > 0 {
		return ErrChunkAfterSync
	}

	for _, acct := range accounts {
		if err := validateAccount(acct); err != nil {
			return fmt.Errorf("apply chunk: %w", err)
		}
	}

	for _, acct := range accounts {
		if acct.IsEmpty() {
			delete(db.ledger.accounts, acct.ID)
			continue
		}
		db.ledger.accounts[acct.ID] = acct.Clone()
	}

	db.purge()
	accountCount.WithLabelValues().Set(float64(len(db.ledger.accounts)))
	db.evHandler("database: ApplyChunk: accounts[%d]: applied", len(accounts))

	return nil
}

// =============================================================================

// MarshalBinary implements encoding.BinaryMarshaler. Chunks are snappy
// compressed since they are sent over the network.
func (c Chunk) MarshalBinary() ([]byte, error) {
	w := journal.NewWriter()
	w.PutUint64(c.BlockNum)
	w.PutUint64(uint64(c.Index))
	w.PutUvarint(uint64(len(c.Accounts)))
	for _, acct := range c.Accounts {
		encodeAccount(w, acct)
	}

	return snappy.Encode(nil, w.Bytes()), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (c *Chunk) UnmarshalBinary(data []byte) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return errors.Wrap(journal.ErrCorrupt, err.Error())
	}

	r := journal.NewReader(raw)

	blockNum, err := r.Uint64()
	if err != nil {
		return err
	}

	index, err := r.Uint64()
	if err != nil {
		return err
	}

	count, err := r.Uvarint()
	if err != nil {
		return err
	}
	if count > uint64(r.Len()) {
		return errors.Wrapf(journal.ErrCorrupt, "chunk account count %d exceeds data", count)
	}

	accounts := make([]Account, 0, count)
	for range count {
		acct, err := decodeAccount(r)
		if err != nil {
			return err
		}
		accounts = append(accounts, acct)
	}

	if r.Len() != 0 {
		return errors.Wrapf(journal.ErrCorrupt, "chunk: %d trailing bytes", r.Len())
	}

	*c = Chunk{
		BlockNum: blockNum,
		Index:    uint32(index),
		Accounts: accounts,
	}

	return nil
}
