package database

import (
	"errors"
	"fmt"

	"github.com/ixledger/node/foundation/blockchain/journal"
)

// BeginTransaction opens the transaction that records every change made
// for the specified block. Only one transaction can be open at a time.
func (db *Database) BeginTransaction(number uint64) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.journal.Begin(number); err != nil {
		db.evHandler("database: BeginTransaction: blk[%d]: ERROR: %s", number, err)
		return false
	}

	db.evHandler("database: BeginTransaction: blk[%d]: opened", number)
	return true
}

// InTransaction reports whether a transaction is open.
func (db *Database) InTransaction() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.journal.InTransaction()
}

// CommitTransaction archives the open transaction into the history so it
// can still be reverted during a reorganization.
func (db *Database) CommitTransaction(number uint64) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, open := db.journal.Open()
	if !open || tx.Number() != number {
		db.evHandler("database: CommitTransaction: blk[%d]: ERROR: not the open transaction", number)
		return false
	}

	// Before empty accounts were reclaimed inside transactions they were
	// reclaimed here, once the block was done with them.
	if db.blockVersion < ReclaimInTransactionVersion {
		for _, id := range tx.Affected(db.affectedOrder()) {
			db.destroyEmpty(id)
		}
	}

	evicted, err := db.journal.Commit(number)
	if err != nil {
		db.evHandler("database: CommitTransaction: blk[%d]: ERROR: %s", number, err)
		return false
	}

	if evicted != nil {
		db.evHandler("database: CommitTransaction: blk[%d]: evicted blk[%d] from history", number, evicted.Number())
	}

	historyDepth.WithLabelValues().Set(float64(db.journal.HistoryLen()))
	accountCount.WithLabelValues().Set(float64(len(db.ledger.accounts)))

	db.evHandler("database: CommitTransaction: blk[%d]: entries[%d]: committed", number, tx.Len())
	return true
}

// RevertTransaction undoes the transaction with the specified number. The
// open transaction is checked first, then the history where only the most
// recently committed transaction can be reverted. A transaction evicted
// from history can't be reverted and the caller has to resync.
func (db *Database) RevertTransaction(number uint64) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.journal.Revert(db.ledger, number); err != nil {
		var ee *journal.EntryError
		if errors.As(err, &ee) {
			entriesFailed.WithLabelValues(TypeName(ee.Type)).Inc()
			db.evHandler("database: RevertTransaction: blk[%d]: FATAL: ledger is inconsistent: %s", number, err)
			return false
		}

		db.evHandler("database: RevertTransaction: blk[%d]: ERROR: %s", number, err)
		return false
	}

	historyDepth.WithLabelValues().Set(float64(db.journal.HistoryLen()))
	accountCount.WithLabelValues().Set(float64(len(db.ledger.accounts)))

	db.evHandler("database: RevertTransaction: blk[%d]: reverted", number)
	return true
}

// ReplayTransaction applies a transaction read from storage and archives
// it as if it had been committed. If an entry fails the entries applied
// before it are reverted and the ledger is left unchanged.
func (db *Database) ReplayTransaction(tx *Transaction) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.journal.InTransaction() {
		return fmt.Errorf("replay blk[%d]: %w", tx.Number(), journal.ErrTransactionOpen)
	}

	if err := tx.Apply(db.ledger); err != nil {
		var ee *journal.EntryError
		if errors.As(err, &ee) {
			entriesFailed.WithLabelValues(TypeName(ee.Type)).Inc()
			if rerr := tx.RevertFirst(db.ledger, ee.Index); rerr != nil {
				return fmt.Errorf("replay blk[%d]: %w: undo: %w", tx.Number(), err, rerr)
			}
		}
		return fmt.Errorf("replay blk[%d]: %w", tx.Number(), err)
	}

	if _, err := db.journal.Archive(tx); err != nil {
		return fmt.Errorf("replay blk[%d]: %w", tx.Number(), err)
	}

	historyDepth.WithLabelValues().Set(float64(db.journal.HistoryLen()))
	accountCount.WithLabelValues().Set(float64(len(db.ledger.accounts)))

	return nil
}

// DecodeTransaction rebuilds a transaction from its binary form. An error
// means the data is corrupt and must not be trusted.
func (db *Database) DecodeTransaction(data []byte) (*Transaction, error) {
	return journal.Decode(data, decodeEntry)
}

// Transaction returns the binary form of the open or archived transaction
// with the specified number.
func (db *Database) Transaction(number uint64) ([]byte, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, exists := db.journal.Find(number)
	if !exists {
		return nil, false
	}

	return tx.Encode(), true
}

// HistoryNumbers returns the numbers of the transactions that can still be
// reverted, oldest first.
func (db *Database) HistoryNumbers() []uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.journal.Numbers()
}

// affectedOrder returns the ordering of affected accounts for the current
// block version. A nil function keeps first-touch order.
func (db *Database) affectedOrder() func(a, b AccountID) int {
	if db.blockVersion < AffectedFirstTouchVersion {
		return compareAccountIDs
	}

	return nil
}
