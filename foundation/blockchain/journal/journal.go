package journal

import (
	"github.com/pkg/errors"
)

// Set of errors returned by the journal lifecycle.
var (
	ErrTransactionOpen     = errors.New("journal: transaction already open")
	ErrNoTransaction       = errors.New("journal: no open transaction")
	ErrTransactionNotFound = errors.New("journal: transaction not found")
	ErrNotNewest           = errors.New("journal: transaction is not the newest")
)

// Journal tracks the open transaction of a ledger and the history of
// committed ones. It doesn't lock; the owning ledger serializes access.
type Journal[S any, K comparable] struct {
	open    *Transaction[S, K]
	history *History[S, K]
}

// New constructs a journal that keeps depth committed transactions.
func New[S any, K comparable](depth int) *Journal[S, K] {
	return &Journal[S, K]{
		history: NewHistory[S, K](depth),
	}
}

// Depth returns the number of committed transactions kept for reversal.
func (j *Journal[S, K]) Depth() int {
	return j.history.Capacity()
}

// Begin opens a new transaction. Only one may be open at a time.
func (j *Journal[S, K]) Begin(number uint64) error {
	if j.open != nil {
		return errors.Wrapf(ErrTransactionOpen, "begin %d: %d is open", number, j.open.number)
	}

	j.open = NewTransaction[S, K](number)
	return nil
}

// Open returns the open transaction.
func (j *Journal[S, K]) Open() (*Transaction[S, K], bool) {
	return j.open, j.open != nil
}

// InTransaction reports whether a transaction is open.
func (j *Journal[S, K]) InTransaction() bool {
	return j.open != nil
}

// Record appends an applied entry to the open transaction. It reports
// false when no transaction is open and the entry wasn't recorded.
func (j *Journal[S, K]) Record(entry Entry[S, K]) bool {
	if j.open == nil {
		return false
	}

	j.open.Add(entry)
	return true
}

// Commit moves the open transaction into history. The transaction pushed
// out of history, if any, is returned.
func (j *Journal[S, K]) Commit(number uint64) (*Transaction[S, K], error) {
	if j.open == nil {
		return nil, errors.Wrapf(ErrNoTransaction, "commit %d", number)
	}

	if j.open.number != number {
		return nil, errors.Wrapf(ErrTransactionNotFound, "commit %d: %d is open", number, j.open.number)
	}

	tx := j.open
	j.open = nil
	return j.history.Push(tx), nil
}

// Revert undoes the transaction with the specified number. The open
// transaction is checked first, then history, where only the newest
// committed transaction can be reverted. A transaction that fails to
// revert stays open or in history.
func (j *Journal[S, K]) Revert(state S, number uint64) error {
	if j.open != nil {
		if j.open.number != number {
			return errors.Wrapf(ErrTransactionOpen, "revert %d: %d is open", number, j.open.number)
		}

		if err := j.open.Revert(state); err != nil {
			return err
		}

		j.open = nil
		return nil
	}

	if _, exists := j.history.Find(number); !exists {
		return errors.Wrapf(ErrTransactionNotFound, "revert %d", number)
	}

	newest, _ := j.history.Newest()
	if newest.number != number {
		return errors.Wrapf(ErrNotNewest, "revert %d: newest is %d", number, newest.number)
	}

	if err := newest.Revert(state); err != nil {
		return err
	}

	j.history.PopNewest()
	return nil
}

// Find returns the open or committed transaction with the specified number.
func (j *Journal[S, K]) Find(number uint64) (*Transaction[S, K], bool) {
	if j.open != nil && j.open.number == number {
		return j.open, true
	}

	return j.history.Find(number)
}

// Archive pushes an already applied transaction straight into history. It
// is used when replaying transactions read from storage.
func (j *Journal[S, K]) Archive(tx *Transaction[S, K]) (*Transaction[S, K], error) {
	if j.open != nil {
		return nil, errors.Wrapf(ErrTransactionOpen, "archive %d: %d is open", tx.number, j.open.number)
	}

	return j.history.Push(tx), nil
}

// Numbers returns the committed transaction numbers, oldest first.
func (j *Journal[S, K]) Numbers() []uint64 {
	return j.history.Numbers()
}

// HistoryLen returns the number of committed transactions held.
func (j *Journal[S, K]) HistoryLen() int {
	return j.history.Len()
}

// Reset drops the open transaction and every committed transaction.
func (j *Journal[S, K]) Reset() {
	j.open = nil
	j.history.Reset()
}
