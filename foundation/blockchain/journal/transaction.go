// Package journal provides the append-only log of reversible state mutations
// shared by every ledger in the node. A ledger defines its own closed set of
// entries over its own state type and uses the journal to group them into
// numbered transactions that can be applied, reverted and serialized.
package journal

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// codecVersion is the first byte of every serialized transaction.
const codecVersion = 1

// Entry is one reversible mutation of state S that targets the record
// identified by K. Revert must be the exact inverse of Apply, using only the
// values stored in the entry. Both re-validate the state they find and
// report false instead of mutating when it doesn't match.
type Entry[S any, K comparable] interface {
	Type() byte
	Target() K
	Apply(state S) bool
	Revert(state S) bool
	Encode(w *Writer)
}

// EntryError reports the entry that stopped a transaction from being
// applied or reverted. The state is left with a partial prefix applied.
type EntryError struct {
	Number    uint64
	Index     int
	Type      byte
	Reverting bool
}

// Error implements the error interface.
func (ee *EntryError) Error() string {
	op := "apply"
	if ee.Reverting {
		op = "revert"
	}

	return fmt.Sprintf("journal: transaction %d: %s entry %d (type %d) failed", ee.Number, op, ee.Index, ee.Type)
}

// =============================================================================

// Transaction is the ordered batch of entries produced by one block.
type Transaction[S any, K comparable] struct {
	number  uint64
	entries []Entry[S, K]
}

// NewTransaction constructs an empty transaction with the specified number.
func NewTransaction[S any, K comparable](number uint64) *Transaction[S, K] {
	return &Transaction[S, K]{number: number}
}

// Number returns the number assigned by the caller, usually the block number.
func (tx *Transaction[S, K]) Number() uint64 {
	return tx.number
}

// Add appends an entry that has already been applied to the state.
func (tx *Transaction[S, K]) Add(entry Entry[S, K]) {
	tx.entries = append(tx.entries, entry)
}

// Len returns the number of entries.
func (tx *Transaction[S, K]) Len() int {
	return len(tx.entries)
}

// Entries returns a copy of the entry list in application order.
func (tx *Transaction[S, K]) Entries() []Entry[S, K] {
	return slices.Clone(tx.entries)
}

// Apply applies every entry in order and stops at the first failure.
func (tx *Transaction[S, K]) Apply(state S) error {
	for i, entry := range tx.entries {
		if !entry.Apply(state) {
			return &EntryError{Number: tx.number, Index: i, Type: entry.Type()}
		}
	}

	return nil
}

// Revert reverts every entry, last entry first, and stops at the first
// failure.
func (tx *Transaction[S, K]) Revert(state S) error {
	return tx.RevertFirst(state, len(tx.entries))
}

// RevertFirst reverts the first n entries, last of them first. It is used
// to undo the prefix applied before a failed Apply.
func (tx *Transaction[S, K]) RevertFirst(state S, n int) error {
	n = min(n, len(tx.entries))

	for i := n - 1; i >= 0; i-- {
		entry := tx.entries[i]
		if !entry.Revert(state) {
			return &EntryError{Number: tx.number, Index: i, Type: entry.Type(), Reverting: true}
		}
	}

	return nil
}

// Affected returns the distinct targets touched by the transaction. With a
// nil compare the targets are returned in first-touch order, otherwise they
// are sorted with compare.
func (tx *Transaction[S, K]) Affected(compare func(a, b K) int) []K {
	seen := make(map[K]struct{}, len(tx.entries))
	targets := make([]K, 0, len(tx.entries))

	for _, entry := range tx.entries {
		target := entry.Target()
		if _, exists := seen[target]; exists {
			continue
		}
		seen[target] = struct{}{}
		targets = append(targets, target)
	}

	if compare != nil {
		slices.SortFunc(targets, compare)
	}

	return targets
}

// Encode returns the binary form of the transaction.
func (tx *Transaction[S, K]) Encode() []byte {
	w := NewWriter()
	w.PutByte(codecVersion)
	w.PutUint64(tx.number)
	w.PutUvarint(uint64(len(tx.entries)))

	for _, entry := range tx.entries {
		w.PutByte(entry.Type())
		entry.Encode(w)
	}

	return w.Bytes()
}

// DecodeFunc reads one entry, discriminant included, from r.
type DecodeFunc[S any, K comparable] func(r *Reader) (Entry[S, K], error)

// Decode rebuilds a transaction produced by Encode. Any failure wraps
// ErrCorrupt and must be treated as unrecoverable by the caller.
func Decode[S any, K comparable](data []byte, decode DecodeFunc[S, K]) (*Transaction[S, K], error) {
	r := NewReader(data)

	version, err := r.Byte()
	if err != nil {
		return nil, err
	}
	if version != codecVersion {
		return nil, errors.Wrapf(ErrCorrupt, "unsupported codec version %d", version)
	}

	number, err := r.Uint64()
	if err != nil {
		return nil, err
	}

	count, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	if count > uint64(r.Len()) {
		return nil, errors.Wrapf(ErrCorrupt, "entry count %d exceeds data", count)
	}

	tx := NewTransaction[S, K](number)
	for i := range count {
		entry, err := decode(r)
		if err != nil {
			return nil, errors.WithMessagef(err, "transaction %d: entry %d", number, i)
		}
		tx.Add(entry)
	}

	if r.Len() != 0 {
		return nil, errors.Wrapf(ErrCorrupt, "transaction %d: %d trailing bytes", number, r.Len())
	}

	return tx, nil
}

// IncorrectType is returned by a ledger's decoder for a discriminant that
// names no entry in its set.
func IncorrectType(got byte) error {
	return errors.Wrapf(ErrCorrupt, "incorrect entry type %d", got)
}
