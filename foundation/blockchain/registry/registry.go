// Package registry maintains the hierarchical name registry. It is journaled
// the same way as the account ledger so the names registered by a block can
// be reverted during a reorganization, and it produces its own checksums.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/hasher"
	"github.com/ixledger/node/foundation/blockchain/journal"
	"github.com/ixledger/node/foundation/metrics"
)

// ProtocolTag seeds every checksum the registry produces.
const ProtocolTag = database.ProtocolTag + "-NAMES"

// EventHandler defines a function that is called when events occur in the
// processing of the registry.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to construct the registry.
type Config struct {
	BlockVersion uint32
	HistoryDepth int
	EvHandler    EventHandler
}

// Registry manages the names registered on the blockchain.
type Registry struct {
	mu sync.Mutex

	table        *table
	journal      *journal.Journal[*table, NameID]
	blockVersion uint32
	evHandler    EventHandler
	checksum     []byte
}

// New constructs an empty registry.
func New(cfg Config) *Registry {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	blockVersion := cfg.BlockVersion
	if blockVersion == 0 {
		blockVersion = database.CurrentBlockVersion
	}

	r := Registry{
		journal:      journal.New[*table, NameID](cfg.HistoryDepth),
		blockVersion: blockVersion,
		evHandler:    ev,
	}
	r.table = newTable(r.invalidate)

	return &r
}

// Reset drops every name and the journal.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.journal.Reset()
	r.table.names = make(map[NameID]Name)
	r.checksum = nil
	nameCount.WithLabelValues().Set(0)
}

func (r *Registry) invalidate(NameID) {
	r.checksum = nil
}

// BlockVersion returns the protocol version the registry is operating at.
func (r *Registry) BlockVersion() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.blockVersion
}

// SetBlockVersion changes the protocol version.
func (r *Registry) SetBlockVersion(version uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.blockVersion != version {
		r.blockVersion = version
		r.checksum = nil
	}
}

// Lookup returns a copy of the registered name.
func (r *Registry) Lookup(name string) (Name, bool) {
	return r.LookupID(ToNameID(name))
}

// LookupID returns a copy of the name with the specified id.
func (r *Registry) LookupID(id NameID) (Name, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.table.names[id]
	if !exists {
		return Name{}, false
	}

	return n.Clone(), true
}

// Count returns the number of registered names.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.table.names)
}

// Names returns a copy of every registered name in id order.
func (r *Registry) Names() []Name {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.sortedIDs()
	names := make([]Name, len(ids))
	for i, id := range ids {
		names[i] = r.table.names[id].Clone()
	}

	return names
}

func (r *Registry) sortedIDs() []NameID {
	return slices.SortedFunc(maps.Keys(r.table.names), compareNameIDs)
}

// =============================================================================

// Register adds a new name. A subname can only be registered once its
// parent exists.
func (r *Registry) Register(name string, owner database.AccountID, recovery database.AccountID, capacity uint32, expiration uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ValidateName(name); err != nil {
		r.evHandler("registry: Register: name[%s]: ERROR: %s", name, err)
		return false
	}

	if capacity > MaxCapacity {
		r.evHandler("registry: Register: name[%s]: ERROR: capacity %d over %d", name, capacity, MaxCapacity)
		return false
	}

	if parent, found := Parent(name); found {
		if _, exists := r.table.names[ToNameID(parent)]; !exists {
			r.evHandler("registry: Register: name[%s]: ERROR: %s", name, ErrNoParent)
			return false
		}
	}

	snapshot := Name{
		ID:         ToNameID(name),
		Name:       name,
		Owner:      owner,
		Recovery:   recovery,
		Capacity:   capacity,
		Expiration: expiration,
	}

	return r.applyEntries(CreateEntry{Snapshot: snapshot})
}

// UpdateData replaces the data of the name. The data can't be larger than
// the capacity of the name.
func (r *Registry) UpdateData(name string, data []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.find("UpdateData", name)
	if !exists {
		return false
	}

	if bytes.Equal(n.Data, data) {
		return true
	}

	return r.applyEntries(DataEntry{ID: n.ID, Old: n.Data, New: bytes.Clone(data)})
}

// TransferOwner hands the name over to a new owner.
func (r *Registry) TransferOwner(name string, owner database.AccountID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.find("TransferOwner", name)
	if !exists {
		return false
	}

	if n.Owner == owner {
		return true
	}

	return r.applyEntries(OwnerEntry{ID: n.ID, Old: n.Owner, New: owner})
}

// ChangeRecovery sets the account able to recover the name.
func (r *Registry) ChangeRecovery(name string, recovery database.AccountID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.find("ChangeRecovery", name)
	if !exists {
		return false
	}

	if n.Recovery == recovery {
		return true
	}

	return r.applyEntries(RecoveryEntry{ID: n.ID, Old: n.Recovery, New: recovery})
}

// ExtendExpiration moves the expiration of the name to a later block. A
// name that never expires can't be extended.
func (r *Registry) ExtendExpiration(name string, expiration uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.find("ExtendExpiration", name)
	if !exists {
		return false
	}

	if n.Expiration == 0 || expiration <= n.Expiration {
		r.evHandler("registry: ExtendExpiration: name[%s]: ERROR: %d doesn't extend %d", name, expiration, n.Expiration)
		return false
	}

	return r.applyEntries(ExpirationEntry{ID: n.ID, Old: n.Expiration, New: expiration})
}

// UpdateCapacity changes the number of data bytes the name can hold. It
// can't drop below the size of the current data.
func (r *Registry) UpdateCapacity(name string, capacity uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.find("UpdateCapacity", name)
	if !exists {
		return false
	}

	if n.Capacity == capacity {
		return true
	}

	return r.applyEntries(CapacityEntry{ID: n.ID, Old: n.Capacity, New: capacity})
}

// Remove deletes the name. A name with registered subnames can't be
// removed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.find("Remove", name)
	if !exists {
		return false
	}

	if r.hasChildren(name) {
		r.evHandler("registry: Remove: name[%s]: ERROR: name has subnames", name)
		return false
	}

	return r.applyEntries(DestroyEntry{Snapshot: n.Clone()})
}

// RemoveExpired deletes every name expired at the block number, subnames
// before their parents, and returns how many were removed.
func (r *Registry) RemoveExpired(blockNum uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []Name
	for _, id := range r.sortedIDs() {
		if n := r.table.names[id]; n.Expired(blockNum) {
			expired = append(expired, n)
		}
	}

	// Deeper names go first so a parent is never removed before its
	// subnames. The sort is stable to keep id order within a depth.
	slices.SortStableFunc(expired, func(a, b Name) int {
		return depth(b.Name) - depth(a.Name)
	})

	var removed int
	for _, n := range expired {
		if r.hasChildren(n.Name) {
			continue
		}

		if r.applyEntries(DestroyEntry{Snapshot: n.Clone()}) {
			removed++
		}
	}

	if removed > 0 {
		r.evHandler("registry: RemoveExpired: blk[%d]: removed[%d]", blockNum, removed)
	}

	return removed
}

// =============================================================================

// find returns the stored name, logging when it doesn't exist.
func (r *Registry) find(op string, name string) (Name, bool) {
	n, exists := r.table.names[ToNameID(name)]
	if !exists {
		r.evHandler("registry: %s: name[%s]: ERROR: name doesn't exist", op, name)
		return Name{}, false
	}

	return n, true
}

// hasChildren reports whether a subname of the name is registered.
func (r *Registry) hasChildren(name string) bool {
	for _, n := range r.table.names {
		if parent, found := Parent(n.Name); found && parent == name {
			return true
		}
	}

	return false
}

func depth(name string) int {
	return strings.Count(name, ".") + 1
}

// applyEntries applies the entries in order and records them in the open
// transaction. When one fails the ones applied before it are reverted.
func (r *Registry) applyEntries(entries ...Entry) bool {
	for i, entry := range entries {
		if entry.Apply(r.table) {
			continue
		}

		entriesFailed.WithLabelValues(TypeName(entry.Type())).Inc()
		r.evHandler("registry: apply: name[%s]: entry[%s]: FAILED", entry.Target(), TypeName(entry.Type()))

		for j := i - 1; j >= 0; j-- {
			if !entries[j].Revert(r.table) {
				r.evHandler("registry: apply: name[%s]: entry[%s]: FATAL: undo failed", entries[j].Target(), TypeName(entries[j].Type()))
			}
		}
		return false
	}

	for _, entry := range entries {
		r.journal.Record(entry)
		entriesApplied.WithLabelValues(TypeName(entry.Type())).Inc()
	}

	return true
}

// =============================================================================

// BeginTransaction opens the transaction that records every change made
// for the specified block.
func (r *Registry) BeginTransaction(number uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.journal.Begin(number); err != nil {
		r.evHandler("registry: BeginTransaction: blk[%d]: ERROR: %s", number, err)
		return false
	}

	return true
}

// InTransaction reports whether a transaction is open.
func (r *Registry) InTransaction() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.journal.InTransaction()
}

// CommitTransaction archives the open transaction into the history.
func (r *Registry) CommitTransaction(number uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted, err := r.journal.Commit(number)
	if err != nil {
		r.evHandler("registry: CommitTransaction: blk[%d]: ERROR: %s", number, err)
		return false
	}

	if evicted != nil {
		r.evHandler("registry: CommitTransaction: blk[%d]: evicted blk[%d] from history", number, evicted.Number())
	}

	nameCount.WithLabelValues().Set(float64(len(r.table.names)))
	return true
}

// RevertTransaction undoes the open transaction or the most recently
// committed one.
func (r *Registry) RevertTransaction(number uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.journal.Revert(r.table, number); err != nil {
		var ee *journal.EntryError
		if errors.As(err, &ee) {
			entriesFailed.WithLabelValues(TypeName(ee.Type)).Inc()
			r.evHandler("registry: RevertTransaction: blk[%d]: FATAL: registry is inconsistent: %s", number, err)
			return false
		}

		r.evHandler("registry: RevertTransaction: blk[%d]: ERROR: %s", number, err)
		return false
	}

	nameCount.WithLabelValues().Set(float64(len(r.table.names)))

	r.evHandler("registry: RevertTransaction: blk[%d]: reverted", number)
	return true
}

// ReplayTransaction applies a transaction read from storage and archives
// it. If an entry fails the registry is left unchanged.
func (r *Registry) ReplayTransaction(tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.journal.InTransaction() {
		return fmt.Errorf("replay blk[%d]: %w", tx.Number(), journal.ErrTransactionOpen)
	}

	if err := tx.Apply(r.table); err != nil {
		var ee *journal.EntryError
		if errors.As(err, &ee) {
			if rerr := tx.RevertFirst(r.table, ee.Index); rerr != nil {
				return fmt.Errorf("replay blk[%d]: %w: undo: %w", tx.Number(), err, rerr)
			}
		}
		return fmt.Errorf("replay blk[%d]: %w", tx.Number(), err)
	}

	if _, err := r.journal.Archive(tx); err != nil {
		return fmt.Errorf("replay blk[%d]: %w", tx.Number(), err)
	}

	nameCount.WithLabelValues().Set(float64(len(r.table.names)))
	return nil
}

// DecodeTransaction rebuilds a transaction from its binary form.
func (r *Registry) DecodeTransaction(data []byte) (*Transaction, error) {
	return journal.Decode(data, decodeEntry)
}

// Transaction returns the binary form of the open or archived transaction
// with the specified number.
func (r *Registry) Transaction(number uint64) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, exists := r.journal.Find(number)
	if !exists {
		return nil, false
	}

	return tx.Encode(), true
}

// HistoryNumbers returns the numbers of the transactions that can still be
// reverted, oldest first.
func (r *Registry) HistoryNumbers() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.journal.Numbers()
}

// =============================================================================

// NameChecksum returns the checksum of a single name for the specified
// block version.
func NameChecksum(n Name, version uint32) []byte {
	if version < database.ChecksumV2Version {
		return hasher.SumLegacy(
			n.ID[:],
			[]byte(n.Name),
			n.Owner.Bytes(),
			n.Recovery.Bytes(),
			[]byte(strconv.FormatUint(uint64(n.Capacity), 10)),
			[]byte(strconv.FormatUint(n.Expiration, 10)),
			n.Data,
		)
	}

	w := journal.NewWriter()
	putNameID(w, n.ID)
	encodeName(w, n)

	return hasher.Sum(w.Bytes())
}

func seed(version uint32) []byte {
	return hasher.Sum([]byte(ProtocolTag + strconv.FormatUint(uint64(version), 10)))
}

// Checksum returns the checksum of the whole registry, folding names in
// the order of their ids.
func (r *Registry) Checksum() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.checksum != nil {
		return bytes.Clone(r.checksum)
	}

	start := time.Now()
	defer metrics.ObserveSince(checksumDuration.WithLabelValues("full"), start)

	acc := seed(r.blockVersion)
	for _, id := range r.sortedIDs() {
		acc = hasher.Sum(acc, NameChecksum(r.table.names[id], r.blockVersion))
	}

	r.checksum = acc
	return bytes.Clone(acc)
}

// DeltaChecksum returns the checksum of the names touched by the open or
// archived transaction, using their current values. A removed name is
// folded as a bare id.
func (r *Registry) DeltaChecksum(number uint64) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, exists := r.journal.Find(number)
	if !exists {
		r.evHandler("registry: DeltaChecksum: blk[%d]: ERROR: transaction not found", number)
		return nil, false
	}

	start := time.Now()
	defer metrics.ObserveSince(checksumDuration.WithLabelValues("delta"), start)

	var order func(a, b NameID) int
	if r.blockVersion < database.AffectedFirstTouchVersion {
		order = compareNameIDs
	}

	acc := seed(r.blockVersion)
	for _, id := range tx.Affected(order) {
		n, exists := r.table.names[id]
		if !exists {
			n = Name{ID: id}
		}
		acc = hasher.Sum(acc, NameChecksum(n, r.blockVersion))
	}

	return acc, true
}
