package registry

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/journal"
)

// Entry is one reversible change to the name registry.
type Entry = journal.Entry[*table, NameID]

// Transaction is the set of registry entries recorded for one block.
type Transaction = journal.Transaction[*table, NameID]

// Set of entry type discriminants. These values are written to disk and
// must never be renumbered.
const (
	TypeCreate byte = iota + 1
	TypeDestroy
	TypeData
	TypeOwner
	TypeRecovery
	TypeCapacity
	TypeExpiration
)

var typeNames = map[byte]string{
	TypeCreate:     "create",
	TypeDestroy:    "destroy",
	TypeData:       "data",
	TypeOwner:      "owner",
	TypeRecovery:   "recovery",
	TypeCapacity:   "capacity",
	TypeExpiration: "expiration",
}

// TypeName returns the name of the entry type for logs and metrics.
func TypeName(typ byte) string {
	if name, exists := typeNames[typ]; exists {
		return name
	}
	return "unknown"
}

// =============================================================================

// table is the name map the registry entries mutate.
type table struct {
	names    map[NameID]Name
	onChange func(id NameID)
}

func newTable(onChange func(id NameID)) *table {
	return &table{
		names:    make(map[NameID]Name),
		onChange: onChange,
	}
}

// update applies fn to the stored name. fn reports whether the name held
// the expected value and was changed.
func (t *table) update(id NameID, fn func(n *Name) bool) bool {
	n, exists := t.names[id]
	if !exists || !fn(&n) {
		return false
	}

	t.names[id] = n
	if t.onChange != nil {
		t.onChange(id)
	}
	return true
}

func (t *table) insert(snapshot Name) bool {
	if _, exists := t.names[snapshot.ID]; exists {
		return false
	}

	t.names[snapshot.ID] = snapshot.Clone()
	if t.onChange != nil {
		t.onChange(snapshot.ID)
	}
	return true
}

func (t *table) remove(snapshot Name) bool {
	n, exists := t.names[snapshot.ID]
	if !exists || !n.Equal(snapshot) {
		return false
	}

	delete(t.names, snapshot.ID)
	if t.onChange != nil {
		t.onChange(snapshot.ID)
	}
	return true
}

// =============================================================================

// CreateEntry registers a name with the values of the snapshot.
type CreateEntry struct {
	Snapshot Name
}

func (e CreateEntry) Type() byte           { return TypeCreate }
func (e CreateEntry) Target() NameID       { return e.Snapshot.ID }
func (e CreateEntry) Apply(t *table) bool  { return t.insert(e.Snapshot) }
func (e CreateEntry) Revert(t *table) bool { return t.remove(e.Snapshot) }
func (e CreateEntry) Encode(w *journal.Writer) {
	putNameID(w, e.Snapshot.ID)
	encodeName(w, e.Snapshot)
}

// DestroyEntry removes a name, keeping a snapshot so it can be put back.
type DestroyEntry struct {
	Snapshot Name
}

func (e DestroyEntry) Type() byte           { return TypeDestroy }
func (e DestroyEntry) Target() NameID       { return e.Snapshot.ID }
func (e DestroyEntry) Apply(t *table) bool  { return t.remove(e.Snapshot) }
func (e DestroyEntry) Revert(t *table) bool { return t.insert(e.Snapshot) }
func (e DestroyEntry) Encode(w *journal.Writer) {
	putNameID(w, e.Snapshot.ID)
	encodeName(w, e.Snapshot)
}

// DataEntry replaces the data attached to a name.
type DataEntry struct {
	ID  NameID
	Old []byte
	New []byte
}

func (e DataEntry) Type() byte     { return TypeData }
func (e DataEntry) Target() NameID { return e.ID }

func (e DataEntry) Apply(t *table) bool {
	return t.update(e.ID, func(n *Name) bool { return setData(n, e.Old, e.New) })
}

func (e DataEntry) Revert(t *table) bool {
	return t.update(e.ID, func(n *Name) bool { return setData(n, e.New, e.Old) })
}

func (e DataEntry) Encode(w *journal.Writer) {
	putNameID(w, e.ID)
	w.PutBytes(e.Old)
	w.PutBytes(e.New)
}

func setData(n *Name, expect []byte, value []byte) bool {
	if !bytes.Equal(n.Data, expect) || len(value) > int(n.Capacity) {
		return false
	}

	n.Data = bytes.Clone(value)
	if len(n.Data) == 0 {
		n.Data = nil
	}
	return true
}

// OwnerEntry transfers a name to a new owner.
type OwnerEntry struct {
	ID  NameID
	Old database.AccountID
	New database.AccountID
}

func (e OwnerEntry) Type() byte     { return TypeOwner }
func (e OwnerEntry) Target() NameID { return e.ID }

func (e OwnerEntry) Apply(t *table) bool {
	return t.update(e.ID, func(n *Name) bool { return swap(&n.Owner, e.Old, e.New) })
}

func (e OwnerEntry) Revert(t *table) bool {
	return t.update(e.ID, func(n *Name) bool { return swap(&n.Owner, e.New, e.Old) })
}

func (e OwnerEntry) Encode(w *journal.Writer) {
	putNameID(w, e.ID)
	putAccountID(w, e.Old)
	putAccountID(w, e.New)
}

// RecoveryEntry changes the account allowed to recover a name.
type RecoveryEntry struct {
	ID  NameID
	Old database.AccountID
	New database.AccountID
}

func (e RecoveryEntry) Type() byte     { return TypeRecovery }
func (e RecoveryEntry) Target() NameID { return e.ID }

func (e RecoveryEntry) Apply(t *table) bool {
	return t.update(e.ID, func(n *Name) bool { return swap(&n.Recovery, e.Old, e.New) })
}

func (e RecoveryEntry) Revert(t *table) bool {
	return t.update(e.ID, func(n *Name) bool { return swap(&n.Recovery, e.New, e.Old) })
}

func (e RecoveryEntry) Encode(w *journal.Writer) {
	putNameID(w, e.ID)
	putAccountID(w, e.Old)
	putAccountID(w, e.New)
}

// CapacityEntry changes the number of data bytes a name can hold.
type CapacityEntry struct {
	ID  NameID
	Old uint32
	New uint32
}

func (e CapacityEntry) Type() byte     { return TypeCapacity }
func (e CapacityEntry) Target() NameID { return e.ID }

func (e CapacityEntry) Apply(t *table) bool {
	return t.update(e.ID, func(n *Name) bool { return setCapacity(n, e.Old, e.New) })
}

func (e CapacityEntry) Revert(t *table) bool {
	return t.update(e.ID, func(n *Name) bool { return setCapacity(n, e.New, e.Old) })
}

func (e CapacityEntry) Encode(w *journal.Writer) {
	putNameID(w, e.ID)
	w.PutUint64(uint64(e.Old))
	w.PutUint64(uint64(e.New))
}

func setCapacity(n *Name, expect uint32, value uint32) bool {
	if n.Capacity != expect || value > MaxCapacity || int(value) < len(n.Data) {
		return false
	}

	n.Capacity = value
	return true
}

// ExpirationEntry changes the block a name expires at.
type ExpirationEntry struct {
	ID  NameID
	Old uint64
	New uint64
}

func (e ExpirationEntry) Type() byte     { return TypeExpiration }
func (e ExpirationEntry) Target() NameID { return e.ID }

func (e ExpirationEntry) Apply(t *table) bool {
	return t.update(e.ID, func(n *Name) bool { return swap(&n.Expiration, e.Old, e.New) })
}

func (e ExpirationEntry) Revert(t *table) bool {
	return t.update(e.ID, func(n *Name) bool { return swap(&n.Expiration, e.New, e.Old) })
}

func (e ExpirationEntry) Encode(w *journal.Writer) {
	putNameID(w, e.ID)
	w.PutUint64(e.Old)
	w.PutUint64(e.New)
}

// swap sets *field to value when it holds expect.
func swap[T comparable](field *T, expect T, value T) bool {
	if *field != expect {
		return false
	}

	*field = value
	return true
}

// =============================================================================

func putNameID(w *journal.Writer, id NameID) {
	w.PutBytes(id[:])
}

func readNameID(r *journal.Reader) (NameID, error) {
	b, err := r.Fixed(len(NameID{}))
	if err != nil {
		return NameID{}, err
	}
	return NameID(b), nil
}

func putAccountID(w *journal.Writer, id database.AccountID) {
	w.PutBytes(id.Bytes())
}

func readAccountID(r *journal.Reader) (database.AccountID, error) {
	b, err := r.Fixed(len(database.AccountID{}))
	if err != nil {
		return database.AccountID{}, err
	}
	return database.AccountID(b), nil
}

func encodeName(w *journal.Writer, n Name) {
	w.PutString(n.Name)
	putAccountID(w, n.Owner)
	putAccountID(w, n.Recovery)
	w.PutUint64(uint64(n.Capacity))
	w.PutUint64(n.Expiration)
	w.PutBytes(n.Data)
}

func decodeName(r *journal.Reader, id NameID) (Name, error) {
	n := Name{ID: id}
	var err error

	if n.Name, err = r.Text(); err != nil {
		return Name{}, err
	}
	if ToNameID(n.Name) != id {
		return Name{}, errors.Wrapf(journal.ErrCorrupt, "name %q doesn't match id %s", n.Name, id)
	}
	if n.Owner, err = readAccountID(r); err != nil {
		return Name{}, err
	}
	if n.Recovery, err = readAccountID(r); err != nil {
		return Name{}, err
	}

	capacity, err := r.Uint64()
	if err != nil {
		return Name{}, err
	}
	if capacity > MaxCapacity {
		return Name{}, errors.Wrapf(journal.ErrCorrupt, "name %q: capacity %d", n.Name, capacity)
	}
	n.Capacity = uint32(capacity)

	if n.Expiration, err = r.Uint64(); err != nil {
		return Name{}, err
	}
	if n.Data, err = r.Bytes(); err != nil {
		return Name{}, err
	}

	return n, nil
}

func readUint32(r *journal.Reader) (uint32, error) {
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	if v > MaxCapacity {
		return 0, errors.Wrapf(journal.ErrCorrupt, "capacity %d", v)
	}
	return uint32(v), nil
}

// decodeEntry reads one entry, discriminant included.
func decodeEntry(r *journal.Reader) (Entry, error) {
	typ, err := r.Byte()
	if err != nil {
		return nil, err
	}

	if _, exists := typeNames[typ]; !exists {
		return nil, journal.IncorrectType(typ)
	}

	id, err := readNameID(r)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeCreate, TypeDestroy:
		snapshot, err := decodeName(r, id)
		if err != nil {
			return nil, err
		}
		if typ == TypeCreate {
			return CreateEntry{Snapshot: snapshot}, nil
		}
		return DestroyEntry{Snapshot: snapshot}, nil

	case TypeData:
		from, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		to, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		return DataEntry{ID: id, Old: from, New: to}, nil

	case TypeOwner, TypeRecovery:
		from, err := readAccountID(r)
		if err != nil {
			return nil, err
		}
		to, err := readAccountID(r)
		if err != nil {
			return nil, err
		}
		if typ == TypeOwner {
			return OwnerEntry{ID: id, Old: from, New: to}, nil
		}
		return RecoveryEntry{ID: id, Old: from, New: to}, nil

	case TypeCapacity:
		from, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		to, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		return CapacityEntry{ID: id, Old: from, New: to}, nil

	case TypeExpiration:
		from, err := r.Uint64()
		if err != nil {
			return nil, err
		}
		to, err := r.Uint64()
		if err != nil {
			return nil, err
		}
		return ExpirationEntry{ID: id, Old: from, New: to}, nil
	}

	return nil, journal.IncorrectType(typ)
}
