package registry

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/ixledger/node/foundation/blockchain/journal"
)

// ErrSnapshotAfterSync is returned when a snapshot is loaded once block
// processing has started.
var ErrSnapshotAfterSync = errors.New("registry: snapshots can only be applied before block processing")

// Snapshot encodes every registered name in id order for a node that is
// syncing. The result is snappy compressed.
func (r *Registry) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.sortedIDs()

	w := journal.NewWriter()
	w.PutUvarint(uint64(len(ids)))
	for _, id := range ids {
		putNameID(w, id)
		encodeName(w, r.table.names[id])
	}

	return snappy.Encode(nil, w.Bytes())
}

// ApplySnapshot replaces every name with the names of the snapshot. Nothing
// is journaled so it is only allowed before any block is processed.
func (r *Registry) ApplySnapshot(data []byte) error {
	names, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.journal.InTransaction() || r.journal.HistoryLen() > 0 {
		return ErrSnapshotAfterSync
	}

	r.table.names = names
	r.checksum = nil
	nameCount.WithLabelValues().Set(float64(len(names)))

	r.evHandler("registry: ApplySnapshot: names[%d]: applied", len(names))

	return nil
}

// decodeSnapshot rebuilds the names of a snapshot. Every subname must come
// with its parent.
func decodeSnapshot(data []byte) (map[NameID]Name, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(journal.ErrCorrupt, err.Error())
	}

	rd := journal.NewReader(raw)

	count, err := rd.Uvarint()
	if err != nil {
		return nil, err
	}
	if count > uint64(rd.Len()) {
		return nil, errors.Wrapf(journal.ErrCorrupt, "snapshot name count %d exceeds data", count)
	}

	names := make(map[NameID]Name, count)
	for range count {
		id, err := readNameID(rd)
		if err != nil {
			return nil, err
		}

		n, err := decodeName(rd, id)
		if err != nil {
			return nil, err
		}

		if err := ValidateName(n.Name); err != nil {
			return nil, errors.Wrapf(journal.ErrCorrupt, "snapshot name %q: %s", n.Name, err)
		}

		names[id] = n
	}

	if rd.Len() != 0 {
		return nil, errors.Wrapf(journal.ErrCorrupt, "snapshot: %d trailing bytes", rd.Len())
	}

	for _, n := range names {
		if parent, found := Parent(n.Name); found {
			if _, exists := names[ToNameID(parent)]; !exists {
				return nil, errors.Wrapf(journal.ErrCorrupt, "snapshot name %q: %s", n.Name, ErrNoParent)
			}
		}
	}

	return names, nil
}
