package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/pkg/errors"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/journal"
	"github.com/ixledger/node/foundation/blockchain/journaldb"
)

// Snapshot is everything a new node needs to follow the chain from a block
// without replaying the blocks before it.
type Snapshot struct {
	Block    database.Block
	Wallets  []byte // full ledger checksum at the block
	Names    []byte // full registry checksum at the block
	Chunks   []database.Chunk
	Registry []byte
	Nonces   map[string]uint64
}

// RetrieveSnapshot captures the ledger split into chunks of at most size
// accounts, the registry and the used nonces at the latest block.
func (s *State) RetrieveSnapshot(size int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	num := s.latestBlock.Header.Number

	return Snapshot{
		Block:    s.latestBlock,
		Wallets:  s.db.Checksum(),
		Names:    s.names.Checksum(),
		Chunks:   s.db.Chunks(size, num),
		Registry: s.names.Snapshot(),
		Nonces:   maps.Clone(s.used),
	}
}

// ApplySnapshot replaces the genesis state with a snapshot taken by another
// node. It is only allowed before this node has processed any block. The
// snapshot is persisted so a restart resumes from it.
func (s *State) ApplySnapshot(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latestBlock.Header.Number != 0 || len(s.db.HistoryNumbers()) > 0 {
		return database.ErrChunkAfterSync
	}

	num := snap.Block.Header.Number

	if err := s.loadSnapshot(snap); err != nil {
		return err
	}

	data, err := snap.MarshalBinary()
	if err == nil {
		err = s.store.Put(journaldb.Snapshot, num, data)
	}
	if err != nil {
		s.resetToGenesis()
		return fmt.Errorf("snapshot blk[%d]: persist: %w", num, err)
	}

	blockHeight.WithLabelValues().Set(float64(num))
	s.evHandler("state: ApplySnapshot: blk[%d]: chunks[%d]: accounts[%d]: names[%d]", num, len(snap.Chunks), s.db.Count(), s.names.Count())

	return nil
}

// loadSnapshot verifies the snapshot block, loads its chunks and names and
// checks the result against the checksums it carries. On failure the state
// is back at genesis.
func (s *State) loadSnapshot(snap Snapshot) error {
	hdr := snap.Block.Header
	num := hdr.Number

	if hdr.Version < s.genesisVersion() || hdr.Version > database.CurrentBlockVersion {
		return fmt.Errorf("snapshot blk[%d]: block version %d must be between %d and %d", num, hdr.Version, s.genesisVersion(), database.CurrentBlockVersion)
	}

	if hdr.Difficulty < s.genesis.Difficulty {
		return fmt.Errorf("snapshot blk[%d]: block difficulty %d is less than the chain difficulty %d", num, hdr.Difficulty, s.genesis.Difficulty)
	}

	if num > 0 && !snap.Block.IsSolved() {
		return fmt.Errorf("snapshot blk[%d]: %s invalid block hash", num, snap.Block.Hash())
	}

	// Superblocks carry the full checksums so the snapshot must agree.
	if num > 0 && num%s.genesis.SuperblockInterval == 0 && !hdr.ChecksumsEqual(snap.Wallets, snap.Names) {
		return fmt.Errorf("snapshot blk[%d]: header: %w", num, ErrChecksumMismatch)
	}

	if len(snap.Chunks) == 0 {
		return fmt.Errorf("snapshot blk[%d]: no chunks", num)
	}

	for _, chunk := range snap.Chunks {
		if chunk.BlockNum != num {
			return fmt.Errorf("snapshot blk[%d]: chunk[%d] belongs to blk[%d]", num, chunk.Index, chunk.BlockNum)
		}
	}

	s.setBlockVersion(hdr.Version)

	if err := s.fill(snap); err != nil {
		s.resetToGenesis()
		return fmt.Errorf("snapshot blk[%d]: %w", num, err)
	}

	wallets, names := s.db.Checksum(), s.names.Checksum()
	if !bytes.Equal(wallets, snap.Wallets) || !bytes.Equal(names, snap.Names) {
		s.evHandler("state: loadSnapshot: blk[%d]: ERROR: wallets got[%x] exp[%x]: names got[%x] exp[%x]", num, wallets, snap.Wallets, names, snap.Names)
		s.resetToGenesis()
		return fmt.Errorf("snapshot blk[%d]: %w", num, ErrChecksumMismatch)
	}

	s.latestBlock = snap.Block
	s.base = snap.Block
	s.used = maps.Clone(snap.Nonces)
	if s.used == nil {
		s.used = make(map[string]uint64)
	}

	return nil
}

// fill replaces the ledger and the registry with the snapshot contents.
func (s *State) fill(snap Snapshot) error {
	if err := s.db.Clear(); err != nil {
		return err
	}

	for _, chunk := range snap.Chunks {
		if err := s.db.ApplyChunk(chunk.Accounts); err != nil {
			return fmt.Errorf("chunk[%d]: %w", chunk.Index, err)
		}
	}

	return s.names.ApplySnapshot(snap.Registry)
}

// resetToGenesis drops everything loaded from a snapshot.
func (s *State) resetToGenesis() {
	if err := s.db.Reset(); err != nil {
		s.evHandler("state: resetToGenesis: ERROR: %s", err)
	}
	s.names.Reset()

	s.latestBlock = genesisBlock(s.genesis, s.genesisVersion())
	s.base = s.latestBlock
	s.used = make(map[string]uint64)
	s.setBlockVersion(s.genesisVersion())
}

// =============================================================================

// MarshalBinary implements encoding.BinaryMarshaler.
func (snap Snapshot) MarshalBinary() ([]byte, error) {
	header, err := json.Marshal(database.NewBlockData(snap.Block))
	if err != nil {
		return nil, err
	}

	w := journal.NewWriter()
	w.PutBytes(header)
	w.PutBytes(snap.Wallets)
	w.PutBytes(snap.Names)

	w.PutUvarint(uint64(len(snap.Chunks)))
	for _, chunk := range snap.Chunks {
		data, err := chunk.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.PutBytes(data)
	}

	w.PutBytes(snap.Registry)

	keys := slices.Sorted(maps.Keys(snap.Nonces))
	w.PutUvarint(uint64(len(keys)))
	for _, key := range keys {
		w.PutString(key)
		w.PutUint64(snap.Nonces[key])
	}

	return w.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (snap *Snapshot) UnmarshalBinary(data []byte) error {
	r := journal.NewReader(data)

	header, err := r.Bytes()
	if err != nil {
		return err
	}

	var blockData database.BlockData
	if err := json.Unmarshal(header, &blockData); err != nil {
		return errors.Wrapf(journal.ErrCorrupt, "snapshot header: %s", err)
	}

	block, err := database.ToBlock(blockData)
	if err != nil {
		return errors.Wrapf(journal.ErrCorrupt, "snapshot block: %s", err)
	}

	wallets, err := r.Bytes()
	if err != nil {
		return err
	}

	names, err := r.Bytes()
	if err != nil {
		return err
	}

	count, err := r.Uvarint()
	if err != nil {
		return err
	}
	if count > uint64(r.Len()) {
		return errors.Wrapf(journal.ErrCorrupt, "snapshot chunk count %d exceeds data", count)
	}

	chunks := make([]database.Chunk, 0, count)
	for range count {
		raw, err := r.Bytes()
		if err != nil {
			return err
		}

		var chunk database.Chunk
		if err := chunk.UnmarshalBinary(raw); err != nil {
			return err
		}
		chunks = append(chunks, chunk)
	}

	registry, err := r.Bytes()
	if err != nil {
		return err
	}

	count, err = r.Uvarint()
	if err != nil {
		return err
	}
	if count > uint64(r.Len()) {
		return errors.Wrapf(journal.ErrCorrupt, "snapshot nonce count %d exceeds data", count)
	}

	nonces := make(map[string]uint64, count)
	for range count {
		key, err := r.Text()
		if err != nil {
			return err
		}

		num, err := r.Uint64()
		if err != nil {
			return err
		}
		nonces[key] = num
	}

	if r.Len() != 0 {
		return errors.Wrapf(journal.ErrCorrupt, "snapshot: %d trailing bytes", r.Len())
	}

	*snap = Snapshot{
		Block:    block,
		Wallets:  wallets,
		Names:    names,
		Chunks:   chunks,
		Registry: registry,
		Nonces:   nonces,
	}

	return nil
}
