// Package journaldb persists the journal transactions and headers of the
// blocks the node has processed so the ledgers can be rebuilt at startup.
package journaldb

import (
	"encoding/binary"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Kind identifies what a record holds. It is the first byte of every key.
type Kind byte

// Set of record kinds.
const (
	Wallets  Kind = 'W'
	Names    Kind = 'N'
	Header   Kind = 'H'
	Snapshot Kind = 'S'
)

var kinds = []Kind{Header, Wallets, Names}

// ErrNotFound is returned when no record exists for a block.
var ErrNotFound = errors.New("journaldb: not found")

var (
	writeOpt = opt.WriteOptions{Sync: true}
	readOpt  = opt.ReadOptions{}
	scanOpt  = opt.ReadOptions{DontFillCache: true}
)

// Options configures the underlying leveldb instance.
type Options struct {
	CacheSize              int // MiB
	OpenFilesCacheCapacity int
}

// Record is everything persisted for one block.
type Record struct {
	Number  uint64
	Header  []byte
	Wallets []byte
	Names   []byte
}

// Store is the leveldb backed journal store.
type Store struct {
	db *leveldb.DB
}

// New opens the store at path, creating it if it doesn't exist.
func New(path string, opts Options) (*Store, error) {
	stg, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open journal storage")
	}

	return open(stg, opts)
}

// NewMem constructs a store held in memory.
func NewMem() (*Store, error) {
	return open(storage.NewMemStorage(), Options{})
}

func open(stg storage.Storage, opts Options) (*Store, error) {
	if opts.CacheSize < 16 {
		opts.CacheSize = 16
	}

	if opts.OpenFilesCacheCapacity < 16 {
		opts.OpenFilesCacheCapacity = 16
	}

	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: opts.OpenFilesCacheCapacity,
		BlockCacheCapacity:     opts.CacheSize / 2 * opt.MiB,
		WriteBuffer:            opts.CacheSize / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open journal db")
	}

	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// key builds the key for a record. Numbers are big endian so records of one
// kind iterate in block order.
func key(kind Kind, num uint64) []byte {
	k := make([]byte, 9)
	k[0] = byte(kind)
	binary.BigEndian.PutUint64(k[1:], num)
	return k
}

// =============================================================================

// Write stores every part of the record in one atomic batch.
func (s *Store) Write(rec Record) error {
	batch := new(leveldb.Batch)
	batch.Put(key(Header, rec.Number), rec.Header)
	batch.Put(key(Wallets, rec.Number), rec.Wallets)
	batch.Put(key(Names, rec.Number), rec.Names)

	if err := s.db.Write(batch, &writeOpt); err != nil {
		return pkgerrors.Wrapf(err, "write blk[%d]", rec.Number)
	}

	return nil
}

// Put stores a single record part.
func (s *Store) Put(kind Kind, num uint64, data []byte) error {
	return s.db.Put(key(kind, num), data, &writeOpt)
}

// Get returns a single record part.
func (s *Store) Get(kind Kind, num uint64) ([]byte, error) {
	data, err := s.db.Get(key(kind, num), &readOpt)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Read returns every part of the record for the block.
func (s *Store) Read(num uint64) (Record, error) {
	rec := Record{Number: num}

	var err error
	if rec.Header, err = s.Get(Header, num); err != nil {
		return Record{}, err
	}
	if rec.Wallets, err = s.Get(Wallets, num); err != nil {
		return Record{}, err
	}
	if rec.Names, err = s.Get(Names, num); err != nil {
		return Record{}, err
	}

	return rec, nil
}

// Delete removes every part of the record for the block.
func (s *Store) Delete(num uint64) error {
	batch := new(leveldb.Batch)
	for _, kind := range kinds {
		batch.Delete(key(kind, num))
	}

	return s.db.Write(batch, &writeOpt)
}

// ForEach calls fn for every record of the kind in block order. Iteration
// stops at the first error fn returns.
func (s *Store) ForEach(kind Kind, fn func(num uint64, data []byte) error) error {
	it := s.db.NewIterator(util.BytesPrefix([]byte{byte(kind)}), &scanOpt)
	defer it.Release()

	for it.Next() {
		k := it.Key()
		if len(k) != 9 {
			return pkgerrors.Errorf("journal db: malformed key %x", k)
		}

		data := append([]byte(nil), it.Value()...)
		if err := fn(binary.BigEndian.Uint64(k[1:]), data); err != nil {
			return err
		}
	}

	return it.Error()
}

// LatestSnapshot returns the snapshot with the highest block number. A node
// synced from a snapshot replays its headers on top of it.
func (s *Store) LatestSnapshot() (uint64, []byte, bool, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte{byte(Snapshot)}), &scanOpt)
	defer it.Release()

	if !it.Last() {
		return 0, nil, false, it.Error()
	}

	data := append([]byte(nil), it.Value()...)
	return binary.BigEndian.Uint64(it.Key()[1:]), data, true, nil
}

// Latest returns the highest block number with a stored header.
func (s *Store) Latest() (uint64, bool, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte{byte(Header)}), &scanOpt)
	defer it.Release()

	if !it.Last() {
		return 0, false, it.Error()
	}

	return binary.BigEndian.Uint64(it.Key()[1:]), true, nil
}
