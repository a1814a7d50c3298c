// Package database maintains the in memory account ledger of the node. Every
// change to an account is made through a journal entry so the changes made
// by a block can be reverted during a reorganization, and the ledger can
// produce the checksums nodes compare to agree on state.
package database

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ixledger/node/foundation/blockchain/genesis"
	"github.com/ixledger/node/foundation/blockchain/journal"
)

// Protocol versions that change how the ledger behaves. Every node must
// switch at the same block version or checksums diverge.
const (
	// ChecksumV2Version is the first version hashing accounts with the
	// length-prefixed encoding.
	ChecksumV2Version = 3

	// AffectedFirstTouchVersion is the first version folding delta checksums
	// in first-touch order instead of sorted order.
	AffectedFirstTouchVersion = 5

	// ReclaimInTransactionVersion is the first version removing empty
	// accounts as soon as they become empty inside a transaction.
	ReclaimInTransactionVersion = 7

	// CurrentBlockVersion is the version new blocks are produced with.
	CurrentBlockVersion = 7
)

// ProtocolTag seeds every checksum the ledger produces.
const ProtocolTag = "IXLEDGER"

// DefaultHistoryDepth is the number of committed blocks that can be reverted.
const DefaultHistoryDepth = journal.DefaultDepth

// defaultChecksumCache is the number of account checksums kept in memory.
const defaultChecksumCache = 1 << 16

// ErrChunkAfterSync is returned when a snapshot chunk is applied once block
// processing has started.
var ErrChunkAfterSync = errors.New("database: chunks can only be applied before block processing")

// =============================================================================

// EventHandler defines a function that is called when events occur in the
// processing of the ledger.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to construct the ledger.
type Config struct {
	Genesis           genesis.Genesis
	BlockVersion      uint32
	HistoryDepth      int
	ChecksumCacheSize int
	EvHandler         EventHandler
}

// accountSum is a cached account checksum for one block version.
type accountSum struct {
	version uint32
	sum     []byte
}

// Database manages data related to accounts who have transacted on the blockchain.
type Database struct {
	mu sync.Mutex

	genesis      genesis.Genesis
	ledger       *ledger
	journal      *journal.Journal[*ledger, AccountID]
	blockVersion uint32
	evHandler    EventHandler

	sums     *lru.Cache[AccountID, accountSum]
	checksum []byte
	supply   *Amount
}

// New constructs a new ledger holding the genesis balances.
func New(cfg Config) (*Database, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.ChecksumCacheSize <= 0 {
		cfg.ChecksumCacheSize = defaultChecksumCache
	}

	sums, err := lru.New[AccountID, accountSum](cfg.ChecksumCacheSize)
	if err != nil {
		return nil, fmt.Errorf("checksum cache: %w", err)
	}

	blockVersion := cfg.BlockVersion
	if blockVersion == 0 {
		blockVersion = cfg.Genesis.BlockVersion
	}

	db := Database{
		genesis:      cfg.Genesis,
		journal:      journal.New[*ledger, AccountID](cfg.HistoryDepth),
		blockVersion: blockVersion,
		evHandler:    ev,
		sums:         sums,
	}
	db.ledger = newLedger(db.invalidate)

	if err := db.loadGenesis(); err != nil {
		return nil, err
	}

	return &db, nil
}

// loadGenesis inserts the genesis balances without journaling them.
func (db *Database) loadGenesis() error {
	for accountStr, balanceStr := range db.genesis.Balances {
		id, err := ToAccountID(accountStr)
		if err != nil {
			return fmt.Errorf("genesis account %q: %w", accountStr, err)
		}

		balance, err := ParseAmount(balanceStr)
		if err != nil {
			return fmt.Errorf("genesis balance for %s: %w", id, err)
		}

		if balance.Sign() < 0 {
			return fmt.Errorf("genesis balance for %s is negative", id)
		}

		if balance.IsZero() {
			continue
		}

		acct := newAccount(id)
		acct.Balance = balance
		db.ledger.accounts[id] = acct
	}

	accountCount.WithLabelValues().Set(float64(len(db.ledger.accounts)))
	return nil
}

// Reset re-initializes the ledger back to the genesis state and drops the
// journal. It is used before a full resync.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.journal.Reset()
	db.ledger.accounts = make(map[AccountID]Account)
	db.purge()

	return db.loadGenesis()
}

// Genesis returns the genesis information the ledger was built from.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// invalidate drops the cached values that depend on the account.
func (db *Database) invalidate(id AccountID) {
	db.sums.Remove(id)
	db.checksum = nil
	db.supply = nil
}

// purge drops every cached value.
func (db *Database) purge() {
	db.sums.Purge()
	db.checksum = nil
	db.supply = nil
}

// =============================================================================

// BlockVersion returns the protocol version the ledger is operating at.
func (db *Database) BlockVersion() uint32 {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.blockVersion
}

// SetBlockVersion changes the protocol version. The block processor calls
// this with the version of every block before applying it.
func (db *Database) SetBlockVersion(version uint32) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.blockVersion != version {
		db.blockVersion = version
		db.checksum = nil
	}
}

// Account returns a copy of the account. A missing account is returned as
// an empty normal account.
func (db *Database) Account(id AccountID) Account {
	db.mu.Lock()
	defer db.mu.Unlock()

	if acct, exists := db.ledger.accounts[id]; exists {
		return acct.Clone()
	}

	return newAccount(id)
}

// LookupAccount returns a copy of the account and whether it exists.
func (db *Database) LookupAccount(id AccountID) (Account, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	acct, exists := db.ledger.accounts[id]
	if !exists {
		return Account{}, false
	}

	return acct.Clone(), true
}

// CopyAccounts makes a copy of the current accounts in the database.
func (db *Database) CopyAccounts() map[AccountID]Account {
	db.mu.Lock()
	defer db.mu.Unlock()

	accounts := make(map[AccountID]Account, len(db.ledger.accounts))
	for id, acct := range db.ledger.accounts {
		accounts[id] = acct.Clone()
	}

	return accounts
}

// Count returns the number of accounts in the ledger.
func (db *Database) Count() int {
	db.mu.Lock()
	defer db.mu.Unlock()

	return len(db.ledger.accounts)
}

// TotalSupply returns the sum of every balance in the ledger.
func (db *Database) TotalSupply() Amount {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.supply != nil {
		return *db.supply
	}

	var total Amount
	for _, acct := range db.ledger.accounts {
		total = total.Add(acct.Balance)
	}
	db.supply = &total

	return total
}

// sortedIDs returns the account ids in checksum order.
func (db *Database) sortedIDs() []AccountID {
	return slices.SortedFunc(maps.Keys(db.ledger.accounts), compareAccountIDs)
}
