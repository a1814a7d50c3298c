// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/genesis"
	"github.com/ixledger/node/foundation/blockchain/journaldb"
	"github.com/ixledger/node/foundation/blockchain/mempool"
	"github.com/ixledger/node/foundation/blockchain/mempool/selector"
	"github.com/ixledger/node/foundation/blockchain/registry"
)

// defaultTransPerBlock is the number of transactions a mined block carries
// when the configuration doesn't say.
const defaultTransPerBlock = 1000

// Set of error variables for the processing of blocks and transactions.
var (
	ErrNotFound         = errors.New("not found")
	ErrNotAuthorized    = errors.New("transaction is not authorized by the account signers")
	ErrNonceUsed        = errors.New("transaction nonce has already been used")
	ErrChecksumMismatch = errors.New("block checksums don't match the ledger")
	ErrNotLatest        = errors.New("only the latest block can be reverted")
	ErrHistoryExhausted = errors.New("block is no longer in the journal history, resync required")
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and ledger maintenance.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	BeneficiaryID  database.AccountID
	Genesis        genesis.Genesis
	Store          *journaldb.Store
	BlockVersion   uint32
	HistoryDepth   int
	TransPerBlock  int
	SelectStrategy string
	EvHandler      EventHandler
}

// State manages the ledger, the name registry and the persisted journal.
type State struct {
	mu sync.Mutex

	beneficiaryID database.AccountID
	genesis       genesis.Genesis
	miningReward  database.Amount
	blockVersion  uint32
	transPerBlock int
	evHandler     EventHandler

	store       *journaldb.Store
	db          *database.Database
	names       *registry.Registry
	mempool     *mempool.Mempool
	latestBlock database.Block
	base        database.Block
	used        map[string]uint64

	Worker Worker
}

// New constructs the state and replays the persisted journal on top of the
// genesis ledger. Corrupt persisted data is reported as an error and the
// node must not start.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Store == nil {
		return nil, errors.New("journal store is required")
	}

	if cfg.Genesis.SuperblockInterval == 0 {
		return nil, errors.New("genesis superblock interval must be greater than zero")
	}

	var reward database.Amount
	if cfg.Genesis.MiningReward != "" {
		var err error
		if reward, err = database.ParseAmount(cfg.Genesis.MiningReward); err != nil {
			return nil, fmt.Errorf("genesis mining reward: %w", err)
		}
	}

	genesisVersion := cfg.Genesis.BlockVersion
	if genesisVersion == 0 {
		genesisVersion = database.CurrentBlockVersion
	}

	blockVersion := cfg.BlockVersion
	if blockVersion == 0 {
		blockVersion = database.CurrentBlockVersion
	}
	if blockVersion < genesisVersion || blockVersion > database.CurrentBlockVersion {
		return nil, fmt.Errorf("block version %d must be between %d and %d", blockVersion, genesisVersion, database.CurrentBlockVersion)
	}

	transPerBlock := cfg.TransPerBlock
	if transPerBlock == 0 {
		transPerBlock = defaultTransPerBlock
	}

	selectStrategy := cfg.SelectStrategy
	if selectStrategy == "" {
		selectStrategy = selector.StrategyTip
	}

	// Create the ledger with the balances of the founders of the chain.
	db, err := database.New(database.Config{
		Genesis:      cfg.Genesis,
		BlockVersion: genesisVersion,
		HistoryDepth: cfg.HistoryDepth,
		EvHandler:    ev,
	})
	if err != nil {
		return nil, err
	}

	names := registry.New(registry.Config{
		BlockVersion: genesisVersion,
		HistoryDepth: cfg.HistoryDepth,
		EvHandler:    ev,
	})

	// Construct a mempool with the specified sort strategy.
	mempool, err := mempool.NewWithStrategy(selectStrategy)
	if err != nil {
		return nil, err
	}

	state := State{
		beneficiaryID: cfg.BeneficiaryID,
		genesis:       cfg.Genesis,
		miningReward:  reward,
		blockVersion:  blockVersion,
		transPerBlock: transPerBlock,
		evHandler:     ev,

		store:       cfg.Store,
		db:          db,
		names:       names,
		mempool:     mempool,
		latestBlock: genesisBlock(cfg.Genesis, genesisVersion),
		used:        make(map[string]uint64),
	}
	state.base = state.latestBlock

	// Bring the ledgers up to the latest persisted block.
	if err := state.restore(); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down. The journal store belongs to the
// caller and is left open.
func (s *State) Shutdown() error {

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// genesisBlock builds the block every chain starts from. It carries no
// transactions and hashes to the zero hash.
func genesisBlock(g genesis.Genesis, version uint32) database.Block {
	var timeStamp uint64
	if !g.Date.IsZero() {
		timeStamp = uint64(g.Date.UTC().UnixMilli())
	}

	return database.Block{
		Header: database.BlockHeader{
			Version:       version,
			PrevBlockHash: database.ZeroHash,
			TimeStamp:     timeStamp,
			Difficulty:    g.Difficulty,
			TransRoot:     database.ZeroHash,
		},
	}
}

// setBlockVersion moves both journals to the protocol version.
func (s *State) setBlockVersion(version uint32) {
	s.db.SetBlockVersion(version)
	s.names.SetBlockVersion(version)
}

// usedKey identifies a transaction by its account and nonce.
func usedKey(tx database.SignedTx) string {
	return fmt.Sprintf("%s:%d", tx.From, tx.Nonce)
}
