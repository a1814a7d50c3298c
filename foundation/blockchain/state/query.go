package state

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/registry"
)

// Checksums are the ledger and registry checksums at a block.
type Checksums struct {
	Block   uint64        `json:"block"`
	Full    bool          `json:"full"`
	Wallets hexutil.Bytes `json:"wallets"`
	Names   hexutil.Bytes `json:"names"`
}

// Status summarizes the state of the node.
type Status struct {
	LatestBlockHash   string          `json:"latest_block_hash"`
	LatestBlockNumber uint64          `json:"latest_block_number"`
	BlockVersion      uint32          `json:"block_version"`
	Accounts          int             `json:"accounts"`
	Names             int             `json:"names"`
	Mempool           int             `json:"mempool"`
	History           []uint64        `json:"history"`
	TotalSupply       database.Amount `json:"total_supply"`
}

// =============================================================================

// QueryAccount returns a copy of the account from the ledger. Queries take
// the state lock so they never observe the tentative changes of a block
// being mined or processed.
func (s *State) QueryAccount(id database.AccountID) (database.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, exists := s.db.LookupAccount(id)
	if !exists {
		return database.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}

	return acct, nil
}

// QueryAccounts returns a copy of every account in the ledger in the order
// of their ids.
func (s *State) QueryAccounts() []database.Account {
	s.mu.Lock()
	accounts := s.db.CopyAccounts()
	s.mu.Unlock()

	out := make([]database.Account, 0, len(accounts))
	for _, acct := range accounts {
		out = append(out, acct)
	}

	slices.SortFunc(out, func(a, b database.Account) int {
		return a.ID.Compare(b.ID)
	})

	return out
}

// QueryName returns a copy of the registered name.
func (s *State) QueryName(name string) (registry.Name, error) {
	if err := registry.ValidateName(name); err != nil {
		return registry.Name{}, err
	}

	s.mu.Lock()
	n, exists := s.names.Lookup(name)
	s.mu.Unlock()

	if !exists {
		return registry.Name{}, fmt.Errorf("name %q: %w", name, ErrNotFound)
	}

	return n, nil
}

// QueryNames returns a copy of every registered name.
func (s *State) QueryNames() []registry.Name {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.names.Names()
}

// QueryChecksum returns the full checksums at the latest block.
func (s *State) QueryChecksum() Checksums {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Checksums{
		Block:   s.latestBlock.Header.Number,
		Full:    true,
		Wallets: s.db.Checksum(),
		Names:   s.names.Checksum(),
	}
}

// QueryBlockChecksum returns the checksums of the accounts and names the
// block changed, at their current values. Only blocks in the journal
// history can be queried.
func (s *State) QueryBlockChecksum(num uint64) (Checksums, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets, ok := s.db.DeltaChecksum(num)
	if !ok {
		return Checksums{}, fmt.Errorf("blk[%d]: %w", num, ErrNotFound)
	}

	names, ok := s.names.DeltaChecksum(num)
	if !ok {
		return Checksums{}, fmt.Errorf("blk[%d]: %w", num, ErrNotFound)
	}

	return Checksums{
		Block:   num,
		Wallets: wallets,
		Names:   names,
	}, nil
}

// QueryTotalSupply returns the sum of every balance in the ledger.
func (s *State) QueryTotalSupply() database.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.TotalSupply()
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryStatus returns a summary of the state of the node.
func (s *State) QueryStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := s.latestBlock

	return Status{
		LatestBlockHash:   latest.Hash(),
		LatestBlockNumber: latest.Header.Number,
		BlockVersion:      latest.Header.Version,
		Accounts:          s.db.Count(),
		Names:             s.names.Count(),
		Mempool:           s.mempool.Count(),
		History:           s.db.HistoryNumbers(),
		TotalSupply:       s.db.TotalSupply(),
	}
}
