// Package mempool maintains the transactions waiting to be mined.
package mempool

import (
	"errors"
	"sync"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/mempool/selector"
)

// ErrUnderpriced is returned when a transaction would replace a pending one
// with the same nonce without paying at least the same fee.
var ErrUnderpriced = errors.New("replacement transaction underpriced")

// slot identifies a pending transaction. An account can only have one
// transaction per nonce waiting.
type slot struct {
	from  database.AccountID
	nonce uint64
}

// Mempool represents a cache of transactions organized by account and nonce.
type Mempool struct {
	mu       sync.RWMutex
	pool     map[slot]database.SignedTx
	selectFn selector.Func
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyTip)
}

// NewWithStrategy constructs a new mempool with specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[slot]database.SignedTx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds a transaction to the mempool and returns the number of
// transactions in the pool. A pending transaction with the same nonce is
// only replaced by one paying the same or a higher fee.
func (mp *Mempool) Upsert(tx database.SignedTx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := slot{from: tx.From, nonce: tx.Nonce}
	if pending, exists := mp.pool[key]; exists && tx.Fee.Cmp(pending.Fee) < 0 {
		return len(mp.pool), ErrUnderpriced
	}

	mp.pool[key] = tx

	return len(mp.pool), nil
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.SignedTx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, slot{from: tx.From, nonce: tx.Nonce})
}

// PickBest uses the configured sort strategy to return the next set of
// transactions for the next block. Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []database.SignedTx {
	byAccount := make(map[database.AccountID][]database.SignedTx)

	mp.mu.RLock()
	for key, tx := range mp.pool {
		byAccount[key.from] = append(byAccount[key.from], tx)
	}
	mp.mu.RUnlock()

	return mp.selectFn(byAccount, howMany)
}
