package database

import (
	"bytes"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ixledger/node/foundation/blockchain/hasher"
	"github.com/ixledger/node/foundation/blockchain/journal"
	"github.com/ixledger/node/foundation/metrics"
)

// AccountChecksum returns the checksum of a single account for the
// specified block version.
func AccountChecksum(acct Account, version uint32) []byte {
	if version < ChecksumV2Version {
		return legacyAccountChecksum(acct)
	}

	w := journal.NewWriter()
	putAccountID(w, acct.ID)
	w.PutString(acct.Balance.String())
	w.PutByte(byte(acct.Kind))
	w.PutUvarint(uint64(len(acct.AllowedSigners)))
	for _, signer := range acct.AllowedSigners {
		putAccountID(w, signer)
	}
	w.PutByte(acct.RequiredSigs)
	w.PutBytes(acct.PublicKey)
	w.PutBytes(acct.UserData)

	return hasher.Sum(w.Bytes())
}

// legacyAccountChecksum hashes the raw fields back to back. Blocks produced
// before ChecksumV2Version are verified with it.
func legacyAccountChecksum(acct Account) []byte {
	parts := [][]byte{
		acct.ID[:],
		[]byte(acct.Balance.String()),
		{byte(acct.Kind), acct.RequiredSigs},
	}
	for _, signer := range acct.AllowedSigners {
		parts = append(parts, signer[:])
	}
	parts = append(parts, acct.PublicKey, acct.UserData)

	return hasher.SumLegacy(parts...)
}

// seed returns the starting value of every checksum fold.
func seed(tag string, version uint32) []byte {
	return hasher.Sum([]byte(tag + strconv.FormatUint(uint64(version), 10)))
}

// =============================================================================

// Checksum returns the checksum of the whole ledger. Accounts are folded in
// the order of their raw ids so every node produces the same bytes no
// matter how it stores them. The result is cached until the next change.
func (db *Database) Checksum() []byte {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.checksum != nil {
		return bytes.Clone(db.checksum)
	}

	start := time.Now()
	defer metrics.ObserveSince(checksumDuration.WithLabelValues("full"), start)

	ids := db.sortedIDs()
	accounts := make([]Account, len(ids))
	for i, id := range ids {
		accounts[i] = db.ledger.accounts[id]
	}

	sums := make([][]byte, len(accounts))
	version := db.blockVersion

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range accounts {
		g.Go(func() error {
			sums[i] = db.accountSum(accounts[i], version)
			return nil
		})
	}
	g.Wait()

	acc := seed(ProtocolTag, version)
	for _, sum := range sums {
		acc = hasher.Sum(acc, sum)
	}

	db.checksum = acc
	db.evHandler("database: Checksum: accounts[%d]: version[%d]: %x", len(accounts), version, acc)

	return bytes.Clone(acc)
}

// DeltaChecksum returns the checksum of the accounts touched by the open
// or archived transaction with the specified number, using their current
// values. It reports false when the transaction is unknown, in which case
// the caller can't verify that block and has to resync.
func (db *Database) DeltaChecksum(number uint64) ([]byte, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, exists := db.journal.Find(number)
	if !exists {
		db.evHandler("database: DeltaChecksum: blk[%d]: ERROR: transaction not found", number)
		return nil, false
	}

	start := time.Now()
	defer metrics.ObserveSince(checksumDuration.WithLabelValues("delta"), start)

	version := db.blockVersion
	acc := seed(ProtocolTag, version)
	for _, id := range tx.Affected(db.affectedOrder()) {
		acc = hasher.Sum(acc, db.accountSum(db.current(id), version))
	}

	return acc, true
}

// accountSum returns the account checksum, using the cache when the
// account hasn't changed since it was last hashed.
func (db *Database) accountSum(acct Account, version uint32) []byte {
	if cached, ok := db.sums.Get(acct.ID); ok && cached.version == version {
		return cached.sum
	}

	sum := AccountChecksum(acct, version)
	if _, stored := db.ledger.accounts[acct.ID]; stored {
		db.sums.Add(acct.ID, accountSum{version: version, sum: sum})
	}

	return sum
}

// AffectedAccounts returns the accounts touched by the open or archived
// transaction, in the order the delta checksum folds them.
func (db *Database) AffectedAccounts(number uint64) ([]AccountID, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, exists := db.journal.Find(number)
	if !exists {
		return nil, false
	}

	return tx.Affected(db.affectedOrder()), true
}
