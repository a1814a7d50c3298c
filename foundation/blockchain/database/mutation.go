package database

import (
	"bytes"

	"github.com/ethereum/go-ethereum/crypto"
)

// SetBalance sets the balance of the account, creating the account when it
// doesn't exist. A negative balance is rejected.
func (db *Database) SetBalance(id AccountID, balance Amount) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.setBalance(id, balance)
}

// AddBalance adds a non-negative amount to the balance of the account.
func (db *Database) AddBalance(id AccountID, amount Amount) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if amount.Sign() < 0 {
		db.evHandler("database: AddBalance: acct[%s]: ERROR: negative amount %s", id, amount)
		return false
	}

	return db.setBalance(id, db.current(id).Balance.Add(amount))
}

// SubBalance subtracts a non-negative amount from the balance of the
// account. The call fails when the account doesn't hold enough.
func (db *Database) SubBalance(id AccountID, amount Amount) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if amount.Sign() < 0 {
		db.evHandler("database: SubBalance: acct[%s]: ERROR: negative amount %s", id, amount)
		return false
	}

	return db.setBalance(id, db.current(id).Balance.Sub(amount))
}

func (db *Database) setBalance(id AccountID, balance Amount) bool {
	if balance.Sign() < 0 {
		db.evHandler("database: SetBalance: acct[%s]: ERROR: negative balance %s", id, balance)
		return false
	}

	acct, entries := db.load(id)
	if len(entries) > 0 && balance.IsZero() {
		return true
	}

	entries = append(entries, BalanceEntry{ID: id, Old: acct.Balance, New: balance})
	return db.applyEntries(id, entries...)
}

// SetPublicKey records the uncompressed public key of the account. The key
// must derive the account id and can only be set once.
func (db *Database) SetPublicKey(id AccountID, key []byte) bool {
	pk, err := crypto.UnmarshalPubkey(key)
	if err != nil {
		db.evHandler("database: SetPublicKey: acct[%s]: ERROR: %s", id, err)
		return false
	}

	if PublicKeyToAccountID(*pk) != id {
		db.evHandler("database: SetPublicKey: acct[%s]: ERROR: key belongs to %s", id, PublicKeyToAccountID(*pk))
		return false
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	acct, entries := db.load(id)
	if acct.PublicKey != nil {
		return bytes.Equal(acct.PublicKey, key)
	}

	entries = append(entries, PublicKeyEntry{ID: id, Key: key})
	return db.applyEntries(id, entries...)
}

// AddSigner adds an allowed signer to the account, turning it into a
// multisig account. The required signatures are left unchanged.
func (db *Database) AddSigner(id AccountID, signer AccountID) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.ledger.accounts[id]; !exists {
		db.evHandler("database: AddSigner: acct[%s]: ERROR: account doesn't exist", id)
		return false
	}

	return db.applyEntries(id, SignerEntry{ID: id, Signer: signer, Adding: true})
}

// RemoveSigner removes an allowed signer from the account. The required
// signatures drop by one when they would no longer be reachable.
func (db *Database) RemoveSigner(id AccountID, signer AccountID) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	acct, exists := db.ledger.accounts[id]
	if !exists {
		db.evHandler("database: RemoveSigner: acct[%s]: ERROR: account doesn't exist", id)
		return false
	}

	adjust := int(acct.RequiredSigs) > len(acct.AllowedSigners)
	return db.applyEntries(id, SignerEntry{ID: id, Signer: signer, Adjust: adjust})
}

// SetRequiredSignatures sets the number of signatures a transaction from
// the account needs. It can't exceed the number of signers plus the owner.
func (db *Database) SetRequiredSignatures(id AccountID, required uint8) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	acct, exists := db.ledger.accounts[id]
	if !exists {
		db.evHandler("database: SetRequiredSignatures: acct[%s]: ERROR: account doesn't exist", id)
		return false
	}

	if acct.RequiredSigs == required {
		return true
	}

	return db.applyEntries(id, RequiredSigsEntry{ID: id, Old: acct.RequiredSigs, New: required})
}

// SetUserData replaces the user data of the account, creating the account
// when it doesn't exist.
func (db *Database) SetUserData(id AccountID, data []byte) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	acct, entries := db.load(id)
	if bytes.Equal(acct.UserData, data) {
		return true
	}

	entries = append(entries, UserDataEntry{ID: id, Old: acct.UserData, New: cloneSlice(data)})
	return db.applyEntries(id, entries...)
}

// CreateAccount inserts a new account holding the specified values. It
// fails when the account already exists. An account created empty is
// reclaimed like any other empty account.
func (db *Database) CreateAccount(acct Account) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	id := acct.ID
	if _, exists := db.ledger.accounts[id]; exists {
		db.evHandler("database: CreateAccount: acct[%s]: ERROR: account exists", id)
		return false
	}

	if err := validateAccount(acct); err != nil {
		db.evHandler("database: CreateAccount: acct[%s]: ERROR: %s", id, err)
		return false
	}

	entries := []Entry{CreateEntry{ID: id}}
	if !acct.Balance.IsZero() {
		entries = append(entries, BalanceEntry{ID: id, Old: Amount{}, New: acct.Balance})
	}
	if len(acct.PublicKey) > 0 {
		entries = append(entries, PublicKeyEntry{ID: id, Key: cloneSlice(acct.PublicKey)})
	}
	for _, signer := range acct.AllowedSigners {
		entries = append(entries, SignerEntry{ID: id, Signer: signer, Adding: true})
	}
	if acct.RequiredSigs != 1 {
		entries = append(entries, RequiredSigsEntry{ID: id, Old: 1, New: acct.RequiredSigs})
	}
	if len(acct.UserData) > 0 {
		entries = append(entries, UserDataEntry{ID: id, New: cloneSlice(acct.UserData)})
	}

	return db.applyEntries(id, entries...)
}

// RemoveAccount removes the account whatever it holds.
func (db *Database) RemoveAccount(id AccountID) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	acct, exists := db.ledger.accounts[id]
	if !exists {
		db.evHandler("database: RemoveAccount: acct[%s]: ERROR: account doesn't exist", id)
		return false
	}

	return db.applyEntries(id, DestroyEntry{ID: id, Snapshot: acct.Clone()})
}

// =============================================================================

// current returns the stored account or an empty one.
func (db *Database) current(id AccountID) Account {
	if acct, exists := db.ledger.accounts[id]; exists {
		return acct
	}

	return newAccount(id)
}

// load returns the current account and, when the account doesn't exist,
// the entry that creates it.
func (db *Database) load(id AccountID) (Account, []Entry) {
	if acct, exists := db.ledger.accounts[id]; exists {
		return acct, nil
	}

	return newAccount(id), []Entry{CreateEntry{ID: id}}
}

// applyEntries applies the entries in order and records them in the open
// transaction. When one fails the ones applied before it are reverted and
// nothing is recorded.
func (db *Database) applyEntries(id AccountID, entries ...Entry) bool {
	for i, entry := range entries {
		if entry.Apply(db.ledger) {
			continue
		}

		entriesFailed.WithLabelValues(TypeName(entry.Type())).Inc()
		db.evHandler("database: apply: acct[%s]: entry[%s]: FAILED", entry.Target(), TypeName(entry.Type()))

		for j := i - 1; j >= 0; j-- {
			if !entries[j].Revert(db.ledger) {
				db.evHandler("database: apply: acct[%s]: entry[%s]: FATAL: undo failed", entries[j].Target(), TypeName(entries[j].Type()))
			}
		}
		return false
	}

	for _, entry := range entries {
		db.journal.Record(entry)
		entriesApplied.WithLabelValues(TypeName(entry.Type())).Inc()
	}

	db.reclaim(id)
	return true
}

// reclaim removes the account if it became empty. Outside a transaction
// the removal isn't journaled. Inside one it is, but only from
// ReclaimInTransactionVersion on; older versions reclaim at commit.
func (db *Database) reclaim(id AccountID) {
	if db.journal.InTransaction() && db.blockVersion < ReclaimInTransactionVersion {
		return
	}

	db.destroyEmpty(id)
}

// destroyEmpty removes the account when it is empty and records the
// removal if a transaction is open.
func (db *Database) destroyEmpty(id AccountID) {
	acct, exists := db.ledger.accounts[id]
	if !exists || !acct.IsEmpty() {
		return
	}

	entry := DestroyEntry{ID: id, Snapshot: acct.Clone()}
	if !entry.Apply(db.ledger) {
		return
	}

	db.journal.Record(entry)
	entriesApplied.WithLabelValues(TypeName(entry.Type())).Inc()
}
