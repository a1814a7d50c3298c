package database

import (
	"bytes"
	"slices"
)

// maxSigners bounds the allowed signer set so required signatures always
// fit in a uint8.
const maxSigners = 254

// ledger is the account map the journal entries mutate. Only entries call
// the methods below; every high level operation goes through an entry so
// the change is journaled. Each method validates the state it finds and
// returns false without mutating anything when it doesn't match.
type ledger struct {
	accounts map[AccountID]Account
	onChange func(id AccountID)
}

func newLedger(onChange func(id AccountID)) *ledger {
	return &ledger{
		accounts: make(map[AccountID]Account),
		onChange: onChange,
	}
}

func (l *ledger) changed(id AccountID) {
	if l.onChange != nil {
		l.onChange(id)
	}
}

func (l *ledger) setBalance(id AccountID, expect Amount, value Amount) bool {
	acct, exists := l.accounts[id]
	if !exists || acct.Balance.Cmp(expect) != 0 || value.Sign() < 0 {
		return false
	}

	acct.Balance = value
	l.accounts[id] = acct
	l.changed(id)
	return true
}

// changeSigner adds or removes signer. With adjust set, adding also raises
// the required signatures by one and removing lowers them by one, which
// keeps the operation its own inverse with the flag flipped.
func (l *ledger) changeSigner(id AccountID, signer AccountID, adding bool, adjust bool) bool {
	acct, exists := l.accounts[id]
	if !exists {
		return false
	}

	required := acct.RequiredSigs
	var signers []AccountID

	if adding {
		if signer == id || acct.hasSigner(signer) || len(acct.AllowedSigners) >= maxSigners {
			return false
		}
		signers = append(slices.Clone(acct.AllowedSigners), signer)
		slices.SortFunc(signers, compareAccountIDs)
		if adjust {
			required++
		}
	} else {
		idx := slices.Index(acct.AllowedSigners, signer)
		if idx < 0 {
			return false
		}
		signers = slices.Delete(slices.Clone(acct.AllowedSigners), idx, idx+1)
		if adjust {
			if required <= 1 {
				return false
			}
			required--
		}
	}

	if required < 1 || int(required) > len(signers)+1 {
		return false
	}

	acct.AllowedSigners = cloneSlice(signers)
	acct.RequiredSigs = required
	acct.Kind = Normal
	if len(signers) > 0 {
		acct.Kind = Multisig
	}

	l.accounts[id] = acct
	l.changed(id)
	return true
}

func (l *ledger) requiredSigs(id AccountID, expect uint8, value uint8) bool {
	acct, exists := l.accounts[id]
	if !exists || acct.RequiredSigs != expect {
		return false
	}

	if value < 1 || int(value) > len(acct.AllowedSigners)+1 {
		return false
	}

	acct.RequiredSigs = value
	l.accounts[id] = acct
	l.changed(id)
	return true
}

// publicKey sets key when set is true and the account has none, or clears
// it when set is false and the account holds exactly key.
func (l *ledger) publicKey(id AccountID, key []byte, set bool) bool {
	acct, exists := l.accounts[id]
	if !exists || len(key) == 0 {
		return false
	}

	if set {
		if acct.PublicKey != nil {
			return false
		}
		acct.PublicKey = slices.Clone(key)
	} else {
		if !bytes.Equal(acct.PublicKey, key) {
			return false
		}
		acct.PublicKey = nil
	}

	l.accounts[id] = acct
	l.changed(id)
	return true
}

func (l *ledger) userData(id AccountID, expect []byte, value []byte) bool {
	acct, exists := l.accounts[id]
	if !exists || !bytes.Equal(acct.UserData, expect) {
		return false
	}

	acct.UserData = cloneSlice(value)
	l.accounts[id] = acct
	l.changed(id)
	return true
}

func (l *ledger) create(id AccountID) bool {
	if _, exists := l.accounts[id]; exists {
		return false
	}

	l.accounts[id] = newAccount(id)
	l.changed(id)
	return true
}

// drop removes the account whatever it holds.
func (l *ledger) drop(id AccountID) bool {
	if _, exists := l.accounts[id]; !exists {
		return false
	}

	delete(l.accounts, id)
	l.changed(id)
	return true
}

// remove deletes the account only when it still matches snapshot.
func (l *ledger) remove(id AccountID, snapshot Account) bool {
	acct, exists := l.accounts[id]
	if !exists || !acct.Equal(snapshot) {
		return false
	}

	delete(l.accounts, id)
	l.changed(id)
	return true
}

func (l *ledger) restore(snapshot Account) bool {
	if _, exists := l.accounts[snapshot.ID]; exists {
		return false
	}

	l.accounts[snapshot.ID] = snapshot.Clone()
	l.changed(snapshot.ID)
	return true
}
