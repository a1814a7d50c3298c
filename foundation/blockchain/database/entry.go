package database

import (
	"github.com/pkg/errors"

	"github.com/ixledger/node/foundation/blockchain/journal"
)

// Entry is one reversible change to the account ledger. The set of entries
// is closed: only the types in this file can be applied to a ledger.
type Entry = journal.Entry[*ledger, AccountID]

// Transaction is the set of entries recorded for one block.
type Transaction = journal.Transaction[*ledger, AccountID]

// Set of entry type discriminants. These values are written to disk and
// must never be renumbered.
const (
	TypeBalance byte = iota + 1
	TypeSigner
	TypeRequiredSigs
	TypePublicKey
	TypeUserData
	TypeCreate
	TypeDestroy
)

var typeNames = map[byte]string{
	TypeBalance:      "balance",
	TypeSigner:       "signer",
	TypeRequiredSigs: "required_sigs",
	TypePublicKey:    "public_key",
	TypeUserData:     "user_data",
	TypeCreate:       "create",
	TypeDestroy:      "destroy",
}

// TypeName returns the name of the entry type for logs and metrics.
func TypeName(typ byte) string {
	if name, exists := typeNames[typ]; exists {
		return name
	}
	return "unknown"
}

// =============================================================================

// BalanceEntry changes the balance of an account from Old to New.
type BalanceEntry struct {
	ID  AccountID
	Old Amount
	New Amount
}

func (e BalanceEntry) Type() byte            { return TypeBalance }
func (e BalanceEntry) Target() AccountID     { return e.ID }
func (e BalanceEntry) Apply(l *ledger) bool  { return l.setBalance(e.ID, e.Old, e.New) }
func (e BalanceEntry) Revert(l *ledger) bool { return l.setBalance(e.ID, e.New, e.Old) }

func (e BalanceEntry) Encode(w *journal.Writer) {
	putAccountID(w, e.ID)
	w.PutString(e.Old.String())
	w.PutString(e.New.String())
}

// SignerEntry adds or removes an allowed signer. When Adjust is set the
// required signatures move with the signer count.
type SignerEntry struct {
	ID     AccountID
	Signer AccountID
	Adding bool
	Adjust bool
}

func (e SignerEntry) Type() byte        { return TypeSigner }
func (e SignerEntry) Target() AccountID { return e.ID }

func (e SignerEntry) Apply(l *ledger) bool {
	return l.changeSigner(e.ID, e.Signer, e.Adding, e.Adjust)
}

func (e SignerEntry) Revert(l *ledger) bool {
	return l.changeSigner(e.ID, e.Signer, !e.Adding, e.Adjust)
}

func (e SignerEntry) Encode(w *journal.Writer) {
	putAccountID(w, e.ID)
	putAccountID(w, e.Signer)
	w.PutBool(e.Adding)
	w.PutBool(e.Adjust)
}

// RequiredSigsEntry changes the number of signatures a transaction from a
// multisig account needs.
type RequiredSigsEntry struct {
	ID  AccountID
	Old uint8
	New uint8
}

func (e RequiredSigsEntry) Type() byte            { return TypeRequiredSigs }
func (e RequiredSigsEntry) Target() AccountID     { return e.ID }
func (e RequiredSigsEntry) Apply(l *ledger) bool  { return l.requiredSigs(e.ID, e.Old, e.New) }
func (e RequiredSigsEntry) Revert(l *ledger) bool { return l.requiredSigs(e.ID, e.New, e.Old) }

func (e RequiredSigsEntry) Encode(w *journal.Writer) {
	putAccountID(w, e.ID)
	w.PutByte(e.Old)
	w.PutByte(e.New)
}

// PublicKeyEntry records the public key of an account. A key can only be
// set once.
type PublicKeyEntry struct {
	ID  AccountID
	Key []byte
}

func (e PublicKeyEntry) Type() byte            { return TypePublicKey }
func (e PublicKeyEntry) Target() AccountID     { return e.ID }
func (e PublicKeyEntry) Apply(l *ledger) bool  { return l.publicKey(e.ID, e.Key, true) }
func (e PublicKeyEntry) Revert(l *ledger) bool { return l.publicKey(e.ID, e.Key, false) }

func (e PublicKeyEntry) Encode(w *journal.Writer) {
	putAccountID(w, e.ID)
	w.PutBytes(e.Key)
}

// UserDataEntry replaces the user data of an account.
type UserDataEntry struct {
	ID  AccountID
	Old []byte
	New []byte
}

func (e UserDataEntry) Type() byte            { return TypeUserData }
func (e UserDataEntry) Target() AccountID     { return e.ID }
func (e UserDataEntry) Apply(l *ledger) bool  { return l.userData(e.ID, e.Old, e.New) }
func (e UserDataEntry) Revert(l *ledger) bool { return l.userData(e.ID, e.New, e.Old) }

func (e UserDataEntry) Encode(w *journal.Writer) {
	putAccountID(w, e.ID)
	w.PutBytes(e.Old)
	w.PutBytes(e.New)
}

// CreateEntry inserts a new empty account.
type CreateEntry struct {
	ID AccountID
}

func (e CreateEntry) Type() byte            { return TypeCreate }
func (e CreateEntry) Target() AccountID     { return e.ID }
func (e CreateEntry) Apply(l *ledger) bool  { return l.create(e.ID) }
func (e CreateEntry) Revert(l *ledger) bool { return l.drop(e.ID) }

func (e CreateEntry) Encode(w *journal.Writer) {
	putAccountID(w, e.ID)
}

// DestroyEntry removes an account, keeping a snapshot so it can be put back.
type DestroyEntry struct {
	ID       AccountID
	Snapshot Account
}

func (e DestroyEntry) Type() byte            { return TypeDestroy }
func (e DestroyEntry) Target() AccountID     { return e.ID }
func (e DestroyEntry) Apply(l *ledger) bool  { return l.remove(e.ID, e.Snapshot) }
func (e DestroyEntry) Revert(l *ledger) bool { return l.restore(e.Snapshot) }

func (e DestroyEntry) Encode(w *journal.Writer) {
	putAccountID(w, e.ID)
	encodeAccount(w, e.Snapshot)
}

// =============================================================================

// decodeEntry reads one entry, discriminant included.
func decodeEntry(r *journal.Reader) (Entry, error) {
	typ, err := r.Byte()
	if err != nil {
		return nil, err
	}

	if _, exists := typeNames[typ]; !exists {
		return nil, journal.IncorrectType(typ)
	}

	id, err := readAccountID(r)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeBalance:
		from, err := readAmount(r)
		if err != nil {
			return nil, err
		}
		to, err := readAmount(r)
		if err != nil {
			return nil, err
		}
		return BalanceEntry{ID: id, Old: from, New: to}, nil

	case TypeSigner:
		signer, err := readAccountID(r)
		if err != nil {
			return nil, err
		}
		adding, err := r.Bool()
		if err != nil {
			return nil, err
		}
		adjust, err := r.Bool()
		if err != nil {
			return nil, err
		}
		return SignerEntry{ID: id, Signer: signer, Adding: adding, Adjust: adjust}, nil

	case TypeRequiredSigs:
		from, err := r.Byte()
		if err != nil {
			return nil, err
		}
		to, err := r.Byte()
		if err != nil {
			return nil, err
		}
		return RequiredSigsEntry{ID: id, Old: from, New: to}, nil

	case TypePublicKey:
		key, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		return PublicKeyEntry{ID: id, Key: key}, nil

	case TypeUserData:
		from, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		to, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		return UserDataEntry{ID: id, Old: from, New: to}, nil

	case TypeCreate:
		return CreateEntry{ID: id}, nil

	case TypeDestroy:
		snapshot, err := decodeAccount(r)
		if err != nil {
			return nil, err
		}
		if snapshot.ID != id {
			return nil, errors.Wrapf(journal.ErrCorrupt, "destroy snapshot of %s targets %s", snapshot.ID, id)
		}
		return DestroyEntry{ID: id, Snapshot: snapshot}, nil
	}

	return nil, journal.IncorrectType(typ)
}
