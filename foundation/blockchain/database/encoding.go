package database

import (
	"github.com/pkg/errors"

	"github.com/ixledger/node/foundation/blockchain/journal"
)

func putAccountID(w *journal.Writer, id AccountID) {
	w.PutBytes(id[:])
}

func readAccountID(r *journal.Reader) (AccountID, error) {
	b, err := r.Fixed(len(AccountID{}))
	if err != nil {
		return AccountID{}, err
	}

	return AccountID(b), nil
}

func readAmount(r *journal.Reader) (Amount, error) {
	s, err := r.Text()
	if err != nil {
		return Amount{}, err
	}

	amount, err := ParseAmount(s)
	if err != nil {
		return Amount{}, errors.Wrap(journal.ErrCorrupt, err.Error())
	}

	return amount, nil
}

// encodeAccount writes every field of the account. It is used by destroy
// entries and snapshot chunks.
func encodeAccount(w *journal.Writer, acct Account) {
	putAccountID(w, acct.ID)
	w.PutString(acct.Balance.String())
	w.PutByte(byte(acct.Kind))
	w.PutByte(acct.RequiredSigs)
	w.PutUvarint(uint64(len(acct.AllowedSigners)))
	for _, signer := range acct.AllowedSigners {
		putAccountID(w, signer)
	}
	w.PutBytes(acct.PublicKey)
	w.PutBytes(acct.UserData)
}

func decodeAccount(r *journal.Reader) (Account, error) {
	var acct Account
	var err error

	if acct.ID, err = readAccountID(r); err != nil {
		return Account{}, err
	}

	if acct.Balance, err = readAmount(r); err != nil {
		return Account{}, err
	}

	kind, err := r.Byte()
	if err != nil {
		return Account{}, err
	}
	acct.Kind = Kind(kind)

	if acct.RequiredSigs, err = r.Byte(); err != nil {
		return Account{}, err
	}

	count, err := r.Uvarint()
	if err != nil {
		return Account{}, err
	}
	if count > maxSigners {
		return Account{}, errors.Wrapf(journal.ErrCorrupt, "account %s: %d signers", acct.ID, count)
	}

	for range count {
		signer, err := readAccountID(r)
		if err != nil {
			return Account{}, err
		}
		acct.AllowedSigners = append(acct.AllowedSigners, signer)
	}

	if acct.PublicKey, err = r.Bytes(); err != nil {
		return Account{}, err
	}

	if acct.UserData, err = r.Bytes(); err != nil {
		return Account{}, err
	}

	if err := validateAccount(acct); err != nil {
		return Account{}, errors.Wrap(journal.ErrCorrupt, err.Error())
	}

	return acct, nil
}

// validateAccount checks the invariants every stored account holds.
func validateAccount(acct Account) error {
	switch {
	case acct.Balance.Sign() < 0:
		return errors.Errorf("account %s: negative balance %s", acct.ID, acct.Balance)

	case acct.Kind != Normal && acct.Kind != Multisig:
		return errors.Errorf("account %s: unknown kind %d", acct.ID, acct.Kind)

	case (acct.Kind == Multisig) != (len(acct.AllowedSigners) > 0):
		return errors.Errorf("account %s: kind %s with %d signers", acct.ID, acct.Kind, len(acct.AllowedSigners))

	case acct.RequiredSigs < 1 || int(acct.RequiredSigs) > len(acct.AllowedSigners)+1:
		return errors.Errorf("account %s: %d required signatures with %d signers", acct.ID, acct.RequiredSigs, len(acct.AllowedSigners))
	}

	for i := 1; i < len(acct.AllowedSigners); i++ {
		if acct.AllowedSigners[i-1].Compare(acct.AllowedSigners[i]) >= 0 {
			return errors.Errorf("account %s: signers not sorted", acct.ID)
		}
	}

	return nil
}
