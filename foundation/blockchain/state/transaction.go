package state

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ixledger/node/foundation/blockchain/database"
)

// TxError reports the transaction of a block that couldn't be applied.
type TxError struct {
	Index int
	Tx    database.SignedTx
	Err   error
}

// Error implements the error interface.
func (te *TxError) Error() string {
	return fmt.Sprintf("tx[%d] %s: %s", te.Index, te.Tx, te.Err)
}

// Unwrap returns the underlying error.
func (te *TxError) Unwrap() error {
	return te.Err
}

// =============================================================================

// SubmitTransaction accepts a transaction from a wallet for inclusion in a
// future block. The signers are checked against the ledger when the
// transaction is applied.
func (s *State) SubmitTransaction(tx database.SignedTx) error {
	if err := tx.Validate(s.genesis.ChainID); err != nil {
		return err
	}

	if _, err := tx.Signers(); err != nil {
		return err
	}

	s.mu.Lock()
	num, used := s.used[usedKey(tx)]
	s.mu.Unlock()

	if used {
		return fmt.Errorf("%w: blk[%d]", ErrNonceUsed, num)
	}

	n, err := s.mempool.Upsert(tx)
	if err != nil {
		return err
	}
	mempoolSize.WithLabelValues().Set(float64(n))

	s.evHandler("state: SubmitTransaction: tx[%s]: mempool[%d]", tx, n)

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return nil
}

// =============================================================================

// applyTx applies the transaction to the open transactions of both
// journals. A failure leaves partial changes behind and the caller must
// revert the block.
func (s *State) applyTx(blockNum uint64, beneficiary database.AccountID, tx database.SignedTx) error {
	if err := tx.Validate(s.genesis.ChainID); err != nil {
		return err
	}

	if num, used := s.used[usedKey(tx)]; used {
		return fmt.Errorf("%w: blk[%d]", ErrNonceUsed, num)
	}

	signers, err := tx.Signers()
	if err != nil {
		return err
	}

	if err := s.authorize(tx, signers); err != nil {
		return err
	}

	// The key of the account is recorded the first time it signs.
	for _, signer := range signers {
		if signer.ID == tx.From && !s.db.SetPublicKey(tx.From, signer.PublicKey) {
			return fmt.Errorf("unable to record public key of %s", tx.From)
		}
	}

	if !s.db.SubBalance(tx.From, tx.Fee) {
		return fmt.Errorf("%s can't pay fee %s", tx.From, tx.Fee)
	}

	if !s.db.AddBalance(beneficiary, tx.Fee) {
		return fmt.Errorf("unable to pay fee to %s", beneficiary)
	}

	var ok bool
	switch tx.Kind {
	case database.KindTransfer:
		ok = s.db.SubBalance(tx.From, tx.Value) && s.db.AddBalance(tx.To, tx.Value)

	case database.KindAddSigner:
		ok = s.db.AddSigner(tx.From, tx.To)

	case database.KindRemoveSigner:
		ok = s.db.RemoveSigner(tx.From, tx.To)

	case database.KindRequiredSigs:
		ok = s.db.SetRequiredSignatures(tx.From, tx.Required)

	case database.KindUserData:
		ok = s.db.SetUserData(tx.From, tx.Data)

	default:
		return s.applyNameTx(blockNum, tx)
	}

	if !ok {
		return fmt.Errorf("%s rejected by the ledger", tx.Kind)
	}

	return nil
}

// authorize checks the signers are allowed to move the account. A multisig
// account needs the required number of distinct signers from its allowed
// set or the account itself.
func (s *State) authorize(tx database.SignedTx, signers []database.Signer) error {
	acct := s.db.Account(tx.From)

	if acct.Kind != database.Multisig {
		if !slices.ContainsFunc(signers, func(sg database.Signer) bool { return sg.ID == tx.From }) {
			return ErrNotAuthorized
		}
		return nil
	}

	var count int
	for _, signer := range signers {
		if signer.ID == tx.From || slices.Contains(acct.AllowedSigners, signer.ID) {
			count++
		}
	}

	if count < int(acct.RequiredSigs) {
		return fmt.Errorf("%w: got %d of %d signatures", ErrNotAuthorized, count, acct.RequiredSigs)
	}

	return nil
}

// applyNameTx applies the name registry transactions. Only the owner can
// change a name, except a transfer which the recovery account can also
// sign for.
func (s *State) applyNameTx(blockNum uint64, tx database.SignedTx) error {
	if tx.Kind == database.KindNameRegister {
		if tx.Expiration != 0 && tx.Expiration <= blockNum {
			return fmt.Errorf("name %q expires at blk[%d] before blk[%d]", tx.Name, tx.Expiration, blockNum)
		}

		// Subnames are handed out by the owner of the parent.
		if _, parent, sub := strings.Cut(tx.Name, "."); sub {
			p, exists := s.names.Lookup(parent)
			if exists && p.Owner != tx.From {
				return fmt.Errorf("%w: %s doesn't own %q", ErrNotAuthorized, tx.From, parent)
			}
		}

		if !s.names.Register(tx.Name, tx.From, tx.To, tx.Capacity, tx.Expiration) {
			return fmt.Errorf("name %q can't be registered", tx.Name)
		}
		return nil
	}

	n, exists := s.names.Lookup(tx.Name)
	if !exists {
		return fmt.Errorf("name %q: %w", tx.Name, ErrNotFound)
	}

	if n.Owner != tx.From && !(tx.Kind == database.KindNameTransfer && n.Recovery == tx.From) {
		return fmt.Errorf("%w: %s doesn't own %q", ErrNotAuthorized, tx.From, tx.Name)
	}

	var ok bool
	switch tx.Kind {
	case database.KindNameData:
		ok = s.names.UpdateData(tx.Name, tx.Data)
	case database.KindNameTransfer:
		ok = s.names.TransferOwner(tx.Name, tx.To)
	case database.KindNameRecovery:
		ok = s.names.ChangeRecovery(tx.Name, tx.To)
	case database.KindNameExtend:
		ok = s.names.ExtendExpiration(tx.Name, tx.Expiration)
	case database.KindNameCapacity:
		ok = s.names.UpdateCapacity(tx.Name, tx.Capacity)
	case database.KindNameRemove:
		ok = s.names.Remove(tx.Name)
	default:
		return fmt.Errorf("unknown transaction kind %q", tx.Kind)
	}

	if !ok {
		return fmt.Errorf("%s of %q rejected by the registry", tx.Kind, tx.Name)
	}

	return nil
}
