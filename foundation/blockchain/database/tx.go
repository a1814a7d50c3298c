package database

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ixledger/node/foundation/blockchain/hasher"
	"github.com/ixledger/node/foundation/blockchain/signature"
)

// TxKind identifies the change a transaction asks for.
type TxKind string

// Set of transaction kinds.
const (
	KindTransfer     TxKind = "transfer"
	KindAddSigner    TxKind = "add_signer"
	KindRemoveSigner TxKind = "remove_signer"
	KindRequiredSigs TxKind = "required_sigs"
	KindUserData     TxKind = "user_data"
	KindNameRegister TxKind = "name_register"
	KindNameData     TxKind = "name_data"
	KindNameTransfer TxKind = "name_transfer"
	KindNameRecovery TxKind = "name_recovery"
	KindNameExtend   TxKind = "name_extend"
	KindNameCapacity TxKind = "name_capacity"
	KindNameRemove   TxKind = "name_remove"
)

var txKinds = map[TxKind]bool{
	KindTransfer:     true,
	KindAddSigner:    true,
	KindRemoveSigner: true,
	KindRequiredSigs: true,
	KindUserData:     true,
	KindNameRegister: true,
	KindNameData:     true,
	KindNameTransfer: true,
	KindNameRecovery: true,
	KindNameExtend:   true,
	KindNameCapacity: true,
	KindNameRemove:   true,
}

// =============================================================================

// Tx is a change to the ledger or the name registry requested by an account.
// Fields a kind doesn't use are left empty.
type Tx struct {
	ChainID    uint16        `json:"chain_id"`             // Chain the transaction is valid for.
	Kind       TxKind        `json:"kind"`                 // The change requested.
	From       AccountID     `json:"from"`                 // Account paying the fee and authorizing the change.
	Nonce      uint64        `json:"nonce"`                // Unique id for the transaction supplied by the user.
	Fee        Amount        `json:"fee"`                  // Paid to the beneficiary of the block.
	To         AccountID     `json:"to"`                   // Recipient, signer, new owner or recovery account.
	Value      Amount        `json:"value"`                // Coins moved by a transfer.
	Required   uint8         `json:"required,omitempty"`   // Required signatures of a multisig account.
	Name       string        `json:"name,omitempty"`       // Name the transaction applies to.
	Capacity   uint32        `json:"capacity,omitempty"`   // Data capacity of a name.
	Expiration uint64        `json:"expiration,omitempty"` // Block a name expires at.
	Data       hexutil.Bytes `json:"data,omitempty"`       // User data or name data.
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {
	signedTx := SignedTx{Tx: tx}
	if err := signedTx.AddSignature(privateKey); err != nil {
		return SignedTx{}, err
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. A transaction from a
// multisig account carries one signature per signer.
type SignedTx struct {
	Tx
	Sigs []hexutil.Bytes `json:"sigs"`
}

// Signer is an account that signed a transaction.
type Signer struct {
	ID        AccountID
	PublicKey []byte
}

// AddSignature signs the transaction with another key.
func (tx *SignedTx) AddSignature(privateKey *ecdsa.PrivateKey) error {
	sig, err := signature.Sign(tx.Tx, privateKey)
	if err != nil {
		return err
	}

	tx.Sigs = append(tx.Sigs, sig)
	return nil
}

// Validate verifies the transaction is well formed and every signature
// conforms to our standards. It doesn't check the signers are allowed to
// sign for the account.
func (tx SignedTx) Validate(chainID uint16) error {
	if tx.ChainID != chainID {
		return fmt.Errorf("invalid chain id, got[%d] exp[%d]", tx.ChainID, chainID)
	}

	if !txKinds[tx.Kind] {
		return fmt.Errorf("unknown transaction kind %q", tx.Kind)
	}

	if tx.Fee.Sign() < 0 || tx.Value.Sign() < 0 {
		return errors.New("negative amounts are not allowed")
	}

	if len(tx.Sigs) == 0 {
		return errors.New("transaction is not signed")
	}

	for i, sig := range tx.Sigs {
		if err := signature.Verify(sig); err != nil {
			return fmt.Errorf("signature %d: %w", i, err)
		}
	}

	return nil
}

// Signers recovers the distinct accounts that signed the transaction in
// the order of the signatures.
func (tx SignedTx) Signers() ([]Signer, error) {
	signers := make([]Signer, 0, len(tx.Sigs))
	seen := make(map[AccountID]bool, len(tx.Sigs))

	for i, sig := range tx.Sigs {
		key, err := signature.PublicKey(tx.Tx, sig)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}

		pk, err := crypto.UnmarshalPubkey(key)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}

		id := PublicKeyToAccountID(*pk)
		if seen[id] {
			continue
		}
		seen[id] = true

		signers = append(signers, Signer{ID: id, PublicKey: key})
	}

	return signers, nil
}

// Hash implements the merkle Hashable interface for providing a hash of a
// signed transaction.
func (tx SignedTx) Hash() ([]byte, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	return hasher.Sum(data), nil
}

// Equals implements the merkle Hashable interface. Two transactions from
// the same account with the same nonce and signatures are the same.
func (tx SignedTx) Equals(otherTx SignedTx) bool {
	if tx.From != otherTx.From || tx.Nonce != otherTx.Nonce || len(tx.Sigs) != len(otherTx.Sigs) {
		return false
	}

	for i := range tx.Sigs {
		if !bytes.Equal(tx.Sigs[i], otherTx.Sigs[i]) {
			return false
		}
	}

	return true
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%d:%s", tx.From, tx.Nonce, tx.Kind)
}
