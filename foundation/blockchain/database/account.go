package database

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// AccountID represents an account id that is used to sign transactions and is
// associated with transactions on the blockchain. The raw bytes define the
// order accounts are hashed in, so Compare must never change.
type AccountID [common.AddressLength]byte

// ToAccountID converts a hex-encoded string to an account and validates the
// hex-encoded string is formatted correctly.
func ToAccountID(hex string) (AccountID, error) {
	if !common.IsHexAddress(hex) {
		return AccountID{}, errors.New("invalid account format")
	}

	return AccountID(common.HexToAddress(hex)), nil
}

// PublicKeyToAccountID converts the public key to an account value.
func PublicKeyToAccountID(pk ecdsa.PublicKey) AccountID {
	return AccountID(crypto.PubkeyToAddress(pk))
}

// String returns the checksummed hex form of the account.
func (id AccountID) String() string {
	return common.Address(id).Hex()
}

// Bytes returns the raw account bytes.
func (id AccountID) Bytes() []byte {
	return id[:]
}

// Compare orders account ids by their raw bytes.
func (id AccountID) Compare(other AccountID) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id AccountID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *AccountID) UnmarshalText(data []byte) error {
	v, err := ToAccountID(string(data))
	if err != nil {
		return err
	}

	*id = v
	return nil
}

// compareAccountIDs is the sort function used wherever accounts are ordered.
func compareAccountIDs(a, b AccountID) int {
	return a.Compare(b)
}

// =============================================================================

// Kind identifies how transactions from an account must be signed.
type Kind uint8

// Set of account kinds.
const (
	Normal Kind = iota
	Multisig
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Multisig:
		return "multisig"
	}

	return "unknown"
}

// =============================================================================

// Account represents information stored in the database for an individual account.
type Account struct {
	ID             AccountID     `json:"id"`
	Balance        Amount        `json:"balance"`
	Kind           Kind          `json:"kind"`
	RequiredSigs   uint8         `json:"required_sigs"`
	AllowedSigners []AccountID   `json:"allowed_signers,omitempty"`
	PublicKey      hexutil.Bytes `json:"public_key,omitempty"`
	UserData       hexutil.Bytes `json:"user_data,omitempty"`
}

// newAccount constructs a new account value for use.
func newAccount(id AccountID) Account {
	return Account{
		ID:           id,
		RequiredSigs: 1,
	}
}

// Clone returns a deep copy of the account. Empty slices are normalized to
// nil so clones compare equal regardless of how they were built.
func (a Account) Clone() Account {
	a.AllowedSigners = cloneSlice(a.AllowedSigners)
	a.PublicKey = cloneSlice(a.PublicKey)
	a.UserData = cloneSlice(a.UserData)
	return a
}

// Equal reports whether both accounts hold the same values.
func (a Account) Equal(b Account) bool {
	return a.ID == b.ID &&
		a.Balance.Cmp(b.Balance) == 0 &&
		a.Kind == b.Kind &&
		a.RequiredSigs == b.RequiredSigs &&
		slices.Equal(a.AllowedSigners, b.AllowedSigners) &&
		bytes.Equal(a.PublicKey, b.PublicKey) &&
		bytes.Equal(a.UserData, b.UserData)
}

// IsEmpty reports whether the account holds nothing worth keeping. Empty
// accounts are removed from the ledger.
func (a Account) IsEmpty() bool {
	return a.Balance.IsZero() &&
		a.Kind == Normal &&
		len(a.AllowedSigners) == 0 &&
		len(a.PublicKey) == 0 &&
		len(a.UserData) == 0
}

// hasSigner reports whether signer is in the allowed set.
func (a Account) hasSigner(signer AccountID) bool {
	return slices.Contains(a.AllowedSigners, signer)
}

func cloneSlice[S ~[]E, E any](s S) S {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}
