package registry

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/hasher"
)

// Limits on registered names.
const (
	MaxNameLength  = 253
	MaxLabelLength = 63
	MaxCapacity    = 64 << 10
)

// Set of errors returned when validating names.
var (
	ErrInvalidName = errors.New("registry: invalid name")
	ErrNoParent    = errors.New("registry: parent name doesn't exist")
)

// NameID identifies a name in the registry. It is the hash of the name.
type NameID [hasher.Size]byte

// ToNameID returns the id of the name.
func ToNameID(name string) NameID {
	return NameID(hasher.Sum([]byte(name)))
}

// String returns the hex form of the id.
func (id NameID) String() string {
	return hex.EncodeToString(id[:])
}

// Compare orders ids by their raw bytes.
func (id NameID) Compare(other NameID) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id NameID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func compareNameIDs(a, b NameID) int {
	return a.Compare(b)
}

// ValidateName checks the name is a dot separated list of labels made of
// lower case letters, digits and hyphens.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return ErrInvalidName
	}

	for _, label := range strings.Split(name, ".") {
		if label == "" || len(label) > MaxLabelLength {
			return ErrInvalidName
		}

		if label[0] == '-' || label[len(label)-1] == '-' {
			return ErrInvalidName
		}

		for _, c := range []byte(label) {
			if !('a' <= c && c <= 'z') && !('0' <= c && c <= '9') && c != '-' {
				return ErrInvalidName
			}
		}
	}

	return nil
}

// Parent returns the name one level up, and false for a top level name.
func Parent(name string) (string, bool) {
	_, parent, found := strings.Cut(name, ".")
	return parent, found
}

// =============================================================================

// Name is a registered name.
type Name struct {
	ID         NameID             `json:"id"`
	Name       string             `json:"name"`
	Owner      database.AccountID `json:"owner"`
	Recovery   database.AccountID `json:"recovery"`
	Capacity   uint32             `json:"capacity"`
	Expiration uint64             `json:"expiration"`
	Data       hexutil.Bytes      `json:"data,omitempty"`
}

// Clone returns a deep copy of the name.
func (n Name) Clone() Name {
	if len(n.Data) == 0 {
		n.Data = nil
		return n
	}

	n.Data = bytes.Clone(n.Data)
	return n
}

// Equal reports whether both names hold the same values.
func (n Name) Equal(o Name) bool {
	return n.ID == o.ID &&
		n.Name == o.Name &&
		n.Owner == o.Owner &&
		n.Recovery == o.Recovery &&
		n.Capacity == o.Capacity &&
		n.Expiration == o.Expiration &&
		bytes.Equal(n.Data, o.Data)
}

// Expired reports whether the name has expired at the block number. A zero
// expiration never expires.
func (n Name) Expired(blockNum uint64) bool {
	return n.Expiration != 0 && n.Expiration <= blockNum
}
