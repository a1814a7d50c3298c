// Package signature provides helper functions for signing transactions and
// recovering the accounts that signed them.
package signature

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ledgerID is added to the recovery id of every signature so signatures
// produced for this chain can't be mistaken for Ethereum ones.
const ledgerID = 31

// Length is the number of bytes in a signature.
const Length = crypto.SignatureLength

// =============================================================================

// Sign uses the specified private key to sign the value. The value is
// marshaled to JSON before it is hashed.
func Sign(value any, privateKey *ecdsa.PrivateKey) (hexutil.Bytes, error) {
	data, err := stamp(value)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, err
	}

	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return nil, err
	}

	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, sig[:crypto.RecoveryIDOffset]) {
		return nil, errors.New("invalid signature")
	}

	sig[crypto.RecoveryIDOffset] += ledgerID
	return sig, nil
}

// Verify checks the signature is well formed.
func Verify(sig []byte) error {
	if len(sig) != Length {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}

	v := sig[crypto.RecoveryIDOffset] - ledgerID
	if v != 0 && v != 1 {
		return errors.New("invalid recovery id")
	}

	r, s := sig[:32], sig[32:64]
	if !crypto.ValidateSignatureValues(v, new(big.Int).SetBytes(r), new(big.Int).SetBytes(s), true) {
		return errors.New("invalid signature values")
	}

	return nil
}

// PublicKey recovers the uncompressed public key that signed the value.
// The same value given to Sign must be provided or a different key is
// recovered.
func PublicKey(value any, sig []byte) ([]byte, error) {
	if err := Verify(sig); err != nil {
		return nil, err
	}

	data, err := stamp(value)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, Length)
	copy(raw, sig)
	raw[crypto.RecoveryIDOffset] -= ledgerID

	return crypto.Ecrecover(data, raw)
}

// Address returns the hex address of the account that signed the value.
func Address(value any, sig []byte) (string, error) {
	key, err := PublicKey(value, sig)
	if err != nil {
		return "", err
	}

	pk, err := crypto.UnmarshalPubkey(key)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*pk).Hex(), nil
}

// =============================================================================

// stamp returns the 32 byte hash that is signed for the value. The ledger
// prefix keeps the signature from being valid for any other message.
func stamp(value any) ([]byte, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	prefix := []byte("\x19IXLedger Signed Message:\n32")
	return crypto.Keccak256(prefix, crypto.Keccak256(v)), nil
}
