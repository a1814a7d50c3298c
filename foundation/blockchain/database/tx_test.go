package database_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixledger/node/foundation/blockchain/database"
)

func TestSignedTxValidate(t *testing.T) {
	tx := signedTx(t, keyPavel, 1)
	require.NoError(t, tx.Validate(1))

	assert.Error(t, tx.Validate(2), "wrong chain")

	unsigned := tx
	unsigned.Sigs = nil
	assert.Error(t, unsigned.Validate(1), "no signatures")

	unknown := tx
	unknown.Kind = "mint"
	assert.Error(t, unknown.Validate(1), "unknown kind")

	negative := tx
	negative.Value = database.Coins(-1)
	assert.Error(t, negative.Validate(1), "negative value")

	short := tx
	short.Sigs = append(short.Sigs[:0:0], tx.Sigs[0][:10])
	assert.Error(t, short.Validate(1), "short signature")
}

func TestSignedTxSigners(t *testing.T) {
	pavel, err := crypto.HexToECDSA(keyPavel)
	require.NoError(t, err)

	bill, err := crypto.HexToECDSA(keyBill)
	require.NoError(t, err)

	tx := signedTx(t, keyPavel, 1)
	require.NoError(t, tx.AddSignature(bill))
	require.NoError(t, tx.AddSignature(pavel))

	signers, err := tx.Signers()
	require.NoError(t, err)
	require.Len(t, signers, 2, "duplicate signers are collapsed")

	assert.Equal(t, database.PublicKeyToAccountID(pavel.PublicKey), signers[0].ID)
	assert.Equal(t, database.PublicKeyToAccountID(bill.PublicKey), signers[1].ID)
	assert.Equal(t, crypto.FromECDSAPub(&bill.PublicKey), signers[1].PublicKey)

	// Changing the transaction after signing changes the recovered signer.
	tampered := tx
	tampered.Value = database.Coins(1000)
	tampered.Sigs = tx.Sigs

	signers, err = tampered.Signers()
	if err == nil {
		assert.NotEqual(t, database.PublicKeyToAccountID(pavel.PublicKey), signers[0].ID)
	}
}

func TestSignedTxIdentity(t *testing.T) {
	a := signedTx(t, keyPavel, 1)
	b := signedTx(t, keyPavel, 1)
	c := signedTx(t, keyPavel, 2)

	assert.True(t, a.Equals(a))
	assert.False(t, a.Equals(c))
	assert.Equal(t, a.From.String()+":1:transfer", a.String())

	ha, err := a.Hash()
	require.NoError(t, err)
	hc, err := c.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)

	// ECDSA signatures in go-ethereum are deterministic (RFC 6979).
	assert.True(t, a.Equals(b))
}
