package database_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ixledger/node/foundation/blockchain/database"
)

const (
	keyPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	keyBill  = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
)

func signedTx(t *testing.T, hexKey string, nonce uint64) database.SignedTx {
	t.Helper()

	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %v", failed, err)
	}

	tx := database.Tx{
		ChainID: 1,
		Kind:    database.KindTransfer,
		From:    database.PublicKeyToAccountID(pk.PublicKey),
		Nonce:   nonce,
		Fee:     database.NewAmount(10),
		To:      accountID(7),
		Value:   database.Coins(1),
	}

	signed, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}

	return signed
}

func mineBlock(t *testing.T, prev database.Block, trans ...database.SignedTx) database.Block {
	t.Helper()

	block, err := database.POW(context.Background(), database.POWArgs{
		BeneficiaryID:  accountID(1),
		Difficulty:     1,
		Version:        database.CurrentBlockVersion,
		PrevBlock:      prev,
		Trans:          trans,
		WalletChecksum: []byte{1, 2, 3},
		NamesChecksum:  []byte{4, 5, 6},
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	return block
}

func Test_POW(t *testing.T) {
	t.Log("Given the need to mine and validate blocks.")
	{
		genesis := database.Block{Header: database.BlockHeader{Version: database.CurrentBlockVersion, Difficulty: 1}}

		block := mineBlock(t, genesis, signedTx(t, keyPavel, 1), signedTx(t, keyBill, 1))

		if !strings.HasPrefix(block.Hash(), "0x0") {
			t.Fatalf("\t%s\tShould solve the hash with one leading zero: %s", failed, block.Hash())
		}
		t.Logf("\t%s\tShould solve the hash with one leading zero.", success)

		if block.Header.PrevBlockHash != database.ZeroHash {
			t.Fatalf("\t%s\tShould link the genesis block by the zero hash.", failed)
		}
		t.Logf("\t%s\tShould link the genesis block by the zero hash.", success)

		ev := func(string, ...any) {}
		if err := block.ValidateBlock(genesis, ev); err != nil {
			t.Fatalf("\t%s\tShould validate the mined block: %v", failed, err)
		}
		t.Logf("\t%s\tShould validate the mined block.", success)

		empty := mineBlock(t, block)
		if empty.Header.TransRoot != database.ZeroHash {
			t.Fatalf("\t%s\tShould use the zero hash as the root of an empty block.", failed)
		}
		if err := empty.ValidateBlock(block, ev); err != nil {
			t.Fatalf("\t%s\tShould validate an empty block: %v", failed, err)
		}
		t.Logf("\t%s\tShould validate an empty block.", success)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := database.POW(ctx, database.POWArgs{Difficulty: 60, PrevBlock: block})
		if err == nil {
			t.Fatalf("\t%s\tShould stop mining when cancelled.", failed)
		}
		t.Logf("\t%s\tShould stop mining when cancelled.", success)
	}
}

func Test_ValidateBlock(t *testing.T) {
	genesis := database.Block{Header: database.BlockHeader{Version: database.CurrentBlockVersion, Difficulty: 1}}
	parent := mineBlock(t, genesis, signedTx(t, keyPavel, 1))

	type test struct {
		name   string
		mutate func(b *database.Block)
	}

	tt := []test{
		{"number", func(b *database.Block) { b.Header.Number = 5 }},
		{"parent hash", func(b *database.Block) { b.Header.PrevBlockHash = database.ZeroHash }},
		{"difficulty", func(b *database.Block) { b.Header.Difficulty = 0 }},
		{"version", func(b *database.Block) { b.Header.Version = 1 }},
		{"timestamp", func(b *database.Block) { b.Header.TimeStamp = parent.Header.TimeStamp - 1 }},
		{"trans root", func(b *database.Block) { b.Header.TransRoot = database.ZeroHash }},
		{"nonce", unsolve},
	}

	t.Log("Given the need to reject invalid blocks.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				block := mineBlock(t, parent, signedTx(t, keyBill, 1))
				tst.mutate(&block)

				// Mutating the header changes the hash, solve it again so
				// only the mutated field is wrong.
				if tst.name != "nonce" {
					block = resolve(t, block)
				}

				if err := block.ValidateBlock(parent, func(string, ...any) {}); err == nil {
					t.Fatalf("\t%s\tTest %d:\tShould reject a block with a bad %s.", failed, testID, tst.name)
				}
				t.Logf("\t%s\tTest %d:\tShould reject a block with a bad %s.", success, testID, tst.name)
			}

			t.Run(tst.name, f)
		}
	}
}

// unsolve moves the nonce until the hash no longer solves the puzzle.
func unsolve(b *database.Block) {
	for strings.HasPrefix(b.Hash(), "0x0") {
		b.Header.Nonce++
	}
}

// resolve searches for a nonce that solves the block as it is.
func resolve(t *testing.T, block database.Block) database.Block {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for !strings.HasPrefix(block.Hash(), "0x0") {
		if time.Now().After(deadline) {
			t.Fatalf("\t%s\tShould be able to solve the block again.", failed)
		}
		block.Header.Nonce++
	}

	return block
}

func Test_BlockData(t *testing.T) {
	t.Log("Given the need to persist and reload a block.")
	{
		genesis := database.Block{Header: database.BlockHeader{Version: database.CurrentBlockVersion, Difficulty: 1}}
		block := mineBlock(t, genesis, signedTx(t, keyPavel, 1), signedTx(t, keyPavel, 2))

		data := database.NewBlockData(block)

		got, err := database.ToBlock(data)
		if err != nil {
			t.Fatalf("\t%s\tShould rebuild the block: %v", failed, err)
		}

		if got.Hash() != block.Hash() || len(got.Values()) != 2 {
			t.Fatalf("\t%s\tShould rebuild the same block.", failed)
		}
		t.Logf("\t%s\tShould rebuild the same block.", success)

		if !got.Header.ChecksumsEqual([]byte{1, 2, 3}, []byte{4, 5, 6}) {
			t.Fatalf("\t%s\tShould carry the checksums.", failed)
		}
		t.Logf("\t%s\tShould carry the checksums.", success)

		data.Header.Nonce++
		if _, err := database.ToBlock(data); err == nil {
			t.Fatalf("\t%s\tShould detect a header that doesn't match its hash.", failed)
		}
		t.Logf("\t%s\tShould detect a header that doesn't match its hash.", success)
	}
}
