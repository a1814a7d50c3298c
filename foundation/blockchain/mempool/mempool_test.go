package mempool_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/mempool"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	keyPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	keyBill  = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
)

func sign(t *testing.T, hexKey string, nonce uint64, fee int64) database.SignedTx {
	t.Helper()

	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %s", failed, err)
	}

	tx := database.Tx{
		Kind:  database.KindTransfer,
		From:  database.PublicKeyToAccountID(pk.PublicKey),
		Nonce: nonce,
		Fee:   database.NewAmount(fee),
		To:    database.AccountID{1},
		Value: database.Coins(1),
	}

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %s", failed, err)
	}

	return signedTx
}

func TestCRUD(t *testing.T) {
	t.Log("Given the need to validate mempool api.")
	{
		mp, err := mempool.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the mempool: %s", failed, err)
		}

		txs := []database.SignedTx{
			sign(t, keyPavel, 2, 10),
			sign(t, keyPavel, 1, 5),
			sign(t, keyBill, 1, 100),
		}

		for _, tx := range txs {
			if _, err := mp.Upsert(tx); err != nil {
				t.Fatalf("\t%s\tShould be able to add transaction %s: %s", failed, tx, err)
			}
		}

		if mp.Count() != len(txs) {
			t.Fatalf("\t%s\tShould have %d transactions, got %d.", failed, len(txs), mp.Count())
		}
		t.Logf("\t%s\tShould have %d transactions.", success, len(txs))

		if _, err := mp.Upsert(sign(t, keyPavel, 2, 1)); !errors.Is(err, mempool.ErrUnderpriced) {
			t.Fatalf("\t%s\tShould refuse a replacement paying a lower fee: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse a replacement paying a lower fee.", success)

		n, err := mp.Upsert(sign(t, keyPavel, 2, 20))
		if err != nil || n != len(txs) {
			t.Fatalf("\t%s\tShould replace a transaction with the same nonce.", failed)
		}
		t.Logf("\t%s\tShould replace a transaction with the same nonce.", success)

		best := mp.PickBest(2)
		if len(best) != 2 {
			t.Fatalf("\t%s\tShould pick 2 transactions, got %d.", failed, len(best))
		}

		if best[0].Nonce != 1 || best[1].Nonce != 1 {
			t.Fatalf("\t%s\tShould pick the first nonce of each account, got %s and %s.", failed, best[0], best[1])
		}
		t.Logf("\t%s\tShould pick the first nonce of each account.", success)

		all := mp.PickBest(-1)
		if len(all) != len(txs) {
			t.Fatalf("\t%s\tShould pick every transaction, got %d.", failed, len(all))
		}

		last := all[len(all)-1]
		if last.Nonce != 2 || last.Fee.Cmp(database.NewAmount(20)) != 0 {
			t.Fatalf("\t%s\tShould pick the replaced transaction last, got %s.", failed, last)
		}
		t.Logf("\t%s\tShould pick every transaction respecting the nonce.", success)

		mp.Delete(last)
		if mp.Count() != len(txs)-1 {
			t.Fatalf("\t%s\tShould be able to delete a transaction.", failed)
		}
		t.Logf("\t%s\tShould be able to delete a transaction.", success)
	}
}

func TestUnknownStrategy(t *testing.T) {
	t.Log("Given the need to reject an unknown select strategy.")
	{
		if _, err := mempool.NewWithStrategy("random"); err == nil {
			t.Fatalf("\t%s\tShould not construct a mempool with an unknown strategy.", failed)
		}
		t.Logf("\t%s\tShould not construct a mempool with an unknown strategy.", success)
	}
}
