package selector_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/mempool/selector"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func sign(hexKey string, tx database.Tx) (database.SignedTx, error) {
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return database.SignedTx{}, err
	}

	tx.ChainID = 1
	tx.Kind = database.KindTransfer
	tx.From = database.PublicKeyToAccountID(pk.PublicKey)

	return tx.Sign(pk)
}

func TestTipSort(t *testing.T) {
	tran := func(nonce uint64, hexKey string, fee int64) database.SignedTx {
		to, err := database.ToAccountID("0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to parse the account: %s", failed, err)
		}

		tx, err := sign(hexKey, database.Tx{Nonce: nonce, To: to, Fee: database.Coins(fee)})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign transaction: %s", failed, err)
		}
		return tx
	}

	type test struct {
		name    string
		txs     []database.SignedTx
		howMany int
		best    []database.SignedTx
	}

	signPavel := "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	signBill := "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
	signEd := "aed31b6b5a341af8f27e66fb0b7633cf20fc27049e3eb7f6f623a4655b719ebb"

	pool := func() []database.SignedTx {
		return []database.SignedTx{
			tran(0, signPavel, 25),
			tran(2, signPavel, 50),
			tran(1, signPavel, 75),

			tran(0, signBill, 10),
			tran(1, signBill, 5),
			tran(2, signBill, 75),

			tran(1, signEd, 50),
			tran(0, signEd, 5),
			tran(2, signEd, 25),
		}
	}

	tt := []test{
		{
			name:    "one from second cycle",
			txs:     pool(),
			howMany: 4,
			best: []database.SignedTx{
				tran(0, signPavel, 25),
				tran(1, signPavel, 75),
				tran(0, signBill, 10),
				tran(0, signEd, 5),
			},
		},
		{
			name:    "whole two cycles",
			txs:     pool(),
			howMany: 6,
			best: []database.SignedTx{
				tran(0, signPavel, 25),
				tran(1, signPavel, 75),
				tran(0, signBill, 10),
				tran(1, signBill, 5),
				tran(0, signEd, 5),
				tran(1, signEd, 50),
			},
		},
		{
			name:    "take all",
			txs:     pool(),
			howMany: -1,
			best:    pool(),
		},
		{
			name:    "first two",
			txs:     pool(),
			howMany: 2,
			best: []database.SignedTx{
				tran(0, signPavel, 25),
				tran(0, signBill, 10),
			},
		},
	}

	t.Log("Given the need to pick best transactions from mempool.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
			{
				f := func(t *testing.T) {
					m := make(map[database.AccountID][]database.SignedTx)
					for _, tx := range tst.txs {
						m[tx.From] = append(m[tx.From], tx)
					}

					sort, err := selector.Retrieve(selector.StrategyTip)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get sort strategy function: %s", failed, testID, err)
					}

					txs := sort(m, tst.howMany)
					if len(txs) != len(tst.best) {
						t.Fatalf("\t%s\tTest %d:\tShould get back %d transactions, got %d.", failed, testID, len(tst.best), len(txs))
					}
					t.Logf("\t%s\tTest %d:\tShould get back %d transactions.", success, testID, len(tst.best))

					lastNonce := make(map[database.AccountID]uint64)
					for i, tx := range txs {
						found := false
						for _, exp := range tst.best {
							if exp.Nonce == tx.Nonce && exp.From == tx.From {
								found = true
								break
							}
						}

						if !found {
							t.Fatalf("\t%s\tTest %d:\tShould get back the right from/nonce: %s/%d", failed, testID, tx.From, tx.Nonce)
						}
						t.Logf("\t%s\tTest %d:\tShould get back the right from/nonce: %s/%d", success, testID, tx.From, tx.Nonce)

						if last, exists := lastNonce[tx.From]; exists && last > tx.Nonce {
							t.Fatalf("\t%s\tTest %d:\tShould keep nonce order for %s at %d.", failed, testID, tx.From, i)
						}
						lastNonce[tx.From] = tx.Nonce
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}
