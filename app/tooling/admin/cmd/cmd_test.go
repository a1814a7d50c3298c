package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/genesis"
	"github.com/ixledger/node/foundation/blockchain/journaldb"
	"github.com/ixledger/node/foundation/blockchain/state"
)

const (
	keyMiner = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	keyPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type chain struct {
	gen   genesis.Genesis
	store *journaldb.Store
	state *state.State
	block database.Block
}

// minedChain persists one block moving coins from pavel to the miner.
func minedChain(t *testing.T) chain {
	t.Helper()

	miner, err := crypto.HexToECDSA(keyMiner)
	require.NoError(t, err)
	pavel, err := crypto.HexToECDSA(keyPavel)
	require.NoError(t, err)

	minerID := database.PublicKeyToAccountID(miner.PublicKey)
	pavelID := database.PublicKeyToAccountID(pavel.PublicKey)

	gen := genesis.Genesis{
		ChainID:            1,
		BlockVersion:       database.CurrentBlockVersion,
		Difficulty:         1,
		MiningReward:       "700",
		SuperblockInterval: 3,
		Balances:           map[string]string{pavelID.String(): "1000"},
	}

	store, err := journaldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	st, err := state.New(state.Config{
		BeneficiaryID: minerID,
		Genesis:       gen,
		Store:         store,
	})
	require.NoError(t, err)

	tx, err := database.Tx{
		ChainID: gen.ChainID,
		Kind:    database.KindTransfer,
		From:    pavelID,
		Nonce:   1,
		Fee:     database.Coins(1),
		To:      minerID,
		Value:   database.Coins(10),
	}.Sign(pavel)
	require.NoError(t, err)

	require.NoError(t, st.SubmitTransaction(tx))
	block, err := st.MineNewBlock(context.Background())
	require.NoError(t, err)

	return chain{gen: gen, store: store, state: st, block: block}
}

// =============================================================================

func TestJournal(t *testing.T) {
	t.Log("Given the need to dump the persisted journal.")
	{
		c := minedChain(t)

		var buf bytes.Buffer
		err := writeJournal(&buf, c.store, c.gen)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to decode the journal : %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to decode the journal.", success)

		out := buf.String()
		assert.Contains(t, out, "Block 1  Hash: "+c.block.Hash())
		assert.Contains(t, out, "wallet balance")
		assert.NotContains(t, out, "Snapshot 1 ")
		t.Logf("\t%s\tShould list the block and its ledger entries.", success)

		snap := c.state.RetrieveSnapshot(0)

		synced, err := journaldb.NewMem()
		require.NoError(t, err)
		defer synced.Close()

		st, err := state.New(state.Config{Genesis: c.gen, Store: synced})
		require.NoError(t, err)
		require.NoError(t, st.ApplySnapshot(snap))

		buf.Reset()
		require.NoError(t, writeJournal(&buf, synced, c.gen))
		assert.Contains(t, buf.String(), "Snapshot 1  Hash: "+c.block.Hash())
		assert.NotContains(t, buf.String(), "Block 1")
		t.Logf("\t%s\tShould report the snapshot a node was synced from.", success)
	}
}

func TestChecksum(t *testing.T) {
	t.Log("Given the need to checksum the persisted journal.")
	{
		c := minedChain(t)

		report, err := readChecksums(c.store, c.gen)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to replay the journal : %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to replay the journal.", success)

		assert.Equal(t, c.state.QueryChecksum(), report.Checksums)
		assert.Zero(t, c.state.QueryTotalSupply().Cmp(report.TotalSupply))
		assert.Equal(t, uint64(1), report.Block)
		t.Logf("\t%s\tShould match the checksums of the live state.", success)

		empty, err := journaldb.NewMem()
		require.NoError(t, err)
		defer empty.Close()

		report, err = readChecksums(empty, c.gen)
		require.NoError(t, err)
		assert.Zero(t, report.Block)
		assert.NotEqual(t, c.state.QueryChecksum().Wallets, report.Wallets)
		assert.Zero(t, database.Coins(1000).Cmp(report.TotalSupply))
		t.Logf("\t%s\tShould checksum the genesis ledger of an empty store.", success)
	}
}

func TestSubmitTx(t *testing.T) {
	t.Log("Given the need to submit a transaction to a node.")
	{
		received := make(chan database.SignedTx, 2)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/tx/submit" || r.Method != http.MethodPost {
				http.NotFound(w, r)
				return
			}

			var tx database.SignedTx
			data, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(data, &tx); err != nil || tx.Nonce == 99 {
				http.Error(w, `{"error":"rejected"}`, http.StatusBadRequest)
				return
			}

			received <- tx
			w.Write([]byte(`{"status":"transactions added to mempool"}`))
		}))
		defer srv.Close()

		pavel, err := crypto.HexToECDSA(keyPavel)
		require.NoError(t, err)

		tx, err := database.Tx{
			ChainID: 1,
			Kind:    database.KindTransfer,
			From:    database.PublicKeyToAccountID(pavel.PublicKey),
			Nonce:   1,
			Fee:     database.Coins(1),
			Value:   database.Coins(10),
		}.Sign(pavel)
		require.NoError(t, err)

		body, err := submitTx(srv.URL, tx)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to submit the transaction : %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to submit the transaction.", success)

		assert.Contains(t, string(body), "mempool")
		assert.True(t, tx.Equals(<-received))

		tx.Nonce = 99
		_, err = submitTx(srv.URL, tx)
		assert.ErrorContains(t, err, "status 400")
		t.Logf("\t%s\tShould report a rejected transaction.", success)
	}
}
