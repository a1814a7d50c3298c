package worker_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/genesis"
	"github.com/ixledger/node/foundation/blockchain/journaldb"
	"github.com/ixledger/node/foundation/blockchain/state"
	"github.com/ixledger/node/foundation/blockchain/worker"
)

const (
	keyMiner = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	keyPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) handle(v string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, fmt.Sprintf(v, args...))
}

func (r *recorder) has(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range r.events {
		if strings.HasPrefix(ev, prefix) {
			return true
		}
	}
	return false
}

func TestMiningAndMaintenance(t *testing.T) {
	miner, err := crypto.HexToECDSA(keyMiner)
	require.NoError(t, err)

	pavel, err := crypto.HexToECDSA(keyPavel)
	require.NoError(t, err)
	pavelID := database.PublicKeyToAccountID(pavel.PublicKey)

	store, err := journaldb.NewMem()
	require.NoError(t, err)
	defer store.Close()

	var rec recorder

	st, err := state.New(state.Config{
		BeneficiaryID: database.PublicKeyToAccountID(miner.PublicKey),
		Genesis: genesis.Genesis{
			ChainID:            1,
			Difficulty:         1,
			MiningReward:       "700",
			SuperblockInterval: 10,
			Balances:           map[string]string{pavelID.String(): "1000"},
		},
		Store:     store,
		EvHandler: rec.handle,
	})
	require.NoError(t, err)

	worker.Run(st, worker.Config{MaintenanceInterval: 10 * time.Millisecond}, rec.handle)
	defer st.Shutdown()

	tx, err := database.Tx{
		ChainID: 1,
		Kind:    database.KindTransfer,
		From:    pavelID,
		Nonce:   1,
		Fee:     database.Coins(1),
		To:      database.AccountID{9},
		Value:   database.Coins(10),
	}.Sign(pavel)
	require.NoError(t, err)

	require.NoError(t, st.SubmitTransaction(tx))

	assert.Eventually(t, func() bool {
		return st.QueryStatus().LatestBlockNumber == 1
	}, 10*time.Second, 10*time.Millisecond, "block should be mined")

	assert.Zero(t, st.QueryMempoolLength())
	assert.True(t, rec.has("viewer: block:"))

	assert.Eventually(t, func() bool {
		return rec.has("viewer: checksum:")
	}, 5*time.Second, 10*time.Millisecond, "checksums should be published")
}
