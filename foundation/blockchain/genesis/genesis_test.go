package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixledger/node/foundation/blockchain/genesis"
)

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	data := `{
	"date": "2024-01-02T15:04:05Z",
	"chain_id": 1,
	"block_version": 7,
	"difficulty": 2,
	"mining_reward": "50",
	"superblock_interval": 100,
	"balances": {"0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4": "1000.5"}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	g, err := genesis.Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(1), g.ChainID)
	assert.Equal(t, uint32(7), g.BlockVersion)
	assert.Equal(t, "50", g.MiningReward)
	assert.Equal(t, uint64(100), g.SuperblockInterval)
	assert.Equal(t, "1000.5", g.Balances["0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"])
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	data := `date: 2024-01-02T15:04:05Z
chain_id: 2
block_version: 3
difficulty: 1
mining_reward: "10"
superblock_interval: 5
balances:
  "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32": "7"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	g, err := genesis.Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(2), g.ChainID)
	assert.Equal(t, uint32(3), g.BlockVersion)
	assert.Equal(t, uint64(5), g.SuperblockInterval)
	assert.Equal(t, "7", g.Balances["0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"])
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	_, err := genesis.Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(dir, "zero.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chain_id": 1}`), 0600))
	_, err = genesis.Load(path)
	assert.Error(t, err)
}
