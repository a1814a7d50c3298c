// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date               time.Time         `json:"date" yaml:"date"`
	ChainID            uint16            `json:"chain_id" yaml:"chain_id"`                       // The chain id represents an unique id for this running instance.
	BlockVersion       uint32            `json:"block_version" yaml:"block_version"`             // Protocol version the chain starts at.
	Difficulty         uint16            `json:"difficulty" yaml:"difficulty"`                   // How difficult it needs to be to solve the work problem.
	MiningReward       string            `json:"mining_reward" yaml:"mining_reward"`             // Reward for mining a block, as a decimal string.
	SuperblockInterval uint64            `json:"superblock_interval" yaml:"superblock_interval"` // Blocks between full state checksums.
	Balances           map[string]string `json:"balances" yaml:"balances"`
}

// =============================================================================

// Load opens and consumes the genesis file. Files ending in .yaml or .yml are
// read as YAML, everything else as JSON.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &genesis)
	default:
		err = json.Unmarshal(content, &genesis)
	}
	if err != nil {
		return Genesis{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	if genesis.SuperblockInterval == 0 {
		return Genesis{}, fmt.Errorf("%s: superblock_interval must be greater than zero", path)
	}

	return genesis, nil
}
