package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/genesis"
	"github.com/ixledger/node/foundation/blockchain/journaldb"
	"github.com/ixledger/node/foundation/blockchain/state"
)

var genesisOnly bool

// checksumCmd represents the checksum command
var checksumCmd = &cobra.Command{
	Use:   "checksum",
	Short: "Replay the journal and print the full ledger and registry checksums",
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, err := genesis.Load(genesisPath)
		if err != nil {
			return err
		}

		var store *journaldb.Store
		switch {
		case genesisOnly:
			store, err = journaldb.NewMem()
		default:
			store, err = journaldb.New(dbPath, journaldb.Options{})
		}
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := readChecksums(store, gen)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checksumCmd)
	checksumCmd.Flags().BoolVar(&genesisOnly, "genesis-only", false, "Ignore the journal store and checksum the genesis ledger.")
}

type checksumReport struct {
	state.Checksums
	TotalSupply database.Amount `json:"total_supply"`
}

// readChecksums replays the store through the state, which verifies every
// block's checksums on the way to the latest one.
func readChecksums(store *journaldb.Store, gen genesis.Genesis) (checksumReport, error) {
	st, err := state.New(state.Config{
		Genesis: gen,
		Store:   store,
		EvHandler: func(v string, args ...any) {
			if log != nil {
				log.Debugf(v, args...)
			}
		},
	})
	if err != nil {
		return checksumReport{}, err
	}

	report := checksumReport{
		Checksums:   st.QueryChecksum(),
		TotalSupply: st.QueryTotalSupply(),
	}

	return report, nil
}
