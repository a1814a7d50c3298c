package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/genesis"
	"github.com/ixledger/node/foundation/blockchain/journaldb"
	"github.com/ixledger/node/foundation/blockchain/registry"
	"github.com/ixledger/node/foundation/blockchain/state"
)

// journalCmd represents the journal command
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Dump the persisted journal transactions of every block",
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, err := genesis.Load(genesisPath)
		if err != nil {
			return err
		}

		store, err := journaldb.New(dbPath, journaldb.Options{})
		if err != nil {
			return err
		}
		defer store.Close()

		return writeJournal(cmd.OutOrStdout(), store, gen)
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
}

// writeJournal decodes the persisted snapshot, if the node was synced from
// one, and the journal transactions of every block after it.
func writeJournal(w io.Writer, store *journaldb.Store, gen genesis.Genesis) error {
	db, err := database.New(database.Config{Genesis: gen})
	if err != nil {
		return err
	}
	names := registry.New(registry.Config{})

	num, data, found, err := store.LatestSnapshot()
	if err != nil {
		return err
	}

	if found {
		var snap state.Snapshot
		if err := snap.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("snapshot blk[%d]: %w", num, err)
		}

		fmt.Fprintf(w, "Snapshot %d  Hash: %s  Chunks: %d  Nonces: %d\n", num, snap.Block.Hash(), len(snap.Chunks), len(snap.Nonces))
		fmt.Fprintf(w, "  Wallets: 0x%x  Names: 0x%x\n", snap.Wallets, snap.Names)
	}

	return store.ForEach(journaldb.Header, func(num uint64, data []byte) error {
		var blockData database.BlockData
		if err := json.Unmarshal(data, &blockData); err != nil {
			return fmt.Errorf("blk[%d]: %w", num, err)
		}

		hdr := blockData.Header
		fmt.Fprintf(w, "Block %d  Hash: %s  Version: %d  Trans: %d\n", num, blockData.Hash, hdr.Version, len(blockData.Trans))
		fmt.Fprintf(w, "  Wallets: %s  Names: %s\n", hdr.WalletChecksum, hdr.NamesChecksum)

		rec, err := store.Read(num)
		if err != nil {
			return err
		}

		walletsTx, err := db.DecodeTransaction(rec.Wallets)
		if err != nil {
			return fmt.Errorf("blk[%d]: wallets: %w", num, err)
		}
		for _, e := range walletsTx.Entries() {
			fmt.Fprintf(w, "  wallet %-13s %s %+v\n", database.TypeName(e.Type()), e.Target(), e)
		}

		namesTx, err := names.DecodeTransaction(rec.Names)
		if err != nil {
			return fmt.Errorf("blk[%d]: names: %w", num, err)
		}
		for _, e := range namesTx.Entries() {
			fmt.Fprintf(w, "  name   %-13s %s %+v\n", registry.TypeName(e.Type()), e.Target(), e)
		}

		return nil
	})
}
