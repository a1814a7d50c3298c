// Package cmd contains the admin commands.
package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	log *zap.SugaredLogger

	keyName     string
	keyPath     string
	genesisPath string
	dbPath      string
)

const keyExtension = ".ecdsa"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Administrative tasks for the ledger node",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs the one
// selected on the command line.
func Execute(build string, logger *zap.SugaredLogger) error {
	log = logger
	rootCmd.Version = build

	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&keyName, "key", "k", "private", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&keyPath, "key-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&genesisPath, "genesis", "g", "zblock/genesis.json", "Path to the genesis file.")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "zblock/journal.db", "Path to the journal store.")
}

func getPrivateKeyPath() string {
	name := keyName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}
	return filepath.Join(keyPath, name)
}
