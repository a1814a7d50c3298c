package cmd

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/ixledger/node/foundation/blockchain/database"
)

// genkeyCmd represents the genkey command
var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a new private key file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := getPrivateKeyPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("key file %s already exists", path)
		}

		if err := os.MkdirAll(keyPath, 0o755); err != nil {
			return err
		}

		privateKey, err := crypto.GenerateKey()
		if err != nil {
			return err
		}

		if err := crypto.SaveECDSA(path, privateKey); err != nil {
			return err
		}

		log.Infow("genkey", "path", path, "account", database.PublicKeyToAccountID(privateKey.PublicKey))
		fmt.Println(database.PublicKeyToAccountID(privateKey.PublicKey))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
}
