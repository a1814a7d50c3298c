package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/ixledger/node/foundation/blockchain/database"
)

// addressCmd represents the address command
var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the account id for the private key",
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			return err
		}

		fmt.Println(database.PublicKeyToAccountID(privateKey.PublicKey))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}
