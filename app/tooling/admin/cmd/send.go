package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/genesis"
)

var (
	url   string
	to    string
	value string
	fee   string
	nonce uint64
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign a transfer and submit it to a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			return err
		}

		gen, err := genesis.Load(genesisPath)
		if err != nil {
			return err
		}

		toID, err := database.ToAccountID(to)
		if err != nil {
			return err
		}

		amount, err := database.ParseAmount(value)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}

		txFee, err := database.ParseAmount(fee)
		if err != nil {
			return fmt.Errorf("fee: %w", err)
		}

		signedTx, err := database.Tx{
			ChainID: gen.ChainID,
			Kind:    database.KindTransfer,
			From:    database.PublicKeyToAccountID(privateKey.PublicKey),
			Nonce:   nonce,
			Fee:     txFee,
			To:      toID,
			Value:   amount,
		}.Sign(privateKey)
		if err != nil {
			return err
		}

		body, err := submitTx(url, signedTx)
		if err != nil {
			return err
		}

		log.Infow("send", "tx", signedTx, "to", toID, "value", amount, "fee", txFee)
		fmt.Fprintln(cmd.OutOrStdout(), string(body))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the coins.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.Flags().StringVarP(&value, "value", "v", "0", "Coins to send.")
	sendCmd.Flags().StringVarP(&fee, "fee", "f", "1", "Fee paid to the block beneficiary.")
	sendCmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Unique id for the transaction.")
}

// submitTx posts the signed transaction to the node and returns its reply.
func submitTx(nodeURL string, signedTx database.SignedTx) ([]byte, error) {
	data, err := json.Marshal(signedTx)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", nodeURL), "application/json", bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submit %s: status %d: %s", signedTx, resp.StatusCode, body)
	}

	return body, nil
}
