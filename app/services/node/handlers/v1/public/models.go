package public

import (
	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/registry"
)

type accountList struct {
	LatestBlock string             `json:"latest_block"`
	Uncommitted int                `json:"uncommitted"`
	Accounts    []database.Account `json:"accounts"`
}

type nameList struct {
	LatestBlock string          `json:"latest_block"`
	Names       []registry.Name `json:"names"`
}

type tx struct {
	From       database.AccountID `json:"from"`
	Nonce      uint64             `json:"nonce"`
	Kind       database.TxKind    `json:"kind"`
	To         database.AccountID `json:"to"`
	Value      database.Amount    `json:"value"`
	Fee        database.Amount    `json:"fee"`
	Name       string             `json:"name,omitempty"`
	Signatures int                `json:"signatures"`
}

func toTx(signedTx database.SignedTx) tx {
	return tx{
		From:       signedTx.From,
		Nonce:      signedTx.Nonce,
		Kind:       signedTx.Kind,
		To:         signedTx.To,
		Value:      signedTx.Value,
		Fee:        signedTx.Fee,
		Name:       signedTx.Name,
		Signatures: len(signedTx.Sigs),
	}
}
