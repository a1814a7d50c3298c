package selector

import (
	"maps"
	"slices"
	"sort"

	"github.com/ixledger/node/foundation/blockchain/database"
)

// tipSelect returns transactions with the best fee while respecting the
// nonce for each account.
var tipSelect = func(m map[database.AccountID][]database.SignedTx, howMany int) []database.SignedTx {
	if howMany < 0 {
		howMany = 0
		for _, txs := range m {
			howMany += len(txs)
		}
	}

	// Sort the transactions per account by nonce.
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(byNonce(m[key]))
		}
	}

	// Pick the first transaction in the slice for each account. Each
	// iteration represents a new row of selections. Accounts are visited in
	// order so the rows don't depend on map iteration.
	accounts := slices.SortedFunc(maps.Keys(m), func(a, b database.AccountID) int { return a.Compare(b) })

	var rows [][]database.SignedTx
	for {
		var row []database.SignedTx
		for _, key := range accounts {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	// Sort each row by fee unless we will take all transactions from that
	// row anyway. Keep pulling transactions from each row until the amount
	// is fulfilled or there are no more transactions.
	final := []database.SignedTx{}
	for _, row := range rows {
		need := howMany - len(final)
		if len(row) > need {
			sort.Sort(byFee(row))
			final = append(final, row[:need]...)
			break
		}
		final = append(final, row...)
	}

	return final
}
