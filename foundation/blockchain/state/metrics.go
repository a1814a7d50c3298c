package state

import (
	"github.com/ixledger/node/foundation/metrics"
)

const subsystem = "chain"

var (
	blockHeight = metrics.NewGauge(
		"height",
		subsystem,
		"Number of the latest block",
		nil,
	)

	blocksProcessed = metrics.NewCounter(
		"blocks_processed_total",
		subsystem,
		"Blocks processed by result",
		[]string{"result"},
	)

	blocksReverted = metrics.NewCounter(
		"blocks_reverted_total",
		subsystem,
		"Blocks reverted during a reorganization",
		nil,
	)

	mempoolSize = metrics.NewGauge(
		"mempool",
		subsystem,
		"Number of transactions waiting to be mined",
		nil,
	)
)
