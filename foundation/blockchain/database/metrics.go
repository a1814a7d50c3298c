package database

import (
	"github.com/ixledger/node/foundation/metrics"
)

const subsystem = "wallets"

var (
	accountCount = metrics.NewGauge(
		"accounts",
		subsystem,
		"Number of accounts in the ledger",
		nil,
	)

	historyDepth = metrics.NewGauge(
		"history_depth",
		subsystem,
		"Number of committed blocks that can still be reverted",
		nil,
	)

	entriesApplied = metrics.NewCounter(
		"entries_applied_total",
		subsystem,
		"Journal entries applied to the ledger",
		[]string{"type"},
	)

	entriesFailed = metrics.NewCounter(
		"entries_failed_total",
		subsystem,
		"Journal entries rejected by the ledger",
		[]string{"type"},
	)

	checksumDuration = metrics.NewHistogram(
		"checksum_seconds",
		subsystem,
		"Time spent computing ledger checksums",
		[]string{"kind"},
	)
)
