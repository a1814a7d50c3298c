package worker

import (
	"math"

	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/metrics"
)

const subsystem = "worker"

var unitsPerCoin = math.Pow10(database.Decimals)

var (
	miningRuns = metrics.NewCounter(
		"mining_runs_total",
		subsystem,
		"Mining operations by result",
		[]string{"result"},
	)

	miningDuration = metrics.NewHistogramWithBuckets(
		"mining_seconds",
		subsystem,
		"Time spent mining a block",
		nil,
		[]float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	)

	maintenanceDuration = metrics.NewHistogram(
		"maintenance_seconds",
		subsystem,
		"Time spent computing the full checksums",
		nil,
	)

	totalSupply = metrics.NewGauge(
		"total_supply_coins",
		subsystem,
		"Sum of every balance in the ledger",
		nil,
	)
)
