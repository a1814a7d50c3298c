package worker

import (
	"math/big"
	"time"

	"github.com/ixledger/node/foundation/metrics"
)

// maintenanceOperations recomputes the full checksums and the total supply
// on every tick so operators can compare nodes between superblocks.
func (w *Worker) maintenanceOperations() {
	w.evHandler("worker: maintenanceOperations: G started")
	defer w.evHandler("worker: maintenanceOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runMaintenance()
			}
		case <-w.shut:
			w.evHandler("worker: maintenanceOperations: received shut signal")
			return
		}
	}
}

// runMaintenance publishes the checksums and supply as metrics and as an
// event for the viewers.
func (w *Worker) runMaintenance() {
	start := time.Now()
	defer metrics.ObserveSince(maintenanceDuration.WithLabelValues(), start)

	sums := w.state.QueryChecksum()
	supply := w.state.QueryTotalSupply()

	supplyCoins, _ := new(big.Float).SetInt(supply.Units()).Float64()
	totalSupply.WithLabelValues().Set(supplyCoins / unitsPerCoin)

	w.evHandler(`viewer: checksum: {"block":%d,"wallets":%q,"names":%q,"total_supply":%q}`, sums.Block, sums.Wallets, sums.Names, supply)
}
