package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ixledger/node/foundation/blockchain/state"
	"github.com/ixledger/node/foundation/metrics"
)

// Results of a mining operation.
const (
	resultMined     = "mined"
	resultEmpty     = "empty"
	resultCancelled = "cancelled"
	resultFailed    = "failed"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines a block from the best transactions in the
// mempool. A cancel request stops the proof of work and holds this G until
// the requester calls done, so a peer block is processed before the next
// mining operation starts.
func (w *Worker) runMiningOperation() {
	length := w.state.QueryMempoolLength()
	if length == 0 {
		w.evHandler("worker: runMiningOperation: MINING: no transactions to mine: Txs[%d]", length)
		return
	}

	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// Transactions dropped or left over from this block start another round.
	defer func() {
		if length := w.state.QueryMempoolLength(); length > 0 {
			w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Txs[%d]", length)
			w.SignalStartMining()
		}
	}()

	// A request left over from a finished operation is stale.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	requests := make(chan chan struct{}, 1)
	go func() {
		select {
		case wait := <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
			cancel()
			requests <- wait
		case <-ctx.Done():
			requests <- nil
		}
	}()

	result := w.mine(ctx)
	miningRuns.WithLabelValues(result).Inc()

	cancel()
	if wait := <-requests; wait != nil {
		w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
		<-wait
		w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
	}
}

// mine runs the proof of work and reports how it ended.
func (w *Worker) mine(ctx context.Context) string {
	start := time.Now()
	block, err := w.state.MineNewBlock(ctx)
	metrics.ObserveSince(miningDuration.WithLabelValues(), start)

	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", time.Since(start))

	switch {
	case errors.Is(err, state.ErrNoTransactions):
		w.evHandler("worker: runMiningOperation: MINING: WARNING: no valid transactions in mempool")
		return resultEmpty

	case err != nil && ctx.Err() != nil:
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
		return resultCancelled

	case err != nil:
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		return resultFailed
	}

	w.evHandler("worker: runMiningOperation: MINING: blk[%d]: hash[%s]: txs[%d]", block.Header.Number, block.Hash(), len(block.Values()))
	return resultMined
}
