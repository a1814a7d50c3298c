// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ixledger/node/business/sys/validate"
	"github.com/ixledger/node/business/web/errs"
	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/registry"
	"github.com/ixledger/node/foundation/blockchain/state"
	"github.com/ixledger/node/foundation/web"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// ProposeBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	// Decode the JSON in the post call into a persisted block.
	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	// Convert the block data into a block. This action will create a merkle
	// tree for the set of transactions required for blockchain operations.
	block, err := database.ToBlock(blockData)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode block: %w", err), http.StatusBadRequest)
	}

	// Ask the state package to validate the proposed block. If the block
	// passes validation, it will be added to the ledger.
	if err := h.State.ProcessProposedBlock(block); err != nil {
		h.Log.Infow("propose block", "traceid", web.GetTraceID(ctx), "blk", block.Header.Number, "ERROR", err)

		if errors.Is(err, database.ErrChainForked) {
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return errs.NewTrusted(errors.New("block not accepted"), http.StatusNotAcceptable)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ExportChunks captures the state of the latest block with the ledger split
// into chunks so a new node can sync without replaying every block.
func (h Handlers) ExportChunks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	size, err := strconv.Atoi(web.Param(r, "size"))
	if err != nil || size <= 0 {
		return errs.NewTrusted(fmt.Errorf("invalid chunk size %q", web.Param(r, "size")), http.StatusBadRequest)
	}

	snap, err := toSnapshot(h.State.RetrieveSnapshot(size))
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}

	return web.Respond(ctx, w, snap, http.StatusOK)
}

// ImportChunks loads the snapshot exported by another node. This is only
// accepted before the node processes its first block.
func (h Handlers) ImportChunks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var in snapshot
	if err := web.Decode(r, &in); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(in); err != nil {
		return err
	}

	snap, err := toStateSnapshot(in)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode snapshot: %w", err), http.StatusBadRequest)
	}

	if err := h.State.ApplySnapshot(snap); err != nil {
		h.Log.Infow("import snapshot", "traceid", web.GetTraceID(ctx), "blk", snap.Block.Header.Number, "ERROR", err)

		if errors.Is(err, database.ErrChunkAfterSync) || errors.Is(err, registry.ErrSnapshotAfterSync) {
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	status := h.State.QueryStatus()

	resp := struct {
		Status   string `json:"status"`
		BlockNum uint64 `json:"block_num"`
		Accounts int    `json:"accounts"`
		Names    int    `json:"names"`
	}{
		Status:   "applied",
		BlockNum: snap.Block.Header.Number,
		Accounts: status.Accounts,
		Names:    status.Names,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RevertBlock undoes the latest block so a peer's fork can be adopted.
func (h Handlers) RevertBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	num, err := strconv.ParseUint(web.Param(r, "block"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid block number: %w", err), http.StatusBadRequest)
	}

	if err := h.State.RevertBlock(num); err != nil {
		switch {
		case errors.Is(err, state.ErrNotLatest), errors.Is(err, state.ErrHistoryExhausted):
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return fmt.Errorf("revert blk[%d]: %w", num, err)
	}

	latest := h.State.RetrieveLatestBlock()

	resp := struct {
		Status      string `json:"status"`
		LatestBlock uint64 `json:"latest_block"`
	}{
		Status:      "reverted",
		LatestBlock: latest.Header.Number,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
