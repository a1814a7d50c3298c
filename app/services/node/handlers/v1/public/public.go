// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ixledger/node/business/sys/validate"
	"github.com/ixledger/node/business/web/errs"
	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/state"
	"github.com/ixledger/node/foundation/events"
	"github.com/ixledger/node/foundation/web"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitTransaction adds a signed transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	h.Log.Infow("submit tran", "traceid", v.TraceID, "from:nonce:kind", signedTx, "to", signedTx.To, "value", signedTx.Value, "fee", signedTx.Fee)
	if err := h.State.SubmitTransaction(signedTx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions in mining order.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.RetrieveMempool()

	trans := make([]tx, len(mempool))
	for i, tran := range mempool {
		trans[i] = toTx(tran)
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Accounts returns every account in the ledger.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	al := accountList{
		LatestBlock: h.State.RetrieveLatestBlock().Hash(),
		Uncommitted: h.State.QueryMempoolLength(),
		Accounts:    h.State.QueryAccounts(),
	}

	return web.Respond(ctx, w, al, http.StatusOK)
}

// Account returns a single account from the ledger.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	param := web.Param(r, "account")
	if err := validate.Var("account", param, "required,account"); err != nil {
		return err
	}

	id, err := database.ToAccountID(param)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	account, err := h.State.QueryAccount(id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("query account[%s]: %w", id, err)
	}

	return web.Respond(ctx, w, account, http.StatusOK)
}

// Names returns every registered name.
func (h Handlers) Names(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	nl := nameList{
		LatestBlock: h.State.RetrieveLatestBlock().Hash(),
		Names:       h.State.QueryNames(),
	}

	return web.Respond(ctx, w, nl, http.StatusOK)
}

// Name returns a single registered name.
func (h Handlers) Name(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	param := web.Param(r, "name")
	if err := validate.Var("name", param, "required,name"); err != nil {
		return err
	}

	name, err := h.State.QueryName(param)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, name, http.StatusOK)
}

// Checksum returns the full checksums of the ledger and the registry.
func (h Handlers) Checksum(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryChecksum(), http.StatusOK)
}

// BlockChecksum returns the delta checksums for a block still in the
// journal history.
func (h Handlers) BlockChecksum(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	num, err := strconv.ParseUint(web.Param(r, "block"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid block number: %w", err), http.StatusBadRequest)
	}

	sums, err := h.State.QueryBlockChecksum(num)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, sums, http.StatusOK)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryStatus(), http.StatusOK)
}
