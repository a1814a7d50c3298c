// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ixledger/node/app/services/node/handlers/v1/private"
	"github.com/ixledger/node/app/services/node/handlers/v1/public"
	"github.com/ixledger/node/foundation/blockchain/state"
	"github.com/ixledger/node/foundation/events"
	"github.com/ixledger/node/foundation/web"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/accounts/list", pbl.Accounts)
	app.Handle(http.MethodGet, version, "/accounts/:account", pbl.Account)
	app.Handle(http.MethodGet, version, "/names/list", pbl.Names)
	app.Handle(http.MethodGet, version, "/names/:name", pbl.Name)
	app.Handle(http.MethodGet, version, "/checksum", pbl.Checksum)
	app.Handle(http.MethodGet, version, "/checksum/:block", pbl.BlockChecksum)
	app.Handle(http.MethodGet, version, "/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/tx/mempool", pbl.Mempool)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodGet, version, "/node/chunks/:size", prv.ExportChunks)
	app.Handle(http.MethodPost, version, "/node/chunks", prv.ImportChunks)
	app.Handle(http.MethodPost, version, "/node/block/propose", prv.ProposeBlock)
	app.Handle(http.MethodPost, version, "/node/revert/:block", prv.RevertBlock)
}
