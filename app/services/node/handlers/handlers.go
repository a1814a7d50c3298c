// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ixledger/node/app/services/node/handlers/debug/checkgrp"
	v1 "github.com/ixledger/node/app/services/node/handlers/v1"
	"github.com/ixledger/node/business/web/mid"
	"github.com/ixledger/node/foundation/blockchain/state"
	"github.com/ixledger/node/foundation/events"
	"github.com/ixledger/node/foundation/web"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown    chan os.Signal
	Log         *zap.SugaredLogger
	State       *state.State
	Evts        *events.Events
	CORSOrigins []string
}

// newApp constructs the web.App with the middleware every api shares. The
// order matters: Panics is innermost so a panic is reported as an error to
// Metrics and Errors.
func newApp(cfg MuxConfig, mw ...web.Middleware) *web.App {
	mw = append([]web.Middleware{
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
	}, mw...)
	mw = append(mw, mid.Panics())

	return web.NewApp(cfg.Shutdown, mw...)
}

// PublicMux constructs a http.Handler with the routes wallets and explorers
// use.
func PublicMux(cfg MuxConfig) http.Handler {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	app := newApp(cfg, mid.Cors(origins...))

	// Accept CORS 'OPTIONS' preflight requests.
	preflight := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
	app.Handle(http.MethodOptions, "", "/*", preflight)

	v1.PublicRoutes(app, v1.Config{
		Log:   cfg.Log,
		State: cfg.State,
		Evts:  cfg.Evts,
	})

	return app
}

// PrivateMux constructs a http.Handler with the routes other nodes use.
// It is never exposed to browsers so it carries no CORS support.
func PrivateMux(cfg MuxConfig) http.Handler {
	app := newApp(cfg)

	v1.PrivateRoutes(app, v1.Config{
		Log:   cfg.Log,
		State: cfg.State,
	})

	return app
}

// DebugMux registers the standard library debug routes, the health checks
// and the prometheus metrics on a new mux. Using the DefaultServerMux would
// be a security risk since a dependency could inject a handler into our
// service without us knowing it.
func DebugMux(build string, log *zap.SugaredLogger, st *state.State) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	cgh := checkgrp.Handlers{
		Build: build,
		Log:   log,
		State: st,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
