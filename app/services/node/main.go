package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/ixledger/node/app/services/node/handlers"
	"github.com/ixledger/node/foundation/blockchain/database"
	"github.com/ixledger/node/foundation/blockchain/genesis"
	"github.com/ixledger/node/foundation/blockchain/journaldb"
	"github.com/ixledger/node/foundation/blockchain/state"
	"github.com/ixledger/node/foundation/blockchain/worker"
	"github.com/ixledger/node/foundation/events"
	"github.com/ixledger/node/foundation/logger"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
			CORSOrigins     []string      `conf:"default:*"`
		}
		State struct {
			BeneficiaryKey string `conf:"default:zblock/accounts/miner1.ecdsa"`
			GenesisPath    string `conf:"default:zblock/genesis.json"`
			DBPath         string `conf:"default:zblock/journal.db"`
			CacheSize      int    `conf:"default:16"`
			SelectStrategy string `conf:"default:tip"`
			BlockVersion   uint32
			HistoryDepth   int `conf:"default:10"`
			TransPerBlock  int `conf:"default:1000"`
		}
		Worker struct {
			MaintenanceInterval time.Duration `conf:"default:1m"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "ixledger journaled ledger node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	// Need to load the private key file for the configured beneficiary so the
	// account can get credited with the mining reward and fees.
	privateKey, err := crypto.LoadECDSA(cfg.State.BeneficiaryKey)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}

	gen, err := genesis.Load(cfg.State.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	// The journal store persists every block's journal transactions so the
	// ledger can be replayed at startup.
	store, err := journaldb.New(cfg.State.DBPath, journaldb.Options{
		CacheSize: cfg.State.CacheSize,
	})
	if err != nil {
		return fmt.Errorf("unable to open journal store: %w", err)
	}
	defer func() {
		log.Infow("shutdown", "status", "closing journal store", "path", cfg.State.DBPath)
		store.Close()
	}()

	// The blockchain packages accept a function of this signature to allow the
	// application to log. For now, these raw messages are sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value represents the blockchain node and manages the ledger,
	// the name registry and the journal store.
	state, err := state.New(state.Config{
		BeneficiaryID:  database.PublicKeyToAccountID(privateKey.PublicKey),
		Genesis:        gen,
		Store:          store,
		BlockVersion:   cfg.State.BlockVersion,
		HistoryDepth:   cfg.State.HistoryDepth,
		TransPerBlock:  cfg.State.TransPerBlock,
		SelectStrategy: cfg.State.SelectStrategy,
		EvHandler:      ev,
	})
	if err != nil {
		return err
	}
	defer state.Shutdown()

	latest := state.RetrieveLatestBlock()
	log.Infow("startup", "status", "ledger restored", "block", latest.Header.Number, "hash", latest.Hash())

	// The worker package implements the mining and maintenance workflows.
	// The worker will register itself with the state.
	worker.Run(state, worker.Config{
		MaintenanceInterval: cfg.Worker.MaintenanceInterval,
	}, ev)

	// =========================================================================
	// Start Debug Service

	// The debug mux serves pprof, expvar, the health checks and the
	// prometheus metrics. Not concerned with shutting this down with load
	// shedding.
	go func() {
		log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)
		if err := http.ListenAndServe(cfg.Web.DebugHost, handlers.DebugMux(build, log, state)); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start API Services

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	muxCfg := handlers.MuxConfig{
		Shutdown:    shutdown,
		Log:         log,
		State:       state,
		Evts:        evts,
		CORSOrigins: cfg.Web.CORSOrigins,
	}

	// The private api is listed first so it is shut down first and peers
	// stop proposing blocks before the public api stops taking transactions.
	servers := []struct {
		name   string
		server *http.Server
	}{
		{"private", newServer(cfg.Web.PrivateHost, handlers.PrivateMux(muxCfg), cfg.Web.ReadTimeout, cfg.Web.WriteTimeout, cfg.Web.IdleTimeout, log)},
		{"public", newServer(cfg.Web.PublicHost, handlers.PublicMux(muxCfg), cfg.Web.ReadTimeout, cfg.Web.WriteTimeout, cfg.Web.IdleTimeout, log)},
	}

	// Make a channel to listen for errors coming from the listeners. Use a
	// buffered channel so the goroutines can exit if we don't collect them.
	serverErrors := make(chan error, len(servers))

	for _, srv := range servers {
		go func() {
			log.Infow("startup", "status", srv.name+" api router started", "host", srv.server.Addr)
			if err := srv.server.ListenAndServe(); err != nil {
				serverErrors <- fmt.Errorf("%s api: %w", srv.name, err)
			}
		}()
	}

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		for _, srv := range servers {
			if err := shutdownServer(srv.server, cfg.Web.ShutdownTimeout); err != nil {
				return fmt.Errorf("could not stop %s service gracefully: %w", srv.name, err)
			}
			log.Infow("shutdown", "status", srv.name+" api stopped")
		}
	}

	return nil
}

// newServer constructs a server to service the requests against the mux.
func newServer(addr string, mux http.Handler, read, write, idle time.Duration, log *zap.SugaredLogger) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}
}

// shutdownServer asks the listener to shed load, giving outstanding
// requests a deadline for completion.
func shutdownServer(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		srv.Close()
		return err
	}

	return nil
}
