package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ixledger/node/business/sys/validate"
	"github.com/ixledger/node/business/web/errs"
	"github.com/ixledger/node/business/web/mid"
	"github.com/ixledger/node/foundation/web"
)

func newApp() *web.App {
	log := zap.NewNop().Sugar()
	return web.NewApp(
		make(chan os.Signal, 1),
		mid.Logger(log),
		mid.Errors(log),
		mid.Metrics(),
		mid.Panics(),
	)
}

func TestErrors(t *testing.T) {
	app := newApp()

	app.Handle(http.MethodGet, "v1", "/trusted", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errs.NewTrusted(errors.New("name not found"), http.StatusNotFound)
	})
	app.Handle(http.MethodGet, "v1", "/fields", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return validate.Var("account", "nope", "account")
	})
	app.Handle(http.MethodGet, "v1", "/panic", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("ledger on fire")
	})
	app.Handle(http.MethodGet, "v1", "/ok", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, map[string]string{"status": "ok"}, http.StatusOK)
	}, mid.Cors("*"))

	tt := []struct {
		path   string
		status int
		error  string
	}{
		{"/v1/trusted", http.StatusNotFound, "name not found"},
		{"/v1/fields", http.StatusBadRequest, "data validation error"},
		{"/v1/panic", http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)},
	}

	for _, tst := range tt {
		t.Run(tst.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tst.path, nil))

			require.Equal(t, tst.status, w.Code)

			var er errs.Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&er))
			assert.Equal(t, tst.error, er.Error)
		})
	}

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCors(t *testing.T) {
	app := web.NewApp(make(chan os.Signal, 1))

	ok := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
	app.Handle(http.MethodGet, "v1", "/status", ok, mid.Cors("https://ix.example"))

	r := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	r.Header.Set("Origin", "https://ix.example")
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)
	assert.Equal(t, "https://ix.example", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	r.Header.Set("Origin", "https://other.example")
	w = httptest.NewRecorder()
	app.ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
