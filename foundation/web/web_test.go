package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixledger/node/foundation/web"
)

func TestHandle(t *testing.T) {
	shutdown := make(chan os.Signal, 1)
	app := web.NewApp(shutdown)

	var traceID, block string
	var body struct {
		Name string `json:"name"`
	}

	app.Handle(http.MethodPost, "v1", "/checksum/:block", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		traceID = web.GetTraceID(ctx)
		block = web.Param(r, "block")
		if err := web.Decode(r, &body); err != nil {
			return err
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/checksum/12", strings.NewReader(`{"name":"ix"}`)))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "12", block)
	assert.Equal(t, "ix", body.Name)

	_, err := uuid.Parse(traceID)
	require.NoError(t, err)

	app.Handle(http.MethodGet, "", "/stop", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.NewShutdownError("integrity issue")
	})

	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stop", nil))
	select {
	case <-shutdown:
	default:
		t.Fatal("shutdown error should signal the app to shut down")
	}
}
