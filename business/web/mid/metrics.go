package mid

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ixledger/node/foundation/metrics"
	"github.com/ixledger/node/foundation/web"
)

const subsystem = "http"

var (
	requestsTotal = metrics.NewCounter(
		"requests_total",
		subsystem,
		"Requests handled by method and status code",
		[]string{"method", "status"},
	)

	errorsTotal = metrics.NewCounter(
		"errors_total",
		subsystem,
		"Requests that returned an error",
		nil,
	)

	panicsTotal = metrics.NewCounter(
		"panics_total",
		subsystem,
		"Requests that panicked",
		nil,
	)

	requestDuration = metrics.NewHistogram(
		"request_seconds",
		subsystem,
		"Time spent handling a request",
		[]string{"method"},
	)
)

// Metrics updates program counters.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			start := time.Now()

			// Call the next handler.
			err := handler(ctx, w, r)

			metrics.ObserveSince(requestDuration.WithLabelValues(r.Method), start)

			if err != nil {
				errorsTotal.WithLabelValues().Inc()
			}

			if v, verr := web.GetValues(ctx); verr == nil {
				requestsTotal.WithLabelValues(r.Method, strconv.Itoa(v.StatusCode)).Inc()
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
