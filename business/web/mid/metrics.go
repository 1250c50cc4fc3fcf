package mid

import (
	"context"
	"net/http"
	"runtime"
	"sync/atomic"

	"github.com/ardanlabs/frontier/foundation/blockchain/metrics"
	"github.com/ardanlabs/frontier/foundation/web"
)

// Set of collectors updated by the web requests.
var (
	requests   = metrics.NewCounter("requests_total", "web", "requests handled by method", []string{"method"})
	failures   = metrics.NewCounter("errors_total", "web", "requests that failed by method", []string{"method"})
	goroutines = metrics.NewGauge("goroutines", "web", "goroutines observed every 100 requests", []string{}).WithLabelValues()
	panics     = metrics.NewCounter("panics_total", "web", "handlers that panicked", []string{}).WithLabelValues()
)

// Metrics updates program counters.
func Metrics() web.Middleware {
	var total atomic.Int64

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Call the next handler.
			err := handler(ctx, w, r)

			// Increment the request counter.
			requests.WithLabelValues(r.Method).Inc()

			// Update the count for the number of active goroutines every 100 requests.
			if total.Add(1)%100 == 0 {
				goroutines.Set(float64(runtime.NumGoroutine()))
			}

			// Increment the errors counter if an error occurred on this request.
			if err != nil {
				failures.WithLabelValues(r.Method).Inc()
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
