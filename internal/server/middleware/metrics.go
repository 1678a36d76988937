package middleware

import (
	"net/http"
	"strconv"

	"github.com/alanyoungcy/mirrorarb/internal/metrics"
)

// Metrics counts requests by matched route pattern and status code. It sits
// innermost so r.Pattern is set by the mux when the handler returns, and it
// records the route for Logging.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recorderFor(w)
			next.ServeHTTP(rec, r)

			rec.route = r.Pattern
			if rec.route == "" {
				rec.route = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(rec.route, strconv.Itoa(rec.status)).Inc()
		})
	}
}
