package router

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Shoowa/cotejo/metrics"
)

// Requests the mux could not route share this label.
const routeUnmatched = "unmatched"

// statusRecorder remembers the first status a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wrote {
		rec.status = code
		rec.wrote = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wrote = true
	return rec.ResponseWriter.Write(b)
}

// route is the pattern the mux matched, which keeps label cardinality bounded
// however many distinct paths clients try. The mux sets Pattern on r itself.
func route(r *http.Request) string {
	if r.Pattern == "" {
		return routeUnmatched
	}
	return r.Pattern
}

// instrument counts, times and logs every request after it is served.
func instrument(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HttpRequestsGauge.Inc()
		defer metrics.HttpRequestsGauge.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		name := route(r)
		metrics.HttpRequestCounter.WithLabelValues(strconv.Itoa(rec.status), name, r.Method).Inc()
		metrics.HttpRequestDuration.WithLabelValues(name).Observe(elapsed.Seconds())

		logger.Info(
			"Served",
			"method", r.Method,
			"route", name,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", elapsed.String(),
		)
	})
}
