// Package ROUTER serves fixture data from one test session over HTTP, so
// scenario runners outside Go can read what the database holds.
package router

import (
	"net/http"

	"github.com/Shoowa/cotejo/config"
)

// NewRouter mounts the operational and fixture routes behind the
// instrumentation and the optional global rate limiter.
func NewRouter(cfg *config.HttpServer, b *Backbone) http.Handler {
	mux := http.NewServeMux()

	addOperationalRoutes(mux, b.Health, b.Logger)
	addFeaturesV1(mux, b)

	return optionalGlobalRateLimiter(cfg.GlobalRateLimiter, instrument(b.Logger, mux))
}
