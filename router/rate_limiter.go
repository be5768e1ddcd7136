package router

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/Shoowa/cotejo/config"
)

func CreateRateLimiter(cfg *config.RateLimiter) *rate.Limiter {
	avg := rate.Limit(cfg.Average)
	return rate.NewLimiter(avg, cfg.Burst)
}

func Limit(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// optionalGlobalRateLimiter wraps next only when an average rate is set.
func optionalGlobalRateLimiter(cfg config.RateLimiter, next http.Handler) http.Handler {
	if cfg.Average <= 0 {
		return next
	}
	return Limit(CreateRateLimiter(&cfg), next)
}
