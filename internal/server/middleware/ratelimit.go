package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// RateLimit allows each client `limit` requests per sliding `window`, keyed
// by client IP under "ratelimit:api:". Limiter errors are logged and the
// request passes. A nil limiter or non-positive limit disables it.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(1, int(window.Seconds())))
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), "ratelimit:api:"+client, limit, window)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					slog.String("client", client),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			if !allowed {
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
