package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/shelfsync/shelfsync-server/internal/http/response"
	"github.com/shelfsync/shelfsync-server/internal/ratelimit"
)

// RateLimitMiddleware rejects API requests beyond the per-client rate with
// 429 Too Many Requests. It runs after middleware.RealIP, so RemoteAddr
// already names the client.
func RateLimitMiddleware(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Long-lived streams and probes are not throttled.
			if !strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == eventsPath {
				next.ServeHTTP(w, r)
				return
			}

			key := clientIP(r)

			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded",
					"ip", key,
					"path", r.URL.Path,
				)
				response.TooManyRequests(w, "Too many requests. Please try again later.", logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
