package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const logPrefix = "ratelimit:middleware"

// RetryAfterSeconds is advertised to throttled clients.
const RetryAfterSeconds = 5

// Middleware rejects requests over the limit with 429. Requests are keyed by
// client IP; place it after a real-IP middleware when behind a proxy. A
// limiter error lets the request through.
func Middleware(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			allowed, err := l.Allow(r.Context(), key)
			if err != nil {
				log.Warn().Err(err).Msgf("%s - limiter unavailable, allowing %s", logPrefix, key)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				log.Debug().Msgf("%s - throttled %s %s", logPrefix, key, r.URL.Path)
				writeTooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = strings.TrimSuffix(strings.TrimPrefix(r.RemoteAddr, "["), "]")
	}
	return ip
}

func writeTooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "Rate limit exceeded",
		"details": "Too many requests, retry in " + strconv.Itoa(RetryAfterSeconds) + " seconds",
	})
}
