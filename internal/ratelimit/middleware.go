package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// DefaultRetryAfterSeconds is the Retry-After value sent with a 429.
const DefaultRetryAfterSeconds = 1

// KeyFunc extracts the rate limit key from a request. An empty key bypasses
// the limiter.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by the remote address host, preferring the first
// X-Forwarded-For hop when present.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware returns HTTP middleware that enforces limits per key.
//
// Rejected requests get 429 Too Many Requests with Retry-After and
// X-RateLimit-Remaining: 0; allowed ones carry the approximate remaining
// tokens in X-RateLimit-Remaining. When onLimited is non-nil it writes the
// rejection body instead of the plain-text default.
func Middleware(limiter *RateLimiter, keyFn KeyFunc, onLimited http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			l := limiter.GetLimiter(key)
			if !l.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(DefaultRetryAfterSeconds))
				w.Header().Set("X-RateLimit-Remaining", "0")
				if onLimited != nil {
					onLimited(w, r)
					return
				}
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte("Too Many Requests"))
				return
			}

			remaining := int(l.Tokens())
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}
