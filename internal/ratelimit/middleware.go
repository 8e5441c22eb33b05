package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
)

// Middleware limits requests per client address and reports the limiter
// state in the standard RateLimit-* headers:
//
//	RateLimit-Policy:    100;w=900
//	RateLimit-Limit:     100
//	RateLimit-Remaining: 97
//	RateLimit-Reset:     27
//
// The legacy X-RateLimit-* headers are not sent. Refused requests get
// 429 Too Many Requests with a Retry-After header.
//
// The key is the host part of r.RemoteAddr, so mount chi's RealIP
// middleware first when running behind a proxy.
func Middleware(l *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	policy := fmt.Sprintf("%d;w=%d", l.Max(), int(l.Window().Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			d := l.Allow(key)

			h := w.Header()
			h.Set("RateLimit-Policy", policy)
			h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(d.Reset.Seconds())))

			if !d.Allowed {
				logger.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("path", r.URL.Path),
				)
				h.Set("Retry-After", strconv.Itoa(max(1, ceilSeconds(d.RetryIn.Seconds()))))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate_limited","message":"Too many requests, please try again later."}` + "\n"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey is the client's IP without the port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RealIP rewrites RemoteAddr to a bare IP.
		return r.RemoteAddr
	}
	return host
}

func ceilSeconds(s float64) int {
	return int(math.Ceil(s))
}
