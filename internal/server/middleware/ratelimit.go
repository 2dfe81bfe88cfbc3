package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ProducerHeader lets a producer identify itself independently of its address,
// so several tabs behind one NAT are limited separately.
const ProducerHeader = "X-Producer-ID"

type producerLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// ProducerKey identifies the producer of a request: the X-Producer-ID header
// when present, otherwise the client IP (as set by chi's RealIP).
func ProducerKey(r *http.Request) string {
	if id := r.Header.Get(ProducerHeader); id != "" {
		return "id:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit applies per-producer rate limiting to ingest endpoints. Stale
// limiter entries are cleaned up every 10 minutes until ctx is done.
// A non-positive requestsPerSecond disables limiting.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*producerLimiter)
	)

	// Background cleanup of stale limiters.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				cutoff := time.Now().Add(-30 * time.Minute)
				for key, pl := range limiters {
					if pl.lastAccess.Before(cutoff) {
						delete(limiters, key)
					}
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		pl, ok := limiters[key]
		if !ok {
			pl = &producerLimiter{
				limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
				lastAccess: time.Now(),
			}
			limiters[key] = pl
		} else {
			pl.lastAccess = time.Now()
		}
		return pl.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiterFor(ProducerKey(r)).Allow() {
				w.Header().Set("Content-Type", "application/problem+json")
				http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
