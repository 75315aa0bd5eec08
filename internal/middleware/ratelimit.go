// Package middleware provides HTTP middleware shared by the API surface.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleClientAge is how long an idle client's limiter survives before the
// sweeper drops it.
const staleClientAge = 10 * time.Minute

// RateLimiter enforces a per-client token bucket of rps sustained requests
// per second with the given burst. Exceeding the limit yields 429 with the
// API's standard error envelope.
func RateLimiter(rps float64, burst int) func(http.Handler) http.Handler {
	buckets := newClientBuckets(rps, burst)
	go buckets.sweep()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := buckets.get(clientIP(r))
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"code":    http.StatusTooManyRequests,
					"message": "rate limit exceeded",
				})
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}

type clientBuckets struct {
	mu      sync.Mutex
	rps     float64
	burst   int
	entries map[string]*bucketEntry
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientBuckets(rps float64, burst int) *clientBuckets {
	return &clientBuckets{
		rps:     rps,
		burst:   burst,
		entries: make(map[string]*bucketEntry),
	}
}

func (b *clientBuckets) get(ip string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[ip]
	if !ok {
		e = &bucketEntry{limiter: rate.NewLimiter(rate.Limit(b.rps), b.burst)}
		b.entries[ip] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

func (b *clientBuckets) sweep() {
	for {
		time.Sleep(5 * time.Minute)
		b.mu.Lock()
		for ip, e := range b.entries {
			if time.Since(e.lastSeen) > staleClientAge {
				delete(b.entries, ip)
			}
		}
		b.mu.Unlock()
	}
}

// clientIP strips the port from RemoteAddr. X-Forwarded-For is deliberately
// ignored so a spoofed header cannot dodge the limit.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
