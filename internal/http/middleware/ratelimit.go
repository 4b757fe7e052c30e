package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter throttles callers per source IP with a token bucket. The
// SMS webhook is the only internet-facing POST surface, and every
// accepted request there costs an outbound reply, so inbound floods must
// be cut off before they reach the provider client.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	refill   float64 // tokens per second
	burst    int
}

type visitor struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter allows refill requests per second with the given burst
// per source IP.
func NewRateLimiter(refill float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		refill:   refill,
		burst:    burst,
	}
	go rl.evictIdle()
	return rl
}

// Allow reports whether a request from ip fits its bucket, consuming one
// token when it does.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{tokens: float64(rl.burst), seen: now}
		rl.visitors[ip] = v
	}

	v.tokens += now.Sub(v.seen).Seconds() * rl.refill
	if v.tokens > float64(rl.burst) {
		v.tokens = float64(rl.burst)
	}
	v.seen = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// evictIdle drops buckets that have been quiet long enough to be full
// again, keeping the map bounded under address churn.
func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if v.seen.Before(cutoff) {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit wraps a handler and answers 429 once a caller exhausts its
// bucket.
func RateLimit(refill float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(refill, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// chi's RealIP middleware rewrites RemoteAddr from the
			// forwarding headers before this runs.
			ip := r.RemoteAddr
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				ip = xri
			}
			if !limiter.Allow(ip) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
