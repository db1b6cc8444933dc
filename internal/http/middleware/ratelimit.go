package middleware

import (
	"net/http"
	"sync"
	"time"
)

const (
	bucketSweepInterval = 5 * time.Minute
	bucketIdleCutoff    = 10 * time.Minute
)

// tokenBucket refills continuously at the limiter's rate up to the burst cap.
type tokenBucket struct {
	tokens  float64
	lastSee time.Time
}

// RateLimiter keeps one token bucket per client IP. Chat endpoints sit
// behind it so a single client can't monopolize the model.
type RateLimiter struct {
	mu      sync.Mutex
	perIP   map[string]*tokenBucket
	rate    float64
	burst   float64
	nowFunc func() time.Time
}

// NewRateLimiter allows rate requests per second with the given burst per IP.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		perIP:   make(map[string]*tokenBucket),
		rate:    rate,
		burst:   float64(burst),
		nowFunc: time.Now,
	}
	go rl.sweep()
	return rl
}

// Allow reports whether a request from ip fits the limit, consuming a token
// when it does.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	b := rl.perIP[ip]
	if b == nil {
		b = &tokenBucket{tokens: rl.burst, lastSee: now}
		rl.perIP[ip] = b
	} else {
		b.tokens = min(rl.burst, b.tokens+now.Sub(b.lastSee).Seconds()*rl.rate)
		b.lastSee = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle long enough to be fully refilled anyway.
func (rl *RateLimiter) sweep() {
	for range time.Tick(bucketSweepInterval) {
		rl.mu.Lock()
		cutoff := rl.nowFunc().Add(-bucketIdleCutoff)
		for ip, b := range rl.perIP {
			if b.lastSee.Before(cutoff) {
				delete(rl.perIP, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit rejects requests over the configured rate with 429.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the address resolved by chi's RealIP middleware.
func clientIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
