package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pbataille/shelf/internal/utils"
)

// RateLimitConfig tunes the per-client-IP token bucket guarding the
// credential endpoints.
type RateLimitConfig struct {
	Burst         int           // bucket capacity
	RefillPerMin  int           // tokens added per minute
	IdleTTL       time.Duration // drop buckets idle longer than this
	SweepInterval time.Duration // how often idle buckets are swept
	TrustProxy    bool          // resolve IP from proxy headers when true
}

type bucket struct {
	tokens   float64
	lastRef  time.Time
	lastSeen time.Time
}

type limiter struct {
	cfg       RateLimitConfig
	rate      float64 // tokens per second
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillPerMin < 1 {
		cfg.RefillPerMin = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &limiter{
		cfg:       cfg,
		rate:      float64(cfg.RefillPerMin) / 60.0,
		buckets:   make(map[string]*bucket, 256),
		lastSweep: time.Now(),
	}
}

func (l *limiter) allow(key string, now time.Time) (ok bool, retryAfterSec int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval {
		for ip, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.cfg.IdleTTL {
				delete(l.buckets, ip)
			}
		}
		l.lastSweep = now
	}

	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: float64(l.cfg.Burst), lastRef: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRef).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(l.cfg.Burst), b.tokens+elapsed*l.rate)
		b.lastRef = now
	}
	b.lastSeen = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true, 0
	}

	sec := int(math.Ceil((1.0 - b.tokens) / l.rate))
	if sec < 1 {
		sec = 1
	}
	return false, sec
}

// RateLimit returns a per-client-IP rate limiting middleware.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := utils.ClientIP(r, l.cfg.TrustProxy)

			ok, retry := l.allow(key, time.Now())
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
