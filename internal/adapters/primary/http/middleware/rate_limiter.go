package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lorrc/helpdesk-backend/internal/infrastructure/metrics"
)

// RateLimiterConfig sizes a token bucket per caller key.
type RateLimiterConfig struct {
	// Name labels rejections in the rate_limited_requests_total metric.
	Name              string
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration
	// TTL evicts buckets idle for longer.
	TTL time.Duration
}

// RateLimiter keeps one bucket per key (client IP or user id) and evicts
// idle buckets in the background until Stop is called.
type RateLimiter struct {
	name    string
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
	stop    sync.Once
}

type bucket struct {
	*rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	name := cfg.Name
	if name == "" {
		name = "general"
	}
	rl := &RateLimiter{
		name:    name,
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.BurstSize,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go rl.evictLoop(cfg.CleanupInterval, cfg.TTL)
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stop.Do(func() { close(rl.done) })
}

// Middleware limits by client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return rl.guard(next, getClientIP)
}

// PerIdentity limits authenticated callers by user id and anonymous ones by
// IP. Mount it after JWTMiddleware.
func (rl *RateLimiter) PerIdentity(next http.Handler) http.Handler {
	return rl.guard(next, func(r *http.Request) string {
		if identity := GetIdentity(r.Context()); identity != nil {
			return "user:" + identity.UserID.String()
		}
		return getClientIP(r)
	})
}

func (rl *RateLimiter) guard(next http.Handler, key func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait, ok := rl.take(key(r), time.Now()); !ok {
			metrics.RateLimited.WithLabelValues(rl.name).Inc()
			writeRateLimited(w, wait)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take spends one token for key. When the bucket is empty it reports how
// long until the next token.
func (rl *RateLimiter) take(key string, now time.Time) (time.Duration, bool) {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	if b.AllowN(now, 1) {
		return 0, true
	}
	if rl.limit <= 0 {
		return time.Second, false
	}
	return time.Duration(float64(time.Second) / float64(rl.limit)), false
}

func (rl *RateLimiter) evictLoop(interval, ttl time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.Sub(b.lastSeen) > ttl {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func writeRateLimited(w http.ResponseWriter, wait time.Duration) {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Too many requests. Please try again later.","code":"RATE_LIMITED"}`))
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the socket peer.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return stripPort(strings.TrimSpace(first))
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
