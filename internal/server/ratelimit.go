package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"smartats/internal/config"
	"smartats/internal/errors"

	"golang.org/x/time/rate"
)

const defaultIdleWindow = 10 * time.Minute

// clientBucket is the token bucket of one submitter
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles analysis submissions per client IP or API key.
// Buckets idle for longer than the window are swept.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientBucket
	perSec   rate.Limit
	burst    int
	idle     time.Duration
	rejected int64

	stop     chan struct{}
	stopOnce sync.Once
	logger   *errors.Logger
}

// NewRateLimiter starts a limiter with its idle sweep running
func NewRateLimiter(cfg config.RateLimitConfig, logger *errors.Logger) *RateLimiter {
	idle := cfg.Window
	if idle <= 0 {
		idle = defaultIdleWindow
	}
	burst := max(cfg.BurstCapacity, 1)

	rl := &RateLimiter{
		clients: make(map[string]*clientBucket),
		perSec:  rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   burst,
		idle:    idle,
		stop:    make(chan struct{}),
		logger:  logger,
	}
	go rl.sweepLoop()
	return rl
}

// Allow takes one token from key's bucket
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	bucket, ok := rl.clients[key]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(rl.perSec, rl.burst)}
		rl.clients[key] = bucket
	}
	bucket.lastSeen = now

	if bucket.limiter.AllowN(now, 1) {
		return true
	}
	rl.rejected++
	return false
}

// Stats reports the limiter settings and counters for /stats
func (rl *RateLimiter) Stats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"enabled":           true,
		"tracked_clients":   len(rl.clients),
		"requests_per_min":  float64(rl.perSec) * 60.0,
		"burst_capacity":    rl.burst,
		"idle_window":       rl.idle.String(),
		"rejected_requests": rl.rejected,
	}
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.evictIdle(now)
		case <-rl.stop:
			return
		}
	}
}

// evictIdle drops buckets not used since now minus the idle window
func (rl *RateLimiter) evictIdle(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for key, bucket := range rl.clients {
		if now.Sub(bucket.lastSeen) > rl.idle {
			delete(rl.clients, key)
			evicted++
		}
	}

	if evicted > 0 {
		rl.logger.Debug("Evicted idle rate limit buckets",
			"evicted", evicted,
			"tracked_clients", len(rl.clients))
	}
	return evicted
}

// Close stops the sweep. It may be called more than once.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// rateLimitMiddleware answers 429 once a client spends its burst
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			kind, key := clientKey(r, *s.RateLimit)
			if key == "" || s.RateLimiter.Allow(key) {
				next(w, r)
				return
			}

			s.observability.GetMetrics().RecordRateLimitHit(r.Context(), kind)
			s.Logger.Info("Submission throttled",
				"limiter", kind,
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			writeErrorResponse(w, "Rate limit exceeded", "Too many submissions, try again shortly", http.StatusTooManyRequests)
		}
	}
}

// clientKey names the bucket a request draws from. An API key wins over the
// address when both kinds are enabled; an empty key means no limit applies.
func clientKey(r *http.Request, cfg config.RateLimitConfig) (kind, key string) {
	if cfg.ByAPIKey {
		if apiKey := requestAPIKey(r); apiKey != "" {
			return "api", "api:" + apiKey
		}
	}
	if cfg.ByIP {
		return "ip", "ip:" + getClientIP(r)
	}
	return "", ""
}

// getClientIP trusts X-Forwarded-For, then X-Real-IP, then the peer address
func getClientIP(r *http.Request) string {
	for ip := range strings.SplitSeq(r.Header.Get("X-Forwarded-For"), ",") {
		if ip = strings.TrimSpace(ip); net.ParseIP(ip) != nil {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
