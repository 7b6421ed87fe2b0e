package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ossfeed/coordinator/internal/handler/http/respond"
	"github.com/ossfeed/coordinator/pkg/ratelimit"
)

// WorkerRateLimiterConfig holds the worker/consumer-surface sliding-window
// tunables.
type WorkerRateLimiterConfig struct {
	Limit    int
	Window   time.Duration
	BlockFor time.Duration
}

// DefaultWorkerRateLimiterConfig returns the 60-req/60-second window with a
// 60-second block on breach.
func DefaultWorkerRateLimiterConfig() WorkerRateLimiterConfig {
	return WorkerRateLimiterConfig{Limit: 60, Window: 60 * time.Second, BlockFor: 60 * time.Second}
}

// WorkerRateLimiter enforces a sliding window keyed by app-key + client IP,
// with an explicit block period on breach: the sliding window algorithm
// alone only rejects the offending request, so a short-lived block map sits
// in front of it to hold the key rejected for the configured duration.
type WorkerRateLimiter struct {
	store     ratelimit.RateLimitStore
	algorithm ratelimit.RateLimitAlgorithm
	metrics   ratelimit.RateLimitMetrics
	extractor IPExtractor
	cfg       WorkerRateLimiterConfig

	mu           sync.Mutex
	blockedUntil map[string]time.Time
}

// NewWorkerRateLimiter constructs a WorkerRateLimiter with the given dependencies.
func NewWorkerRateLimiter(store ratelimit.RateLimitStore, algorithm ratelimit.RateLimitAlgorithm, metrics ratelimit.RateLimitMetrics, extractor IPExtractor, cfg WorkerRateLimiterConfig) *WorkerRateLimiter {
	return &WorkerRateLimiter{
		store:        store,
		algorithm:    algorithm,
		metrics:      metrics,
		extractor:    extractor,
		cfg:          cfg,
		blockedUntil: make(map[string]time.Time),
	}
}

// Middleware returns the rate-limiting handler wrapper.
func (l *WorkerRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, err := l.extractor.ExtractIP(r)
			if err != nil {
				ip = "unknown"
			}
			key := r.Header.Get("X-App-Key") + ":" + ip
			now := time.Now()

			if l.isBlocked(key, now) {
				l.deny(w, r)
				return
			}

			decision, err := l.algorithm.IsAllowed(r.Context(), key, l.store, l.cfg.Limit, l.cfg.Window)
			if err != nil {
				respond.SafeError(w, http.StatusInternalServerError, fmt.Errorf("rate limit check: %w", err))
				return
			}
			if !decision.Allowed {
				l.block(key, now)
				l.deny(w, r)
				return
			}
			if l.metrics != nil {
				l.metrics.RecordRequest("worker", r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *WorkerRateLimiter) isBlocked(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.blockedUntil[key]
	if !ok {
		return false
	}
	if now.After(until) {
		delete(l.blockedUntil, key)
		return false
	}
	return true
}

func (l *WorkerRateLimiter) block(key string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blockedUntil[key] = now.Add(l.cfg.BlockFor)
}

func (l *WorkerRateLimiter) deny(w http.ResponseWriter, r *http.Request) {
	if l.metrics != nil {
		l.metrics.RecordDenied("worker", r.URL.Path)
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.cfg.BlockFor.Seconds())))
	respond.SafeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded"))
}
