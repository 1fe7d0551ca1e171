package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fall/observability/metrics"
)

// RateLimit bounds one route group per client. A zero RequestsPerMinute
// leaves the group unlimited.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorTTL is how long an idle client keeps its bucket.
const visitorTTL = 5 * time.Minute

type RateLimiter struct {
	logger   *slog.Logger
	limits   map[string]RateLimit
	metrics  *metrics.GatewayMetrics
	mu       sync.Mutex
	visitors map[string]*rateEntry
	lastGC   time.Time
	clockNow func() time.Time
}

func NewRateLimiter(limits map[string]RateLimit, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		logger:   logger,
		limits:   limits,
		metrics:  metrics.Gateway(),
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
	}
}

func (r *RateLimiter) Middleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			limit, ok := r.limits[key]
			if !ok || limit.RequestsPerMinute <= 0 {
				next.ServeHTTP(w, req)
				return
			}
			identifier := clientID(req)
			if !r.obtainLimiter(key+"|"+identifier, limit).Allow() {
				r.metrics.IncThrottle(key)
				r.logger.Warn("rate limited", "group", key, "client", identifier, "path", req.URL.Path)
				w.Header().Set("Retry-After", "1")
				writeProblem(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (r *RateLimiter) obtainLimiter(id string, cfg RateLimit) *rate.Limiter {
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collect(now)
	if entry, ok := r.visitors[id]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), burst)
	r.visitors[id] = &rateEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// collect drops idle visitors at most once per TTL. Callers hold r.mu.
func (r *RateLimiter) collect(now time.Time) {
	if now.Sub(r.lastGC) < visitorTTL {
		return
	}
	r.lastGC = now
	for id, entry := range r.visitors {
		if now.Sub(entry.lastSeen) >= visitorTTL {
			delete(r.visitors, id)
		}
	}
}

func clientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		first = strings.TrimSpace(first)
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
		return first
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
