package middleware

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/taskbox/taskbox/internal/config"
)

type limitProvider interface {
	AuthLimit(route string) config.RateLimit
}

type limiterEntry struct {
	limiter *rate.Limiter
	limit   config.RateLimit
}

// IPLimiter rate limits requests per client IP, with a separate budget per
// route. Limits come from the runtime configuration and are re-read on every
// request so that configuration changes apply without a restart.
type IPLimiter struct {
	cfg      limitProvider
	limiters map[string]*limiterEntry
	mu       sync.Mutex
}

// NewIPLimiter creates an IPLimiter backed by the given limit provider.
func NewIPLimiter(cfg limitProvider) *IPLimiter {
	return &IPLimiter{
		cfg:      cfg,
		limiters: make(map[string]*limiterEntry),
	}
}

func (l *IPLimiter) getLimiter(route, ip string) *rate.Limiter {
	limit := l.cfg.AuthLimit(route)

	l.mu.Lock()
	defer l.mu.Unlock()

	key := route + "|" + ip
	entry, exists := l.limiters[key]
	if !exists || entry.limit != limit {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(limit.Requests)/float64(limit.PerSeconds)), limit.Requests),
			limit:   limit,
		}
		l.limiters[key] = entry
	}
	return entry.limiter
}

// Limit wraps next with the rate limit configured for the named route.
func (l *IPLimiter) Limit(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Unable to determine IP")
			return
		}
		if !l.getLimiter(route, ip).Allow() {
			writeDetail(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}
