package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"imagevault/pkg/utils"
)

const (
	DefaultRequests = 20 // Steady state rate (token refilling speed)
	BurstSize       = 50 // Max burst capacity for traffic spikes

	// VisitorTTL: Time before an inactive IP is removed from memory
	VisitorTTL      = 5 * time.Minute
	CleanupInterval = 3 * time.Minute
)

type RateLimitOptions struct {
	Enabled  bool
	Requests int
	Window   time.Duration
	Burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	opts     RateLimitOptions
	limit    rate.Limit
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Window <= 0 {
		opts.Window = time.Second
	}
	if opts.Requests <= 0 {
		opts.Requests = DefaultRequests
	}
	if opts.Burst <= 0 {
		opts.Burst = BurstSize
	}
	return &RateLimiter{
		opts:     opts,
		limit:    rate.Limit(float64(opts.Requests) / opts.Window.Seconds()),
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Run removes stale visitors until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > VisitorTTL {
			delete(l.visitors, ip)
		}
	}
}

func (l *RateLimiter) visitor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.opts.Burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = l.now()
	return v.limiter
}

// Middleware blocks excessive requests with a 429 JSON response.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.opts.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if !l.visitor(utils.GetRealIP(r)).Allow() {
			utils.WriteError(
				w,
				http.StatusTooManyRequests,
				utils.ErrRequestRateLimitExceeded,
				"Too many requests. Please wait a moment.",
			)
			return
		}

		next.ServeHTTP(w, r)
	})
}
