package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"conductor/internal/gateway/handlers"
)

// RateLimiterConfig configures per-client limiting.
type RateLimiterConfig struct {
	RequestsPerMinute int
	Burst             int
	Enabled           bool
	// CleanupInterval is how often idle clients are forgotten.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns the default configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerMinute: 60,
		Burst:             10,
		Enabled:           true,
		CleanupInterval:   5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	config RateLimiterConfig
	limit  rate.Limit

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its cleanup loop when enabled.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	rl := &RateLimiter{
		config:  config,
		limit:   rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		clients: make(map[string]*clientLimiter),
		stopCh:  make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go rl.cleanup()
	}
	return rl
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, c := range rl.clients {
				if now.Sub(c.lastSeen) > rl.config.CleanupInterval*2 {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) limiter(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.config.Burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Allow reports whether ip may make a request now, the whole tokens left
// and how long until the next token.
func (rl *RateLimiter) Allow(ip string) (bool, int, time.Duration) {
	if !rl.config.Enabled {
		return true, rl.config.Burst, 0
	}

	now := time.Now()
	lim := rl.limiter(ip, now)
	allowed := lim.AllowN(now, 1)

	tokens := lim.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))

	var wait time.Duration
	if tokens < 1 && rl.limit > 0 {
		wait = time.Duration((1 - tokens) / float64(rl.limit) * float64(time.Second))
	}
	return allowed, remaining, wait
}

// RateLimit wraps next with the limiter.
func (rl *RateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, wait := rl.Allow(clientIP(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			handlers.SendError(w, http.StatusTooManyRequests, handlers.ErrCodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
