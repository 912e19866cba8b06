package api

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies a per-client token bucket keyed by tenant when known,
// else by remote IP. Tuned via RATE_RPS and RATE_BURST; zero RPS disables it.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     float64
	burst   int
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewRateLimiterFromEnv() *RateLimiter {
	rps := 0.0
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return &RateLimiter{clients: map[string]*clientLimiter{}, rps: rps, burst: burst}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{lim: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.clients[key] = c
	}
	c.seen = time.Now()
	// drop idle clients so the map stays bounded
	if len(rl.clients) > 10000 {
		cutoff := time.Now().Add(-10 * time.Minute)
		for k, v := range rl.clients {
			if v.seen.Before(cutoff) {
				delete(rl.clients, k)
			}
		}
	}
	return c.lim.Allow()
}

// Middleware enforces the limit on every request.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl.rps <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Tenant-Id")
		if key == "" {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			key = host
		}
		if !rl.allow(key) {
			writeProblem(w, http.StatusTooManyRequests, "Rate limit exceeded", "slow down", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
