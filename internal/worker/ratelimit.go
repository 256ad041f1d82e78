package worker

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter is one client's token bucket.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerClientRateLimiter implements per-client rate limiting.
type PerClientRateLimiter struct {
	lastCleanup     time.Time
	clients         map[string]*clientLimiter
	rate            rate.Limit
	burst           int
	cleanupInterval time.Duration
	maxIdleTime     time.Duration
	requests        int64
	rejected        int64
	mu              sync.Mutex
}

// NewPerClientRateLimiter creates a new per-client rate limiter.
// rps is the sustained requests per second per client; burst the bucket size.
// A non-positive rps disables limiting.
func NewPerClientRateLimiter(rps float64, burst int) *PerClientRateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &PerClientRateLimiter{
		rate:            limit,
		burst:           burst,
		clients:         make(map[string]*clientLimiter),
		cleanupInterval: 5 * time.Minute,
		maxIdleTime:     10 * time.Minute,
		lastCleanup:     time.Now(),
	}
}

// Allow checks if a request from the given client should be allowed.
func (pcrl *PerClientRateLimiter) Allow(clientKey string) bool {
	now := time.Now()

	pcrl.mu.Lock()
	if now.Sub(pcrl.lastCleanup) > pcrl.cleanupInterval {
		pcrl.cleanupLocked(now)
	}
	cl, ok := pcrl.clients[clientKey]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(pcrl.rate, pcrl.burst)}
		pcrl.clients[clientKey] = cl
	}
	cl.lastSeen = now
	pcrl.requests++
	allowed := cl.limiter.AllowN(now, 1)
	if !allowed {
		pcrl.rejected++
	}
	pcrl.mu.Unlock()

	return allowed
}

// cleanupLocked removes idle clients. Must be called with lock held.
func (pcrl *PerClientRateLimiter) cleanupLocked(now time.Time) {
	for key, cl := range pcrl.clients {
		if now.Sub(cl.lastSeen) > pcrl.maxIdleTime {
			delete(pcrl.clients, key)
		}
	}
	pcrl.lastCleanup = now
}

// Stats returns aggregate statistics.
func (pcrl *PerClientRateLimiter) Stats() map[string]any {
	pcrl.mu.Lock()
	defer pcrl.mu.Unlock()

	return map[string]any{
		"rate":           float64(pcrl.rate),
		"burst":          pcrl.burst,
		"active_clients": len(pcrl.clients),
		"total_requests": pcrl.requests,
		"total_rejected": pcrl.rejected,
	}
}

// PerClientRateLimitMiddleware creates middleware that applies per-client rate limiting.
// Clients are keyed by RemoteAddr, which chi's RealIP middleware rewrites from proxy headers.
func PerClientRateLimitMiddleware(limiter *PerClientRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.RemoteAddr
			if host, _, err := net.SplitHostPort(clientKey); err == nil {
				clientKey = host
			}
			if !limiter.Allow(clientKey) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
