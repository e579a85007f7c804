package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagebrief/models"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiters hands out one token bucket per identity. Buckets unused for an
// hour are evicted by Sweep. Identities come from KeyIdentity, IPIdentity
// and ChatIdentity so callers of different kinds never share a bucket.
type Limiters struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

// NewLimiters creates an empty set of buckets refilling at rps with burst.
func NewLimiters(rps float64, burst int) *Limiters {
	return &Limiters{
		rps:     rate.Limit(rps),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow reports whether identity may make a request now.
func (l *Limiters) Allow(identity string) bool {
	l.mu.Lock()
	entry, ok := l.entries[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[identity] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()
	return entry.limiter.Allow()
}

// Sweep evicts buckets not seen since cutoff and returns how many remain.
func (l *Limiters) Sweep(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, id)
		}
	}
	return len(l.entries)
}

// SweepEvery runs Sweep with a one-hour idle cutoff every interval until
// stop is closed, preventing unbounded memory growth.
func (l *Limiters) SweepEvery(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Sweep(time.Now().Add(-1 * time.Hour))
		}
	}
}

// RateLimit returns per-caller token-bucket rate limiting middleware
// powered by golang.org/x/time/rate. Authenticated callers are limited per
// key, anonymous ones per client IP.
func RateLimit(limiters *Limiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiters.Allow(callerIdentity(c)) {
			abortWith(c, http.StatusTooManyRequests, models.ErrCodeRateLimited,
				"rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
