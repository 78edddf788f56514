// Package rate throttles mutating requests per signing authority.
package rate

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultMaxTrackedKeys bounds the keys a local limiter tracks before it
// evicts idle ones.
const defaultMaxTrackedKeys = 10_000

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) (bool, error)
}

type localRateLimiter struct {
	limit   rate.Limit
	burst   int
	maxKeys int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocalRateLimiter returns an in-memory token bucket per key. The burst is
// the per-second rate rounded up, and never below one.
func NewLocalRateLimiter(limit rate.Limit) Limiter {
	return newLocalRateLimiter(limit, defaultMaxTrackedKeys)
}

func newLocalRateLimiter(limit rate.Limit, maxKeys int) *localRateLimiter {
	burst := 1
	if limit != rate.Inf && limit > 1 {
		burst = int(math.Ceil(float64(limit)))
	}

	return &localRateLimiter{
		limit:    limit,
		burst:    burst,
		maxKeys:  maxKeys,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *localRateLimiter) Allow(key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= l.maxKeys {
			l.evictIdle(time.Now())
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	return limiter.Allow(), nil
}

// evictIdle drops keys whose buckets have refilled, since a fresh limiter
// would behave identically.
func (l *localRateLimiter) evictIdle(now time.Time) {
	for key, limiter := range l.limiters {
		if limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, key)
		}
	}
}

// NoLimiter allows everything.
type NoLimiter struct{}

func (NoLimiter) Allow(string) (bool, error) {
	return true, nil
}
