package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// allowed counts how many of n back-to-back requests for key get through.
func allowed(t *testing.T, l Limiter, key string, n int) int {
	var count int
	for i := 0; i < n; i++ {
		ok, err := l.Allow(key)
		require.NoError(t, err)
		if ok {
			count++
		}
	}
	return count
}

func TestNoLimiter(t *testing.T) {
	assert.Equal(t, 1000, allowed(t, NoLimiter{}, "", 1000))
}

func TestLocalRateLimiter_Burst(t *testing.T) {
	for _, tc := range []struct {
		limit    rate.Limit
		expected int
	}{
		{limit: 0.5, expected: 1},
		{limit: 1, expected: 1},
		{limit: 2, expected: 2},
		{limit: 2.5, expected: 3},
		{limit: rate.Inf, expected: 50},
	} {
		l := NewLocalRateLimiter(tc.limit)
		assert.Equal(t, tc.expected, allowed(t, l, "authority", 50), "limit=%v", tc.limit)
	}
}

func TestLocalRateLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(2))

	assert.Equal(t, 2, allowed(t, l, "first", 5))
	assert.Equal(t, 2, allowed(t, l, "second", 5))
	assert.Zero(t, allowed(t, l, "first", 1))
}

func TestLocalRateLimiter_EvictsIdleKeys(t *testing.T) {
	l := newLocalRateLimiter(rate.Limit(2), 2)

	allowed(t, l, "a", 1)
	allowed(t, l, "b", 1)

	l.evictIdle(time.Now())
	assert.Len(t, l.limiters, 2)

	l.evictIdle(time.Now().Add(time.Minute))
	assert.Empty(t, l.limiters)

	assert.Equal(t, 2, allowed(t, l, "a", 3))
}

func TestLocalRateLimiter_EvictsOnlyWhenFull(t *testing.T) {
	l := newLocalRateLimiter(rate.Limit(1), 1)

	allowed(t, l, "a", 1)
	allowed(t, l, "b", 1)

	// "a" was still draining when "b" arrived.
	assert.Len(t, l.limiters, 2)
}
