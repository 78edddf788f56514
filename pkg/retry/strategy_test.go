package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacenexus/spacetoken-server/pkg/retry/backoff"
)

var errTest = errors.New("test")

// recordingSleeper replaces the real sleeper for the duration of a test.
type recordingSleeper struct {
	slept []time.Duration
}

func (r *recordingSleeper) Sleep(d time.Duration) {
	r.slept = append(r.slept, d)
}

func recordSleeps(t *testing.T) *recordingSleeper {
	previous := sleeperImpl
	t.Cleanup(func() { sleeperImpl = previous })

	r := &recordingSleeper{}
	sleeperImpl = r
	return r
}

func TestLimit(t *testing.T) {
	for _, tc := range []struct {
		max      uint
		attempts uint
		expected bool
	}{
		{max: 2, attempts: 1, expected: true},
		{max: 2, attempts: 2, expected: false},
		{max: 2, attempts: 3, expected: false},
		{max: 0, attempts: 1, expected: false},
	} {
		assert.Equal(t, tc.expected, Limit(tc.max)(tc.attempts, errTest), "max=%d attempts=%d", tc.max, tc.attempts)
	}

	attempts, err := Retry(func() error { return errTest }, Limit(2))
	assert.Equal(t, errTest, err)
	assert.EqualValues(t, 2, attempts)
}

func TestRetriableErrors(t *testing.T) {
	a, b := errors.New("retriable a"), errors.New("retriable b")
	strategy := RetriableErrors(a, b)

	assert.True(t, strategy(1, a))
	assert.True(t, strategy(1, b))
	assert.True(t, strategy(1, errors.Wrap(a, "wrapped")))
	assert.False(t, strategy(1, errTest))
	assert.False(t, RetriableErrors()(1, a))
}

func TestContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	strategy := Context(ctx)
	assert.True(t, strategy(1, errTest))

	cancel()
	assert.False(t, strategy(2, errTest))

	var calls int
	attempts, err := Retry(
		func() error {
			calls++
			return errTest
		},
		Context(ctx),
		Limit(5),
	)
	assert.Equal(t, errTest, err)
	assert.EqualValues(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	sleeps := recordSleeps(t)

	strategy := Backoff(backoff.BinaryExponential(400*time.Millisecond), time.Second)
	for attempts := uint(1); attempts <= 4; attempts++ {
		assert.True(t, strategy(attempts, errTest))
	}
	assert.Equal(t, []time.Duration{400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}, sleeps.slept)
}

func TestBackoff_OnlyBetweenAttempts(t *testing.T) {
	sleeps := recordSleeps(t)

	attempts, err := Retry(
		func() error { return errTest },
		Limit(3),
		Backoff(backoff.Constant(time.Millisecond), time.Millisecond),
	)
	assert.Equal(t, errTest, err)
	assert.EqualValues(t, 3, attempts)

	// Limit declines before the third sleep.
	assert.Len(t, sleeps.slept, 2)
}

func TestBackoffWithJitter(t *testing.T) {
	sleeps := recordSleeps(t)

	const delay = 100 * time.Millisecond
	strategy := BackoffWithJitter(backoff.Constant(delay), delay, 0.1)
	for i := 0; i < 5000; i++ {
		require.True(t, strategy(1, errTest))
	}

	var total time.Duration
	distinct := make(map[time.Duration]struct{})
	for _, d := range sleeps.slept {
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
		total += d
		distinct[d] = struct{}{}
	}

	mean := total / time.Duration(len(sleeps.slept))
	assert.InDelta(t, float64(delay), float64(mean), float64(time.Millisecond))
	assert.Greater(t, len(distinct), 1)
}

func TestApplyJitter(t *testing.T) {
	assert.Equal(t, time.Second, applyJitter(time.Second, 0))
	assert.Equal(t, time.Second, applyJitter(time.Second, -1))
}
