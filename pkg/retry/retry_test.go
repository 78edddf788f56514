package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spacenexus/spacetoken-server/pkg/retry/backoff"
)

func TestRetry_StopsOnSuccess(t *testing.T) {
	var calls int
	attempts, err := Retry(func() error {
		calls++
		if calls < 3 {
			return errTest
		}
		return nil
	})
	assert.NoError(t, err)
	assert.EqualValues(t, 3, attempts)
}

func TestRetrier(t *testing.T) {
	retriable := errors.New("retriable")
	r := NewRetrier(Limit(5), RetriableErrors(retriable))

	for _, tc := range []struct {
		name     string
		err      error
		attempts uint
	}{
		{name: "success", err: nil, attempts: 1},
		{name: "non-retriable", err: errTest, attempts: 1},
		{name: "exhausted", err: retriable, attempts: 5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			attempts, err := r.Retry(func() error { return tc.err })
			assert.Equal(t, tc.err, err)
			assert.Equal(t, tc.attempts, attempts)
		})
	}
}

func TestRealSleeper(t *testing.T) {
	start := time.Now()
	attempts, err := Retry(func() error { return errTest },
		Limit(2),
		Backoff(backoff.Constant(50*time.Millisecond), time.Second),
	)
	elapsed := time.Since(start)

	assert.Equal(t, errTest, err)
	assert.EqualValues(t, 2, attempts)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}
