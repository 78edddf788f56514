package backoff

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStrategies(t *testing.T) {
	for _, tc := range []struct {
		name     string
		strategy Strategy
		expected []time.Duration // attempts 1, 2, 3, ...
	}{
		{
			name:     "constant",
			strategy: Constant(100 * time.Millisecond),
			expected: []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond},
		},
		{
			name:     "exponential",
			strategy: Exponential(2*time.Second, 3),
			expected: []time.Duration{2 * time.Second, 6 * time.Second, 18 * time.Second, 54 * time.Second},
		},
		{
			name:     "binary exponential",
			strategy: BinaryExponential(250 * time.Millisecond),
			expected: []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second},
		},
		{
			name:     "capped",
			strategy: Capped(BinaryExponential(100*time.Millisecond), time.Second),
			expected: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for i, expected := range tc.expected {
				assert.Equal(t, expected, tc.strategy(uint(i+1)), "attempt %d", i+1)
			}
		})
	}
}

func TestExponential_Bounds(t *testing.T) {
	s := BinaryExponential(time.Second)
	assert.Equal(t, time.Duration(math.MaxInt64), s(200))
	assert.Equal(t, time.Second, s(0))

	assert.Equal(t, time.Duration(math.MaxInt64), Capped(s, math.MaxInt64)(500))
}
