// Package backoff computes the delay before retry attempt n, with n starting
// at 1.
package backoff

import (
	"math"
	"time"
)

type Strategy func(attempts uint) time.Duration

func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// Exponential yields baseDelay * base^(attempts-1), saturating at the
// largest representable duration.
//
// Exponential(2*time.Second, 3) = 2s, 6s, 18s, 54s, ...
func Exponential(baseDelay time.Duration, base float64) Strategy {
	return func(attempts uint) time.Duration {
		exponent := float64(attempts) - 1
		if exponent < 0 {
			exponent = 0
		}
		return saturate(float64(baseDelay) * math.Pow(base, exponent))
	}
}

// BinaryExponential doubles the delay on each attempt.
func BinaryExponential(baseDelay time.Duration) Strategy {
	return Exponential(baseDelay, 2)
}

// Capped never yields more than max.
func Capped(strategy Strategy, max time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if delay := strategy(attempts); delay < max {
			return delay
		}
		return max
	}
}

func saturate(d float64) time.Duration {
	if d >= math.MaxInt64 || math.IsNaN(d) {
		return math.MaxInt64
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}
