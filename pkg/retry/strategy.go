package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/spacenexus/spacetoken-server/pkg/retry/backoff"
)

// Strategy decides whether another attempt follows a failed one. Strategies
// may block, which is how delays are introduced.
type Strategy func(attempts uint, err error) bool

// Limit allows at most maxAttempts attempts in total, including the first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only continues when err matches one of the targets, as
// determined by errors.Is.
func RetriableErrors(targets ...error) Strategy {
	return func(_ uint, err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// Context stops once ctx is done. Place it before any backoff so a cancelled
// caller returns without sleeping.
func Context(ctx context.Context) Strategy {
	return func(uint, error) bool {
		return ctx.Err() == nil
	}
}

// Backoff sleeps for the delay given by strategy, capped at maxBackoff, and
// always continues.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return BackoffWithJitter(strategy, maxBackoff, 0)
}

// BackoffWithJitter is Backoff with the capped delay spread uniformly by
// +/- jitter. A jitter of 0.1 turns a 100ms delay into 90ms to 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	capped := backoff.Capped(strategy, maxBackoff)
	return func(attempts uint, _ error) bool {
		sleeperImpl.Sleep(applyJitter(capped(attempts), jitter))
		return true
	}
}

func applyJitter(delay time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return delay
	}
	return time.Duration(float64(delay) * (1 + jitter*(2*rand.Float64()-1)))
}

type sleeper interface {
	Sleep(time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

var sleeperImpl sleeper = realSleeper{}
