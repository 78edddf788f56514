// Package retry runs an action repeatedly under a chain of strategies that
// decide whether, and after how long, another attempt is made.
package retry

// Action is a unit of work that may be attempted more than once.
type Action func() error

// Retrier runs actions under a fixed set of strategies.
type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier []Strategy

// NewRetrier binds strategies for reuse. With no strategies the action is
// retried in a tight loop until it succeeds.
func NewRetrier(strategies ...Strategy) Retrier {
	return retrier(strategies)
}

func (r retrier) Retry(action Action) (uint, error) {
	return Retry(action, r...)
}

// Retry attempts action until it succeeds or a strategy declines to continue,
// returning the number of attempts made along with the last error.
//
// Strategies are consulted in order and evaluation stops at the first one
// that declines, so strategies that sleep should come last.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	for attempts := uint(1); ; attempts++ {
		err := action()
		if err == nil || !allowed(strategies, attempts, err) {
			return attempts, err
		}
	}
}

func allowed(strategies []Strategy, attempts uint, err error) bool {
	for _, s := range strategies {
		if !s(attempts, err) {
			return false
		}
	}
	return true
}
