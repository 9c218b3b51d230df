// Package retry runs fallible operations under a max attempts + backoff policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	MaxAttempts int
	// Backoff returns the wait before the given retry, starting at 1.
	Backoff func(attempt int) time.Duration
}

var DefaultPolicy = Policy{
	MaxAttempts: 3,
	Backoff:     Exponential(200*time.Millisecond, 2*time.Second),
}

// Exponential doubles the wait on every attempt, capped at max.
func Exponential(initial, max time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		wait := initial
		for i := 1; i < attempt; i++ {
			wait *= 2
			if wait >= max {
				return max
			}
		}
		return wait
	}
}

// Permanent wraps err so it is returned right away without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the attempts run
// out or ctx ends. notify, if set, is called before every wait.
func Do[T any](
	ctx context.Context,
	policy Policy,
	op func(ctx context.Context) (T, error),
	notify func(err error, wait time.Duration),
) (T, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&policyBackOff{backoff: policy.Backoff}, uint64(maxAttempts-1)),
		ctx,
	)

	return backoff.RetryNotifyWithData(func() (T, error) {
		return op(ctx)
	}, b, notify)
}

// policyBackOff adapts a Policy backoff func to backoff.BackOff.
type policyBackOff struct {
	backoff func(attempt int) time.Duration
	attempt int
}

func (p *policyBackOff) NextBackOff() time.Duration {
	p.attempt++
	if p.backoff == nil {
		return 0
	}
	return p.backoff(p.attempt)
}

func (p *policyBackOff) Reset() {
	p.attempt = 0
}
