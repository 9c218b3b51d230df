// Package breaker races operations against a timeout. A timeout is recorded
// in a FlagStore, and calls for the same operation made within the cooldown
// after it are delayed before they start.
package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/planbuilder/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultCooldown = 30 * time.Second
	DefaultDelay    = 2 * time.Second
)

type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation [%s] timed out after %s", e.Op, e.After)
}

type Breaker struct {
	flags    FlagStore
	metrics  *metrics.Manager
	cooldown time.Duration
	delay    time.Duration
	now      func() time.Time
}

type Option func(*Breaker)

func WithCooldown(cooldown, delay time.Duration) Option {
	return func(b *Breaker) {
		b.cooldown = cooldown
		b.delay = delay
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

func New(flags FlagStore, metricsManager *metrics.Manager, opts ...Option) *Breaker {
	b := &Breaker{
		flags:    flags,
		metrics:  metricsManager,
		cooldown: DefaultCooldown,
		delay:    DefaultDelay,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes fn and returns its result, or a *TimeoutError if it does not
// finish within timeout. The abandoned fn has its context cancelled.
func Run[T any](
	ctx context.Context,
	b *Breaker,
	op string,
	timeout time.Duration,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if err := b.waitCooldown(ctx, op); err != nil {
		return zero, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	start := b.now()
	go func() {
		v, err := fn(runCtx)
		done <- result{v: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		b.metrics.HistogramOpDuration.WithLabelValues(op).Observe(b.now().Sub(start).Seconds())
		return r.v, r.err
	case <-timer.C:
		b.tripped(ctx, op)
		return zero, &TimeoutError{Op: op, After: timeout}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (b *Breaker) waitCooldown(ctx context.Context, op string) error {
	at, ok, err := b.flags.LastTimeout(ctx, op)
	if err != nil {
		log.Warnf("breaker: read timeout flag for [%s]: %s", op, err)
		return nil
	}
	if !ok || b.now().Sub(at) >= b.cooldown {
		return nil
	}

	log.Debugf("breaker: [%s] timed out %s ago, delaying by %s", op, b.now().Sub(at), b.delay)
	timer := time.NewTimer(b.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Breaker) tripped(ctx context.Context, op string) {
	log.Warnf("breaker: [%s] timed out, cooling down for %s", op, b.cooldown)
	b.metrics.CounterTimeouts.WithLabelValues(op).Inc()

	if err := b.flags.RecordTimeout(context.WithoutCancel(ctx), op, b.now()); err != nil {
		log.Errorf("breaker: record timeout flag for [%s]: %s", op, err)
	}
}
