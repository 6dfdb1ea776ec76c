// Package admission guards the message handler with a concurrency cap, a
// rate budget, and a per-request deadline. Each guard is a Handler that wraps
// another Handler; Chain assembles them in the order the daemon uses.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"simpleclipboard/internal/wire"
)

// ErrTimeout is returned when a request does not finish within its deadline.
// No ack is produced for such requests.
var ErrTimeout = errors.New("request deadline exceeded")

// Handler processes one decoded message.
type Handler interface {
	Handle(ctx context.Context, msg wire.Message) (wire.Ack, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg wire.Message) (wire.Ack, error)

func (f HandlerFunc) Handle(ctx context.Context, msg wire.Message) (wire.Ack, error) {
	return f(ctx, msg)
}

// Policy configures Chain. A zero field disables that guard.
type Policy struct {
	Concurrency int
	RateCount   int
	RateWindow  time.Duration
	Deadline    time.Duration
}

// Chain wraps h so that the deadline bounds the whole call, including time
// spent waiting for a concurrency slot or a rate token.
func Chain(h Handler, p Policy) Handler {
	if p.RateCount > 0 && p.RateWindow > 0 {
		h = WithRateLimit(h, p.RateCount, p.RateWindow)
	}
	if p.Concurrency > 0 {
		h = WithConcurrencyLimit(h, int64(p.Concurrency))
	}
	if p.Deadline > 0 {
		h = WithDeadline(h, p.Deadline)
	}
	return h
}

type concurrencyLimit struct {
	next Handler
	sem  *semaphore.Weighted
}

// WithConcurrencyLimit lets at most n calls run next at once. Further callers
// wait for a slot instead of failing.
func WithConcurrencyLimit(next Handler, n int64) Handler {
	return &concurrencyLimit{next: next, sem: semaphore.NewWeighted(n)}
}

func (c *concurrencyLimit) Handle(ctx context.Context, msg wire.Message) (wire.Ack, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return wire.Ack{}, waitError(ctx, "concurrency slot", err)
	}
	defer c.sem.Release(1)
	return c.next.Handle(ctx, msg)
}

type rateLimit struct {
	next    Handler
	limiter *rate.Limiter
}

// WithRateLimit admits at most count call starts per window. Excess callers
// wait for budget instead of failing.
func WithRateLimit(next Handler, count int, window time.Duration) Handler {
	every := rate.Every(window / time.Duration(count))
	return &rateLimit{next: next, limiter: rate.NewLimiter(every, count)}
}

func (r *rateLimit) Handle(ctx context.Context, msg wire.Message) (wire.Ack, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return wire.Ack{}, waitError(ctx, "rate budget", err)
	}
	return r.next.Handle(ctx, msg)
}

type deadline struct {
	next    Handler
	timeout time.Duration
}

// WithDeadline fails with ErrTimeout when next does not return within timeout.
// next keeps running in the background with a cancelled context; side
// effects it has already started are not rolled back.
func WithDeadline(next Handler, timeout time.Duration) Handler {
	return &deadline{next: next, timeout: timeout}
}

type result struct {
	ack wire.Ack
	err error
}

func (d *deadline) Handle(ctx context.Context, msg wire.Message) (wire.Ack, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		ack, err := d.next.Handle(ctx, msg)
		done <- result{ack: ack, err: err}
	}()

	select {
	case r := <-done:
		return r.ack, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return wire.Ack{}, fmt.Errorf("%w after %s", ErrTimeout, d.timeout)
		}
		return wire.Ack{}, ctx.Err()
	}
}

// waitError classifies a failed limiter wait. rate.Limiter.Wait also fails
// early when the wait would overrun the context deadline.
func waitError(ctx context.Context, what string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: waiting for %s: %w", ErrTimeout, what, err)
}
