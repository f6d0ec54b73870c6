package memory

import (
	"context"
	"errors"
	"time"

	"github.com/zero-day-ai/semgate/semerr"
)

// DefaultTimeout bounds each collaborator call made through Bounded.
const DefaultTimeout = 2 * time.Second

// Bounded limits every call to an inner Collaborator to a fixed duration.
// A call that exceeds it returns a semerr timeout error.
type Bounded struct {
	inner   Collaborator
	timeout time.Duration
}

// NewBounded wraps inner. A non-positive timeout uses DefaultTimeout.
func NewBounded(inner Collaborator, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bounded{inner: inner, timeout: timeout}
}

// Store implements Collaborator.
func (b *Bounded) Store(ctx context.Context, key string, value any, ttlSeconds int) (bool, error) {
	type res struct {
		ok  bool
		err error
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan res, 1)
	go func() {
		ok, err := b.inner.Store(ctx, key, value, ttlSeconds)
		done <- res{ok, err}
	}()
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return false, semerr.Timeout("memory.Store", r.err)
		}
		return r.ok, r.err
	case <-ctx.Done():
		return false, semerr.Timeout("memory.Store", ctx.Err())
	}
}

// Retrieve implements Collaborator.
func (b *Bounded) Retrieve(ctx context.Context, key string) ([]byte, bool, error) {
	type res struct {
		data []byte
		ok   bool
		err  error
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan res, 1)
	go func() {
		data, ok, err := b.inner.Retrieve(ctx, key)
		done <- res{data, ok, err}
	}()
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, false, semerr.Timeout("memory.Retrieve", r.err)
		}
		return r.data, r.ok, r.err
	case <-ctx.Done():
		return nil, false, semerr.Timeout("memory.Retrieve", ctx.Err())
	}
}
