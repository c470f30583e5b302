package elements

import (
	"context"
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
)

// Future is a handle to an Elements value that settles exactly once.
type Future struct {
	done chan struct{}
	once sync.Once
	val  domain.Elements
	err  error
}

// Pending creates an unsettled Future and the function that settles it.
// Only the first call to settle has an effect.
func Pending() (*Future, func(domain.Elements, error)) {
	f := &Future{done: make(chan struct{})}
	return f, f.settle
}

// Go runs fn in a new goroutine and returns a Future for its result.
func Go(ctx context.Context, fn func(context.Context) (domain.Elements, error)) *Future {
	f, settle := Pending()
	go func() {
		settle(fn(ctx))
	}()
	return f
}

// Resolved returns a Future already settled with e.
func Resolved(e domain.Elements) *Future {
	f, settle := Pending()
	settle(e, nil)
	return f
}

// Rejected returns a Future already settled with err.
func Rejected(err error) *Future {
	f, settle := Pending()
	settle(nil, err)
	return f
}

func (f *Future) settle(e domain.Elements, err error) {
	f.once.Do(func() {
		f.val, f.err = e, err
		close(f.done)
	})
}

// Done is closed once the Future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the Future has settled, without blocking.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the Future settles or ctx is done.
// Every waiter observes the same outcome; a rejection is reproduced, never retried.
func (f *Future) Wait(ctx context.Context) (domain.Elements, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
