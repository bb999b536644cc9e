// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package contract

import (
	"context"
	"errors"
)

// ErrNoResult is returned when an async function closes its channel
// without sending a result.
var ErrNoResult = errors.New("async call produced no result")

// Result is the value delivered by an asynchronous function.
type Result[R any] struct {
	Value R
	Err   error
}

// AsyncFunc is an asynchronous function wrapped with contract enforcement.
type AsyncFunc[A, R any] struct {
	e  *enforcer[A, R]
	fn func(context.Context, A) <-chan Result[R]
}

// WrapAsync returns fn enforced by s. The checks are the same as Wrap's;
// only the way the result arrives differs.
func WrapAsync[A, R any](reg *Registry, s Spec[A, R], fn func(context.Context, A) <-chan Result[R]) *AsyncFunc[A, R] {
	return &AsyncFunc[A, R]{e: newEnforcer(reg, s, fn), fn: fn}
}

// Call checks preconditions in the caller's goroutine before fn is
// started. Postconditions run after fn delivers its result, and the checked
// result is sent on the returned channel, which is then closed. A
// precondition failure is delivered on the channel without calling fn.
// Cancelling ctx while waiting yields ctx.Err().
func (f *AsyncFunc[A, R]) Call(ctx context.Context, args A) <-chan Result[R] {
	out := make(chan Result[R], 1)

	await, err := f.e.begin(args, func() func() (R, error) {
		ch := f.fn(ctx, args)
		return func() (R, error) {
			var zero R
			select {
			case res, ok := <-ch:
				if !ok {
					return zero, ErrNoResult
				}
				return res.Value, res.Err
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	})
	if err != nil {
		out <- Result[R]{Err: err}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		v, err := f.e.finish(args, await)
		out <- Result[R]{Value: v, Err: err}
	}()
	return out
}

// Await calls the function and blocks until its checked result arrives.
func (f *AsyncFunc[A, R]) Await(ctx context.Context, args A) (R, error) {
	res := <-f.Call(ctx, args)
	return res.Value, res.Err
}

// Info describes the wrapped function.
func (f *AsyncFunc[A, R]) Info() Info { return f.e.info }

// Calls returns the number of times the function has been called.
func (f *AsyncFunc[A, R]) Calls() int64 { return f.e.stats.calls.Load() }

// Violations returns the number of calls that broke the contract.
func (f *AsyncFunc[A, R]) Violations() int64 { return f.e.stats.violations.Load() }
