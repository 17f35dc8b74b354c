package eval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeaug/internal/types"
)

// ErrTimedOut is returned when an evaluation outlives its context. The call keeps
// running in the background and may still touch the Context it was given, so the
// Context and the Evaluator must not be used again.
var ErrTimedOut = errors.New("evaluation timed out")

// Evaluator calls the function an augmenting code names.
type Evaluator interface {
	Evaluate(ctx context.Context, functionName string, augCode *types.AugmentingCode, ectx *Context) (any, error)
}

// Registry evaluates natively registered functions. Builtins are consulted first.
type Registry map[string]Func

// Evaluate implements Evaluator.
func (r Registry) Evaluate(ctx context.Context, functionName string, augCode *types.AugmentingCode, ectx *Context) (any, error) {
	fn, ok := Builtins[functionName]
	if !ok {
		fn, ok = r[functionName]
	}
	if !ok {
		return nil, fmt.Errorf("function %q is not defined", functionName)
	}
	return callWithContext(ctx, func() (any, error) {
		return fn(augCode, ectx)
	})
}

// WithTimeout bounds every evaluation of next by d. A zero d leaves next unbounded.
func WithTimeout(next Evaluator, d time.Duration) Evaluator {
	if d <= 0 {
		return next
	}
	return timeoutEvaluator{next: next, timeout: d}
}

type timeoutEvaluator struct {
	next    Evaluator
	timeout time.Duration
}

func (t timeoutEvaluator) Evaluate(ctx context.Context, functionName string, augCode *types.AugmentingCode, ectx *Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Evaluate(ctx, functionName, augCode, ectx)
}

// callWithContext runs call in its own goroutine and gives up when ctx is done.
// A call that outlives ctx keeps running until it returns on its own.
func callWithContext(ctx context.Context, call func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		result, err := call()
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrTimedOut, ctx.Err())
	}
}
