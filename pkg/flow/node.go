package flow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NodeFunc is the domain function a node wraps: it reads the current state
// and returns only the channels it changes. It must not mutate s in place.
// Side effects inside the function must be idempotent-safe under retry.
type NodeFunc func(ctx context.Context, s State) (Update, error)

// Policy bounds a node's execution: timeout, retry budget, and criticality.
// It replaces hidden closure-captured config with an explicit value the
// graph definition carries per node.
type Policy struct {
	// Timeout cancels an in-flight attempt; a timed-out attempt counts as
	// a transient failure against the retry budget. Zero means no timeout.
	Timeout time.Duration

	// MaxRetries is the number of re-attempts after the first failure.
	// Only transient errors are retried; logic errors fail immediately.
	MaxRetries int

	// Backoff is the base delay between attempts, doubled per retry.
	Backoff time.Duration

	// Critical propagates the final error past the graph boundary and
	// aborts the whole invocation. Non-critical failures are recorded into
	// ErrorField and traversal continues.
	Critical bool

	// ErrorField is the append-reducer channel receiving
	// "<node> failed: <message>" entries for non-critical failures.
	ErrorField string
}

// DefaultErrorField is the conventional append channel for node failures.
const DefaultErrorField = "errors"

// ToolPolicy is the preset for collaborator-facing nodes: bounded retries,
// a default timeout, and uniform error capture so the graph keeps running.
func ToolPolicy() Policy {
	return Policy{
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		Backoff:    250 * time.Millisecond,
		ErrorField: DefaultErrorField,
	}
}

// CriticalPolicy is the stricter preset: no retries, hard failure
// propagation. Used for nodes whose failure invalidates the whole story
// workflow (e.g. missing required input).
func CriticalPolicy() Policy {
	return Policy{
		Timeout:  30 * time.Second,
		Critical: true,
	}
}

// NodeDef declares one executable node: a name unique within the graph,
// the wrapped function, and its policy.
type NodeDef struct {
	Name   string
	Fn     NodeFunc
	Policy Policy
}

// ToolNode is shorthand for a NodeDef with ToolPolicy.
func ToolNode(name string, fn NodeFunc) NodeDef {
	return NodeDef{Name: name, Fn: fn, Policy: ToolPolicy()}
}

// CriticalNode is shorthand for a NodeDef with CriticalPolicy.
func CriticalNode(name string, fn NodeFunc) NodeDef {
	return NodeDef{Name: name, Fn: fn, Policy: CriticalPolicy()}
}

// transientError marks an error as retryable.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient wraps an error so the retry policy treats it as
// I/O-shaped: the attempt failed for a reason that may clear on retry.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transient reports whether err is retryable: explicitly marked, a node
// timeout, or a context deadline from the attempt's own timeout.
func Transient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// attemptResult carries one attempt's outcome across the timeout boundary.
type attemptResult struct {
	update Update
	err    error
}

// run executes the node under its policy: per-attempt timeout, bounded
// backoff retries for transient errors, and the final error (nil update)
// when the budget is exhausted. The caller decides capture vs propagation
// based on Policy.Critical.
func (n NodeDef) run(ctx context.Context, s State) (Update, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		update, err := n.attempt(ctx, s)
		if err == nil {
			return update, nil
		}
		lastErr = err

		if attempt >= n.Policy.MaxRetries || !Transient(err) {
			return nil, lastErr
		}

		if n.Policy.Backoff > 0 {
			delay := n.Policy.Backoff << attempt
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

// attempt runs the function once under the policy timeout. The function
// runs in its own goroutine so a non-cooperative callee cannot stall the
// walk: on timeout the attempt is abandoned (its context is cancelled)
// and reported as an ErrTimeout failure.
func (n NodeDef) attempt(parent context.Context, s State) (Update, error) {
	ctx := parent
	cancel := context.CancelFunc(func() {})
	if n.Policy.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, n.Policy.Timeout)
	}
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		update, err := n.Fn(ctx, s)
		done <- attemptResult{update: update, err: err}
	}()

	select {
	case r := <-done:
		return r.update, r.err
	case <-ctx.Done():
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, n.Policy.Timeout)
	}
}
