package tools

import (
	"context"
	"fmt"
	"time"
)

// Result is the captured outcome of one execution.
type Result struct {
	Value     any
	Err       string
	StartedAt time.Time
	Duration  time.Duration
}

// Failed reports whether the tool returned an error or panicked.
func (r Result) Failed() bool { return r.Err != "" }

// Output is the structured value recorded for the call: the tool's value, or
// {"error": message} when it failed.
func (r Result) Output() any {
	if r.Failed() {
		return map[string]any{"error": r.Err}
	}
	return r.Value
}

// Execute runs t with args. Errors and panics are captured in the Result and never
// escape. A zero timeout leaves ctx untouched.
func Execute(ctx context.Context, t Tool, args map[string]any, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	value, err := call(ctx, t, args)
	res := Result{Value: value, StartedAt: start, Duration: time.Since(start)}
	if err != nil {
		res.Err = err.Error()
		res.Value = nil
	}
	return res
}

// call runs the tool on its own goroutine so a tool ignoring ctx cannot hold the
// pipeline past its deadline.
func call(ctx context.Context, t Tool, args map[string]any) (any, error) {
	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", t.Name, r)}
			}
		}()
		v, e := t.Execute(ctx, args)
		done <- outcome{value: v, err: e}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("tool %s: %w", t.Name, ctx.Err())
	}
}
