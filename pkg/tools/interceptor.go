package tools

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/parley/pkg/domain"
)

// Interceptor can inspect or block a tool call before it executes.
// It returns false with a reason to block the call. A non-nil error is a system failure.
type Interceptor func(ctx context.Context, call domain.ToolCall) (allowed bool, reason string, err error)

// Chain runs interceptors in order and stops at the first block or error.
func Chain(interceptors ...Interceptor) Interceptor {
	return func(ctx context.Context, call domain.ToolCall) (bool, string, error) {
		for _, ic := range interceptors {
			if ic == nil {
				continue
			}
			allowed, reason, err := ic(ctx, call)
			if err != nil {
				return false, "", err
			}
			if !allowed {
				return false, reason, nil
			}
		}
		return true, "", nil
	}
}

// AllowList blocks every tool not named. An empty list allows everything.
func AllowList(names ...string) Interceptor {
	return func(_ context.Context, call domain.ToolCall) (bool, string, error) {
		if len(names) == 0 || slices.Contains(names, call.Name) {
			return true, "", nil
		}
		return false, fmt.Sprintf("tool %s is not allowed by policy", call.Name), nil
	}
}

// AutoApprove allows everything.
func AutoApprove() Interceptor {
	return func(context.Context, domain.ToolCall) (bool, string, error) {
		return true, "", nil
	}
}
