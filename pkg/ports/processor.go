package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
)

// Result is the outcome of one pipeline run.
type Result struct {
	Directive domain.Directive
	Signal    domain.Signal
	State     *conversation.State
	Steps     int

	// Interrupted is set when the step budget or the deadline cut the run short.
	// Cause then holds domain.ErrStepBudgetExceeded or the context error.
	Interrupted bool
	Cause       error
}

// Failed reports whether the run ended in a handled error.
func (r *Result) Failed() bool {
	if r == nil {
		return false
	}
	_, ok := r.Signal.Meta[domain.MetaErrorKind]
	return ok || r.Interrupted
}

// Processor runs a signal through the flow engine against a conversation.
type Processor interface {
	Process(ctx context.Context, sig domain.Signal, state *conversation.State) (*Result, error)
}
