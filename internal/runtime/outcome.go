package runtime

import (
	"context"
	"slices"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
)

// Outcome is what a handler returns: a directive, the signal it applies to, and the
// state to continue with.
type Outcome struct {
	Directive domain.Directive
	Signal    domain.Signal
	State     *conversation.State
}

// Skip passes the current signal on to the next handler.
func Skip(state *conversation.State) Outcome {
	return Outcome{Directive: domain.DirectiveSkip, State: state}
}

// Emit re-enters the pipeline from the first handler with sig.
func Emit(sig domain.Signal, state *conversation.State) Outcome {
	return Outcome{Directive: domain.DirectiveEmit, Signal: sig, State: state}
}

// Halt ends the run with sig as the final signal.
func Halt(sig domain.Signal, state *conversation.State) Outcome {
	return Outcome{Directive: domain.DirectiveHalt, Signal: sig, State: state}
}

// HandlerFunc processes one signal against the conversation.
// The state it receives is a private copy; it may be mutated and returned.
type HandlerFunc func(ctx context.Context, sig domain.Signal, state *conversation.State) Outcome

// Stage is one entry of the pipeline table.
type Stage struct {
	Name   string
	Types  []domain.SignalType
	Source domain.ErrorSource
	Handle HandlerFunc
}

func (s Stage) accepts(t domain.SignalType) bool {
	return slices.Contains(s.Types, t)
}
