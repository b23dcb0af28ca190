package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/tools"
)

// Stage names, in pipeline order.
const (
	StageMessage    = "message"
	StageThinking   = "thinking"
	StageToolCall   = "tool_call"
	StageToolResult = "tool_result"
	StageTaskState  = "task_state"
	StageResponse   = "response"
	StageError      = "error"
)

// Engine is the signal-driven flow engine.
//
// Process runs a signal through the fixed handler table. A handler skipping passes the
// signal along, emitting restarts the table with a new signal, halting ends the run.
// The loop is bounded by a step budget and an optional deadline.
type Engine struct {
	provider      ports.Provider
	tools         *tools.Registry
	formatter     Formatter
	interceptor   tools.Interceptor
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	maxSteps      int
	timeout       time.Duration
	toolTimeout   time.Duration
	historyWindow int
	maxHistory    int
	maxThoughts   int
	genOpts       ports.GenerateOptions
	overrides     map[string]HandlerFunc
	stages        []Stage
}

// NewEngine creates an engine. Without options it has no provider, an empty tool
// registry and a budget of DefaultMaxSteps.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		tools:    tools.NewRegistry(),
		logger:   logging.NewNop(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stages = e.defaultStages()
	for i, st := range e.stages {
		if h, ok := e.overrides[st.Name]; ok {
			e.stages[i].Handle = h
		}
	}
	return e
}

func (e *Engine) defaultStages() []Stage {
	return []Stage{
		{Name: StageMessage, Types: []domain.SignalType{domain.SignalUserMessage, domain.SignalSystemMessage}, Source: domain.SourceLLMCall, Handle: e.handleMessage},
		{Name: StageThinking, Types: []domain.SignalType{domain.SignalThinking}, Source: domain.SourceLLMCall, Handle: e.handleThinking},
		{Name: StageToolCall, Types: []domain.SignalType{domain.SignalToolCall}, Source: domain.SourceToolCall, Handle: e.handleToolCall},
		{Name: StageToolResult, Types: []domain.SignalType{domain.SignalToolResult}, Source: domain.SourceToolResult, Handle: e.handleToolResult},
		{Name: StageTaskState, Types: []domain.SignalType{domain.SignalTaskState}, Source: domain.SourceEngine, Handle: e.handleTaskState},
		{Name: StageResponse, Types: []domain.SignalType{domain.SignalResponse}, Source: domain.SourceEngine, Handle: e.handleResponse},
		{Name: StageError, Types: []domain.SignalType{domain.SignalError}, Source: domain.SourceEngine, Handle: e.handleError},
	}
}

// Stages returns the pipeline table in order.
func (e *Engine) Stages() []Stage {
	return append([]Stage(nil), e.stages...)
}

// Tools returns the registry consulted by the tool_call handler.
func (e *Engine) Tools() *tools.Registry { return e.tools }

// MaxSteps returns the step budget.
func (e *Engine) MaxSteps() int { return e.maxSteps }

// Process runs sig through the pipeline against a copy of state and returns the final
// signal with the new state. The caller's state is never mutated.
//
// Domain failures never surface as errors: they become error signals and end in a
// response. The returned error is reserved for unusable input.
func (e *Engine) Process(ctx context.Context, sig domain.Signal, state *conversation.State) (*ports.Result, error) {
	if state == nil {
		return nil, domain.ErrNilState
	}
	if !sig.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidSignal, sig.Type)
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	current := sig
	st := state.Clone()

	// step is also the number of signals emitted so far; the last one allowed by the
	// budget still gets its pass.
	for step := 0; ; step++ {
		if step > e.maxSteps {
			return e.interrupt(ctx, current, st, step, domain.ErrStepBudgetExceeded, start), nil
		}
		if err := ctx.Err(); err != nil {
			return e.interrupt(ctx, current, st, step, err, start), nil
		}

		e.logger.Debug("processing signal", "conversation", st.ID, "signal", current.Type, "step", step)
		if e.hooks.OnSignal != nil {
			e.hooks.OnSignal(ctx, &domain.SignalEvent{
				EventBase: e.event(domain.EventSignal, st.ID),
				Signal:    current.Type,
				Step:      step,
			})
		}

		out := e.run(ctx, current, st)
		if out.State != nil {
			st = out.State
		}

		switch out.Directive {
		case domain.DirectiveHalt:
			return e.finish(ctx, out.Signal, st, step+1, start, nil), nil
		case domain.DirectiveEmit:
			current = out.Signal.WithMeta(domain.MetaStep, step+1)
		default:
			return e.finish(ctx, unhandled(current), st, step+1, start, nil), nil
		}
	}
}

// run applies the handler table to one signal.
func (e *Engine) run(ctx context.Context, sig domain.Signal, st *conversation.State) Outcome {
	for _, stage := range e.stages {
		if !stage.accepts(sig.Type) {
			continue
		}
		out := e.invoke(ctx, stage, sig, st)
		if out.Directive == domain.DirectiveSkip {
			if out.State != nil {
				st = out.State
			}
			continue
		}
		return out
	}
	return Skip(st)
}

// invoke calls one handler on a private copy of the state. A panic leaves the state
// untouched and turns into an error signal.
func (e *Engine) invoke(ctx context.Context, stage Stage, sig domain.Signal, st *conversation.State) (out Outcome) {
	work := st.Clone()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e.logger.Warn("handler panicked", "stage", stage.Name, "signal", sig.Type, "panic", r)
		msg := fmt.Sprintf("%s handler failed: %v", stage.Name, r)
		if sig.Type == domain.SignalError {
			// The error handler itself failed: answer without it.
			fallback := st.Clone()
			fallback.AddError(domain.KindExecution, msg)
			out = Halt(domain.NewResponse(apologyFallback).
				WithMeta(domain.MetaErrorKind, string(domain.KindExecution)), fallback)
			return
		}
		out = Emit(domain.NewError(domain.KindExecution, stage.Source, msg, map[string]any{"stage": stage.Name}), st)
	}()

	out = stage.Handle(ctx, sig, work)
	if out.State == nil {
		out.State = work
	}
	return out
}

// interrupt ends a run that ran out of budget. A deadline always becomes a timeout
// error. Past the step budget an in-flight error is kept. Either way it is still routed through the error and response handlers so the conversation
// ends in a response.
func (e *Engine) interrupt(ctx context.Context, current domain.Signal, st *conversation.State, steps int, cause error, start time.Time) *ports.Result {
	e.logger.Warn("run interrupted", "conversation", st.ID, "steps", steps, "err", cause)

	sig := current
	switch {
	case errors.Is(cause, context.DeadlineExceeded), errors.Is(cause, context.Canceled):
		// Whatever was in flight failed because the deadline passed.
		sig = domain.NewError(domain.KindTimeout, domain.SourceEngine,
			fmt.Sprintf("processing timed out: %v", cause),
			map[string]any{"steps": steps, "in_flight": string(current.Type)})
	case sig.Type != domain.SignalError:
		sig = domain.NewError(domain.KindTimeout, domain.SourceEngine,
			fmt.Sprintf("processing stopped after %d signals: %v", e.maxSteps, cause),
			map[string]any{"steps": steps})
	}

	drainCtx := context.WithoutCancel(ctx)
	for range 2 {
		out := e.run(drainCtx, sig, st)
		if out.State != nil {
			st = out.State
		}
		if out.Directive == domain.DirectiveHalt {
			return e.finish(ctx, out.Signal, st, steps, start, cause)
		}
		if out.Directive != domain.DirectiveEmit {
			break
		}
		sig = out.Signal
	}
	return e.finish(ctx, domain.NewResponse(apologyFallback).
		WithMeta(domain.MetaErrorKind, string(domain.KindTimeout)), st, steps, start, cause)
}

func (e *Engine) finish(ctx context.Context, final domain.Signal, st *conversation.State, steps int, start time.Time, cause error) *ports.Result {
	res := &ports.Result{
		Directive:   domain.DirectiveHalt,
		Signal:      final,
		State:       st,
		Steps:       steps,
		Interrupted: cause != nil,
		Cause:       cause,
	}
	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(ctx, &domain.CompleteEvent{
			EventBase:   e.event(domain.EventComplete, st.ID),
			Directive:   res.Directive,
			Final:       final.Type,
			Steps:       steps,
			Duration:    time.Since(start),
			Interrupted: res.Interrupted,
		})
	}
	return res
}

func (e *Engine) event(t domain.EventType, conversationID string) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, ConversationID: conversationID}
}

func unhandled(sig domain.Signal) domain.Signal {
	return domain.NewResponse(fmt.Sprintf("No handler produced a response for the %s signal.", sig.Type)).
		WithMeta(domain.MetaUnhandled, true)
}
