package parley

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/tools"
	"github.com/aretw0/parley/pkg/tools/builtin"
)

// Engine is the high-level entry point for the parley library.
// It wraps the internal flow engine and provides a simplified API for consumers.
type Engine struct {
	runtime     *runtime.Engine
	registry    *tools.Registry
	builtins    bool
	extra       []tools.Tool
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.EngineOption
}

// Formatter rewrites final response content before it is returned.
type Formatter = runtime.Formatter

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithProvider sets the LLM provider.
func WithProvider(p ports.Provider) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithProvider(p))
	}
}

// WithRegistry uses an existing tool registry. Nil is ignored.
func WithRegistry(r *tools.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithTools registers tools on the engine's registry once all options are applied,
// so it composes with WithRegistry in any order. Registering a name twice panics.
func WithTools(ts ...tools.Tool) Option {
	return func(e *Engine) {
		e.extra = append(e.extra, ts...)
	}
}

// WithBuiltinTools registers the calculator, clock and echo tools.
func WithBuiltinTools() Option {
	return func(e *Engine) {
		e.builtins = true
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithFormatter sets the formatter applied to final responses.
func WithFormatter(f Formatter) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithFormatter(f))
	}
}

// WithInterceptor sets the policy consulted before every tool execution.
func WithInterceptor(ic tools.Interceptor) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithInterceptor(ic))
	}
}

// WithMaxSteps bounds the number of signals a single Process call may emit.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// WithTimeout bounds the wall time of a single Process call.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithTimeout(d))
	}
}

// WithToolTimeout bounds every tool execution.
func WithToolTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithToolTimeout(d))
	}
}

// WithHistoryWindow limits how many trailing history entries reach the provider.
func WithHistoryWindow(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithHistoryWindow(n))
	}
}

// WithMaxHistory trims the transcript after every response.
func WithMaxHistory(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxHistory(n))
	}
}

// WithMaxThoughts prunes scratch thoughts after every response.
func WithMaxThoughts(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxThoughts(n))
	}
}

// WithGenerateOptions sets the options passed to every provider call.
func WithGenerateOptions(o ports.GenerateOptions) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithGenerateOptions(o))
	}
}

// New initializes a new Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{
		registry: tools.NewRegistry(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	eng.registry.MustRegister(eng.extra...)
	if eng.builtins {
		for _, t := range builtin.All() {
			if _, err := eng.registry.Lookup(t.Name); err == nil {
				continue
			}
			eng.registry.MustRegister(t)
		}
	}

	rtOpts := append([]runtime.EngineOption{
		runtime.WithTools(eng.registry),
		runtime.WithLogger(eng.logger),
		runtime.WithHooks(eng.hooks),
	}, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(rtOpts...)
	return eng
}

// Process runs sig through the pipeline against a copy of state.
func (e *Engine) Process(ctx context.Context, sig domain.Signal, state *conversation.State) (*ports.Result, error) {
	return e.runtime.Process(ctx, sig, state)
}

// Send processes a user message.
func (e *Engine) Send(ctx context.Context, state *conversation.State, text string) (*ports.Result, error) {
	return e.runtime.Process(ctx, domain.NewUserMessage(text), state)
}

// Registry returns the tool registry used by the engine.
func (e *Engine) Registry() *tools.Registry {
	return e.registry
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

var _ ports.Processor = (*Engine)(nil)
