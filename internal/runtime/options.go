package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/tools"
)

// Formatter rewrites final response content, e.g. to render markdown.
type Formatter func(content string) (string, error)

// DefaultMaxSteps bounds the number of signals one run may emit.
const DefaultMaxSteps = 32

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithProvider sets the LLM provider queried by the message, thinking and
// tool_result handlers.
func WithProvider(p ports.Provider) EngineOption {
	return func(e *Engine) { e.provider = p }
}

// WithTools sets the tool registry.
func WithTools(r *tools.Registry) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.tools = r
		}
	}
}

// WithFormatter sets the response formatter.
func WithFormatter(f Formatter) EngineOption {
	return func(e *Engine) { e.formatter = f }
}

// WithInterceptor sets the policy consulted before each tool execution.
func WithInterceptor(ic tools.Interceptor) EngineOption {
	return func(e *Engine) { e.interceptor = ic }
}

// WithHooks registers observability hooks.
func WithHooks(h domain.LifecycleHooks) EngineOption {
	return func(e *Engine) { e.hooks = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxSteps bounds the signals emitted per run. Values below 1 are ignored.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithTimeout bounds the wall time of a whole run, loop re-entries included.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// WithToolTimeout bounds each tool execution.
func WithToolTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.toolTimeout = d }
}

// WithHistoryWindow sets how many trailing history entries are sent to the provider.
// Zero sends everything.
func WithHistoryWindow(n int) EngineOption {
	return func(e *Engine) { e.historyWindow = n }
}

// WithMaxHistory trims the transcript after every response. Zero disables trimming.
func WithMaxHistory(n int) EngineOption {
	return func(e *Engine) { e.maxHistory = n }
}

// WithMaxThoughts prunes scratch thoughts after every response. Zero keeps them all.
func WithMaxThoughts(n int) EngineOption {
	return func(e *Engine) { e.maxThoughts = n }
}

// WithGenerateOptions sets the options passed to every provider call.
func WithGenerateOptions(o ports.GenerateOptions) EngineOption {
	return func(e *Engine) { e.genOpts = o }
}

// WithHandler replaces the handler of the named stage, keeping its position and
// signal types. Unknown names are ignored.
func WithHandler(stage string, h HandlerFunc) EngineOption {
	return func(e *Engine) {
		if e.overrides == nil {
			e.overrides = make(map[string]HandlerFunc)
		}
		e.overrides[stage] = h
	}
}
