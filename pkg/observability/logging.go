package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/parley/pkg/domain"
)

// LogHooks writes one structured record per lifecycle event.
// Signals are logged at debug, tool returns and completions at info, errors at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSignal: func(ctx context.Context, e *domain.SignalEvent) {
			logger.DebugContext(ctx, "signal",
				"conversation_id", e.ConversationID,
				"type", e.Signal,
				"step", e.Step,
			)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_call",
				"conversation_id", e.ConversationID,
				"tool_name", e.ToolName,
			)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.InfoContext(ctx, "tool_return",
				"conversation_id", e.ConversationID,
				"tool_name", e.ToolName,
				"duration", e.Duration,
				"is_error", e.IsError,
			)
		},
		OnError: func(ctx context.Context, e *domain.ErrorEvent) {
			logger.WarnContext(ctx, "error_handled",
				"conversation_id", e.ConversationID,
				"kind", e.Kind,
				"source", e.Source,
				"message", e.Message,
			)
		},
		OnComplete: func(ctx context.Context, e *domain.CompleteEvent) {
			logger.InfoContext(ctx, "run_complete",
				"conversation_id", e.ConversationID,
				"final", e.Final,
				"steps", e.Steps,
				"duration", e.Duration,
				"interrupted", e.Interrupted,
			)
		},
	}
}
