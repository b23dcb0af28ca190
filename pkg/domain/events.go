package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSignal     EventType = "signal"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventError      EventType = "error"
	EventComplete   EventType = "complete"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// SignalEvent is raised every time a signal enters the pipeline.
type SignalEvent struct {
	EventBase
	Signal SignalType `json:"signal"`
	Step   int        `json:"step"`
}

// ToolEvent represents a tool execution.
type ToolEvent struct {
	EventBase
	ToolName string        `json:"tool_name"`
	Input    any           `json:"input,omitempty"`
	Output   any           `json:"output,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// ErrorEvent is raised when the error handler records a failure.
type ErrorEvent struct {
	EventBase
	Kind    ErrorKind   `json:"kind"`
	Source  ErrorSource `json:"source"`
	Message string      `json:"message"`
}

// CompleteEvent is raised when a pipeline run returns.
type CompleteEvent struct {
	EventBase
	Directive   Directive     `json:"directive"`
	Final       SignalType    `json:"final"`
	Steps       int           `json:"steps"`
	Duration    time.Duration `json:"duration"`
	Interrupted bool          `json:"interrupted,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnSignal     func(context.Context, *SignalEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnError      func(context.Context, *ErrorEvent)
	OnComplete   func(context.Context, *CompleteEvent)
}

// MergeHooks fans every callback out to all given hook sets.
func MergeHooks(all ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnSignal: func(ctx context.Context, e *SignalEvent) {
			for _, h := range all {
				if h.OnSignal != nil {
					h.OnSignal(ctx, e)
				}
			}
		},
		OnToolCall: func(ctx context.Context, e *ToolEvent) {
			for _, h := range all {
				if h.OnToolCall != nil {
					h.OnToolCall(ctx, e)
				}
			}
		},
		OnToolReturn: func(ctx context.Context, e *ToolEvent) {
			for _, h := range all {
				if h.OnToolReturn != nil {
					h.OnToolReturn(ctx, e)
				}
			}
		},
		OnError: func(ctx context.Context, e *ErrorEvent) {
			for _, h := range all {
				if h.OnError != nil {
					h.OnError(ctx, e)
				}
			}
		},
		OnComplete: func(ctx context.Context, e *CompleteEvent) {
			for _, h := range all {
				if h.OnComplete != nil {
					h.OnComplete(ctx, e)
				}
			}
		},
	}
}
