package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
)

// GenerateOptions are passed through to the provider untouched.
type GenerateOptions struct {
	Model       string         `json:"model,omitempty" mapstructure:"model"`
	Temperature *float64       `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   int            `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Extra       map[string]any `json:"extra,omitempty" mapstructure:"extra"`
}

// Reply is the provider's decision for the next step. At most one of the fields is
// acted on, in this priority: ToolCalls, Thought, Content.
type Reply struct {
	Content   string            `json:"content,omitempty"`
	Thought   string            `json:"thought,omitempty"`
	ToolCalls []domain.ToolCall `json:"tool_calls,omitempty"`
}

// Provider is the LLM boundary. It is stateless per call: the full context window
// arrives in history. A non-nil error marks a failed call.
type Provider interface {
	Generate(ctx context.Context, history []conversation.Message, tools []domain.ToolSpec, opts GenerateOptions) (*Reply, error)
}
