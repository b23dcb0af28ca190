package provider

import (
	"context"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Func adapts a plain function to ports.Provider.
type Func func(ctx context.Context, history []conversation.Message, tools []domain.ToolSpec, opts ports.GenerateOptions) (*ports.Reply, error)

// Generate implements ports.Provider.
func (f Func) Generate(ctx context.Context, history []conversation.Message, tools []domain.ToolSpec, opts ports.GenerateOptions) (*ports.Reply, error) {
	return f(ctx, history, tools, opts)
}

var _ ports.Provider = Func(nil)
