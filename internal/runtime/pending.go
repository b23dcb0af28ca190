package runtime

import (
	"github.com/aretw0/parley/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// pendingCalls reads the queued tool calls carried in meta. Signals decoded from JSON
// carry them as plain maps.
func pendingCalls(sig domain.Signal) []domain.ToolCall {
	raw, ok := sig.Meta[domain.MetaPendingCalls]
	if !ok || raw == nil {
		return nil
	}
	if calls, ok := raw.([]domain.ToolCall); ok {
		return calls
	}
	var calls []domain.ToolCall
	if err := mapstructure.Decode(raw, &calls); err != nil {
		return nil
	}
	return calls
}
