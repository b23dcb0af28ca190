package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_WithMetaDoesNotMutate(t *testing.T) {
	base := domain.NewResponse("hi").WithMeta("a", 1)
	derived := base.WithMeta("b", 2)

	assert.Equal(t, map[string]any{"a": 1}, base.Meta)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, derived.Meta)
}

func TestNewToolCall_CopiesArgs(t *testing.T) {
	args := map[string]any{"expression": "40+2"}
	sig := domain.NewToolCall(domain.ToolCall{Name: "calculator", Args: args})
	args["expression"] = "changed"

	call, err := domain.DecodePayload[domain.ToolCall](sig)
	require.NoError(t, err)
	assert.Equal(t, "40+2", call.Args["expression"])
}

func TestDecodePayload_FromJSON(t *testing.T) {
	raw := `{"type":"tool_call","data":{"name":"calculator","args":{"expression":"1+1"}},"meta":{"step":3}}`
	var sig domain.Signal
	require.NoError(t, json.Unmarshal([]byte(raw), &sig))

	call, err := domain.DecodePayload[domain.ToolCall](sig)
	require.NoError(t, err)
	assert.Equal(t, "calculator", call.Name)
	assert.Equal(t, "1+1", call.Args["expression"])
	assert.Equal(t, 3, sig.MetaInt(domain.MetaStep))
}

func TestDecodePayload_Empty(t *testing.T) {
	_, err := domain.DecodePayload[domain.Message](domain.Signal{Type: domain.SignalUserMessage})
	assert.ErrorIs(t, err, domain.ErrInvalidSignal)
}

func TestSignalType_Valid(t *testing.T) {
	for _, st := range domain.SignalTypes {
		assert.True(t, st.Valid(), st)
	}
	assert.False(t, domain.SignalType("bogus").Valid())
}

func TestSignal_Text(t *testing.T) {
	assert.Equal(t, "hello", domain.NewUserMessage("hello").Text())
	assert.Equal(t, "hmm", domain.NewThinking("hmm").Text())
	assert.Equal(t, "boom", domain.NewError(domain.KindExecution, domain.SourceToolCall, "boom", nil).Text())
	assert.Equal(t, "x", domain.Signal{Type: domain.SignalResponse, Data: map[string]any{"content": "x"}}.Text())
}

func TestDirective_String(t *testing.T) {
	assert.Equal(t, "skip", domain.DirectiveSkip.String())
	assert.Equal(t, "emit", domain.DirectiveEmit.String())
	assert.Equal(t, "halt", domain.DirectiveHalt.String())
}
