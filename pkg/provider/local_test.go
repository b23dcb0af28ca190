package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var specs = []domain.ToolSpec{{Name: "calculator"}, {Name: "clock"}}

func user(text string) []conversation.Message {
	return []conversation.Message{{Role: conversation.RoleUser, Content: text}}
}

func TestLocal_RoutesArithmetic(t *testing.T) {
	reply, err := provider.NewLocal().Generate(context.Background(), user("Calculate 40+2 please"), specs, ports.GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "calculator", reply.ToolCalls[0].Name)
	assert.Equal(t, "40+2", reply.ToolCalls[0].Args["expression"])
}

func TestLocal_WithoutCalculatorEchoes(t *testing.T) {
	reply, err := provider.NewLocal().Generate(context.Background(), user("Calculate 40+2"), nil, ports.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "You said: Calculate 40+2", reply.Content)
}

func TestLocal_Time(t *testing.T) {
	reply, err := provider.NewLocal().Generate(context.Background(), user("what time is it?"), specs, ports.GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "clock", reply.ToolCalls[0].Name)
}

func TestLocal_DescribesFunctionResult(t *testing.T) {
	history := append(user("Calculate 40+2"), conversation.Message{Role: conversation.RoleFunction, Name: "calculator", Content: `{"result":42}`})
	reply, err := provider.NewLocal().Generate(context.Background(), history, specs, ports.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", reply.Content)
}

func TestScripted(t *testing.T) {
	p := provider.NewScripted(provider.Think("hmm"), provider.Fail(errors.New("rate limited")))

	reply, err := p.Generate(context.Background(), user("a"), specs, ports.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hmm", reply.Thought)

	_, err = p.Generate(context.Background(), user("b"), specs, ports.GenerateOptions{})
	assert.EqualError(t, err, "rate limited")

	_, err = p.Generate(context.Background(), user("c"), specs, ports.GenerateOptions{})
	assert.ErrorIs(t, err, provider.ErrScriptExhausted)

	calls := p.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "b", calls[1].History[0].Content)
}
