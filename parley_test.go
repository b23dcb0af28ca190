package parley_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/provider"
	"github.com/aretw0/parley/pkg/tools"
	"github.com/aretw0/parley/pkg/tools/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_BuiltinsDoNotOverrideRegistered(t *testing.T) {
	custom := builtin.Echo()
	custom.Description = "custom echo"
	eng := parley.New(parley.WithTools(custom), parley.WithBuiltinTools())

	tool, err := eng.Registry().Lookup("echo")
	require.NoError(t, err)
	assert.Equal(t, "custom echo", tool.Description)
	assert.Equal(t, 3, eng.Registry().Len())
}

func TestEngine_RegistryOptionsInAnyOrder(t *testing.T) {
	reg := tools.NewRegistry()
	eng := parley.New(parley.WithTools(builtin.Echo()), parley.WithRegistry(reg))

	assert.Same(t, reg, eng.Registry())
	_, err := reg.Lookup("echo")
	assert.NoError(t, err, "tools given before the registry still land in it")

	assert.NotPanics(t, func() {
		eng = parley.New(parley.WithRegistry(nil), parley.WithBuiltinTools())
	})
	assert.Equal(t, 3, eng.Registry().Len())
}

func TestEngine_HooksObserveRun(t *testing.T) {
	var toolCalls, completes int
	var final domain.SignalType
	hooks := domain.LifecycleHooks{
		OnToolCall: func(context.Context, *domain.ToolEvent) { toolCalls++ },
		OnComplete: func(_ context.Context, e *domain.CompleteEvent) {
			completes++
			final = e.Final
		},
	}
	eng := parley.New(
		parley.WithProvider(provider.NewLocal()),
		parley.WithBuiltinTools(),
		parley.WithLifecycleHooks(hooks),
	)

	_, err := eng.Send(context.Background(), conversation.New(""), "what is 6*7")
	require.NoError(t, err)
	assert.Equal(t, 1, toolCalls)
	assert.Equal(t, 1, completes)
	assert.Equal(t, domain.SignalResponse, final)
}

func TestEngine_Options(t *testing.T) {
	slow := tools.Tool{Name: "slow", Execute: func(ctx context.Context, _ map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	eng := parley.New(parley.WithTools(slow), parley.WithToolTimeout(10*time.Millisecond), parley.WithMaxSteps(4))

	res, err := eng.Process(context.Background(), domain.NewToolCall(domain.ToolCall{Name: "slow"}), conversation.New(""))
	require.NoError(t, err)
	require.Len(t, res.State.Errors, 1)
	assert.Equal(t, domain.KindExecution, res.State.Errors[0].Kind)
	assert.Contains(t, res.State.Errors[0].Message, "deadline")
}
