package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/provider"
	"github.com/aretw0/parley/pkg/session"
	"github.com/aretw0/parley/pkg/tools"
	"github.com/aretw0/parley/pkg/tools/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localEngine() *runtime.Engine {
	reg := tools.NewRegistry().MustRegister(builtin.All()...)
	return runtime.NewEngine(runtime.WithTools(reg), runtime.WithProvider(provider.NewLocal()))
}

func TestRunner_TextLoop(t *testing.T) {
	out := &bytes.Buffer{}
	r := New(
		WithHandler(NewTextHandler(strings.NewReader("what is 40+2?\n\n/exit\nnever read\n"), out, WithPrompt(""))),
		WithConversationID("c1"),
		WithSignalHandling(false),
	)

	require.NoError(t, r.Run(context.Background(), localEngine()))
	assert.Equal(t, "The answer is 42.\n", out.String())

	state := r.State()
	require.NotNil(t, state)
	assert.Equal(t, "c1", state.ID)
	assert.Len(t, state.ToolCalls, 1)
}

func TestRunner_EOFEndsLoop(t *testing.T) {
	h := &scriptedIO{inputs: []string{"hello"}}
	r := New(WithHandler(h), WithSignalHandling(false))
	engine := runtime.NewEngine(runtime.WithProvider(provider.NewScripted(provider.Content("hi there"))))

	require.NoError(t, r.Run(context.Background(), engine))
	assert.Equal(t, []string{"hi there"}, h.outputs)
}

func TestRunner_RejectsOversizedInput(t *testing.T) {
	h := &scriptedIO{inputs: []string{"this input is too long", "/quit"}}
	r := New(WithHandler(h), WithSignalHandling(false), WithMaxInputSize(8))

	require.NoError(t, r.Run(context.Background(), localEngine()))
	assert.Empty(t, h.outputs)
	require.Len(t, h.system, 1)
	assert.Contains(t, h.system[0], "exceeds maximum allowed size")
}

func TestRunner_PersistsThroughSessions(t *testing.T) {
	sessions := session.NewManager(memory.NewStore())
	ctx := context.Background()

	first := &scriptedIO{inputs: []string{"what is 2*3?"}}
	r := New(WithHandler(first), WithSessions(sessions), WithConversationID("kept"),
		WithSystemPrompt("You are terse."), WithSignalHandling(false))
	require.NoError(t, r.Run(ctx, localEngine()))
	assert.Equal(t, []string{"The answer is 6."}, first.outputs)

	second := &scriptedIO{inputs: []string{"what is 1+1?"}}
	r = New(WithHandler(second), WithSessions(sessions), WithConversationID("kept"), WithSignalHandling(false))
	require.NoError(t, r.Run(ctx, localEngine()))

	state, err := sessions.Load(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, conversation.RoleSystem, state.History[0].Role)
	assert.Len(t, state.ToolCalls, 2, "both turns are stored")
	assert.Nil(t, r.State(), "no in-memory copy when sessions are used")
}
