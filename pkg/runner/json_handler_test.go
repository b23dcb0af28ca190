package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONHandler_Output(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewJSONHandler(strings.NewReader(""), out)

	res := &ports.Result{
		Signal: domain.NewResponse("hi").WithMeta(domain.MetaRecorded, true),
		State:  conversation.New("c1"),
		Steps:  3,
	}
	require.NoError(t, handler.Output(context.Background(), res))

	var env Envelope
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	assert.Equal(t, "response", env.Type)
	assert.Equal(t, "c1", env.ConversationID)
	assert.Equal(t, "hi", env.Content)
	assert.Equal(t, 3, env.Steps)
	assert.Equal(t, true, env.Meta[domain.MetaRecorded])
}

func TestJSONHandler_InputForms(t *testing.T) {
	in := strings.Join([]string{
		`"quoted string"`,
		`{"content": "object form"}`,
		`plain text`,
		`last line without newline`,
	}, "\n")
	handler := NewJSONHandler(strings.NewReader(in), io.Discard)
	ctx := context.Background()

	for _, want := range []string{"quoted string", "object form", "plain text", "last line without newline"} {
		got, err := handler.Input(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := handler.Input(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestJSONHandler_SystemOutput(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewJSONHandler(strings.NewReader(""), out)

	require.NoError(t, handler.SystemOutput(context.Background(), "Allow?"))
	assert.JSONEq(t, `{"type":"system_message","content":"Allow?"}`, out.String())
}
