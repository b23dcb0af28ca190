package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/provider"
	"github.com/aretw0/parley/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcResult struct {
	Result struct {
		IsError           bool           `json:"isError"`
		StructuredContent map[string]any `json:"structuredContent"`
		Content           []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Contents []struct {
			URI  string `json:"uri"`
			Text string `json:"text"`
		} `json:"contents"`
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	eng := parley.New(
		parley.WithProvider(provider.NewLocal()),
		parley.WithBuiltinTools(),
	)
	return NewServer(eng, session.NewManager(memory.NewStore()), append([]Option{
		WithTools(eng.Registry()),
		WithSystemPrompt("Be brief."),
	}, opts...)...)
}

var rpcID int

func call(t *testing.T, s *Server, method string, params any) rpcResult {
	t.Helper()
	rpcID++
	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      rpcID,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.MCPServer().HandleMessage(context.Background(), req)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var out rpcResult
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) rpcResult {
	return call(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
}

func TestServer_ListsTools(t *testing.T) {
	s := newTestServer(t)
	out := call(t, s, "tools/list", map[string]any{})
	require.Nil(t, out.Error)

	var names []string
	for _, tool := range out.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"send_message", "send_signal", "get_conversation", "list_tools"}, names)
}

func TestServer_SendMessage(t *testing.T) {
	s := newTestServer(t)

	out := callTool(t, s, "send_message", map[string]any{"conversation_id": "m1", "content": "Calculate 6*7"})
	require.Nil(t, out.Error)
	require.False(t, out.Result.IsError)
	assert.Equal(t, "The answer is 42.", out.Result.StructuredContent["content"])
	assert.Equal(t, "m1", out.Result.StructuredContent["conversation_id"])
	assert.Equal(t, "response", out.Result.StructuredContent["type"])

	out = callTool(t, s, "get_conversation", map[string]any{"conversation_id": "m1"})
	require.False(t, out.Result.IsError)
	require.Len(t, out.Result.Content, 1)

	var st struct {
		History []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal([]byte(out.Result.Content[0].Text), &st))
	require.NotEmpty(t, st.History)
	assert.Equal(t, "Be brief.", st.History[0].Content)
	assert.Equal(t, "Calculate 6*7", st.History[1].Content)
}

func TestServer_SendSignal(t *testing.T) {
	s := newTestServer(t)

	out := callTool(t, s, "send_signal", map[string]any{
		"conversation_id": "s1",
		"type":            "user_message",
		"data":            `{"content":"hi"}`,
	})
	require.False(t, out.Result.IsError)
	assert.Equal(t, "You said: hi", out.Result.StructuredContent["content"])

	out = callTool(t, s, "send_signal", map[string]any{"conversation_id": "s1", "type": "bogus"})
	assert.True(t, out.Result.IsError)

	out = callTool(t, s, "send_signal", map[string]any{"conversation_id": "s1", "type": "user_message", "data": "{"})
	assert.True(t, out.Result.IsError)
}

func TestServer_InputLimit(t *testing.T) {
	s := newTestServer(t, WithMaxInputSize(8))

	out := callTool(t, s, "send_message", map[string]any{"conversation_id": "l1", "content": "much too long"})
	assert.True(t, out.Result.IsError)
	require.NotEmpty(t, out.Result.Content)
	assert.Contains(t, out.Result.Content[0].Text, "exceeds maximum")

	out = callTool(t, s, "send_signal", map[string]any{
		"conversation_id": "l1",
		"type":            "user_message",
		"data":            `{"content":"much too long"}`,
	})
	assert.True(t, out.Result.IsError)

	out = callTool(t, s, "send_signal", map[string]any{
		"conversation_id": "l1",
		"type":            "user_message",
		"data":            `{"content":"ok\u0007"}`,
	})
	require.False(t, out.Result.IsError)
	assert.Equal(t, "You said: ok", out.Result.StructuredContent["content"])
}

func TestServer_GetConversation_Missing(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, "get_conversation", map[string]any{"conversation_id": "nope"})
	assert.True(t, out.Result.IsError)
}

func TestServer_ListToolsTool(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, "list_tools", map[string]any{})
	require.False(t, out.Result.IsError)
	require.Len(t, out.Result.Content, 1)
	assert.Contains(t, out.Result.Content[0].Text, "calculator")
}

func TestServer_Resources(t *testing.T) {
	s := newTestServer(t)

	out := call(t, s, "resources/read", map[string]any{"uri": toolsURI})
	require.Nil(t, out.Error)
	require.Len(t, out.Result.Contents, 1)
	assert.Contains(t, out.Result.Contents[0].Text, "clock")

	callTool(t, s, "send_message", map[string]any{"conversation_id": "r1", "content": "hello"})
	out = call(t, s, "resources/read", map[string]any{"uri": fmt.Sprintf("%sr1", conversationURI)})
	require.Nil(t, out.Error)
	require.Len(t, out.Result.Contents, 1)
	assert.Contains(t, out.Result.Contents[0].Text, "You said: hello")
}
