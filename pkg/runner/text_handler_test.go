package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextHandler_Output(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader(""), out, WithTextHandlerRenderer(func(s string) (string, error) {
		return "Rendered: " + s, nil
	}))

	err := handler.Output(context.Background(), &ports.Result{Signal: domain.NewResponse("Hello World")})
	require.NoError(t, err)
	assert.Equal(t, "Rendered: Hello World\n", out.String())
}

func TestTextHandler_OutputKeepsRawOnRendererError(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader(""), out, WithTextHandlerRenderer(func(string) (string, error) {
		return "", errors.New("bad markdown")
	}))

	require.NoError(t, handler.Output(context.Background(), &ports.Result{Signal: domain.NewResponse("plain")}))
	assert.Equal(t, "plain\n", out.String())
}

func TestTextHandler_Input(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader("  my user input \nsecond\n"), out)

	first, err := handler.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "my user input", first)

	second, err := handler.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", second)

	_, err = handler.Input(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > > ", out.String())
}

func TestTextHandler_InputCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	handler := NewTextHandler(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := handler.Input(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTextHandler_SystemOutput(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader(""), out, WithPrompt(""))

	require.NoError(t, handler.SystemOutput(context.Background(), "Allow?"))
	assert.Equal(t, "[System] Allow?\n", out.String())
}
