package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Envelope is one JSON line written by JSONHandler.
type Envelope struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Content        string         `json:"content"`
	Meta           map[string]any `json:"meta,omitempty"`
	Steps          int            `json:"steps,omitempty"`
	Interrupted    bool           `json:"interrupted,omitempty"`
}

// NewEnvelope flattens a pipeline result into its wire form.
func NewEnvelope(res *ports.Result) Envelope {
	env := Envelope{
		Type:        string(res.Signal.Type),
		Content:     res.Signal.Text(),
		Meta:        res.Signal.Meta,
		Steps:       res.Steps,
		Interrupted: res.Interrupted,
	}
	if res.State != nil {
		env.ConversationID = res.State.ID
	}
	return env
}

// jsonInput is the object form accepted on input.
type jsonInput struct {
	Content string `json:"content"`
}

// JSONHandler implements IOHandler over JSON Lines.
// Input lines are a JSON string, an object with a content field, or plain text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, res *ports.Result) error {
	if res == nil {
		return nil
	}
	return h.Encoder.Encode(NewEnvelope(res))
}

func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
		return "", err
	}
	text := strings.TrimSpace(line)

	var s string
	if err := json.Unmarshal([]byte(text), &s); err == nil {
		return s, nil
	}
	var obj jsonInput
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj.Content != "" {
		return obj.Content, nil
	}
	return text, nil
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(Envelope{Type: string(domain.SignalSystemMessage), Content: msg})
}
