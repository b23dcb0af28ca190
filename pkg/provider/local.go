package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/tools/builtin"
)

var arithmetic = regexp.MustCompile(`[\d(][\d\s.+\-*/%()]*[\d)]`)

// Local is an offline rule-based provider. It routes arithmetic to the calculator
// tool, time questions to the clock tool, narrates function results and otherwise
// echoes the user. It lets the engine run end to end without a network model.
type Local struct{}

// NewLocal creates the offline provider.
func NewLocal() *Local { return &Local{} }

// Generate implements ports.Provider.
func (l *Local) Generate(ctx context.Context, history []conversation.Message, tools []domain.ToolSpec, _ ports.GenerateOptions) (*ports.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("empty history")
	}

	last := history[len(history)-1]
	switch last.Role {
	case conversation.RoleFunction:
		return &ports.Reply{Content: describeResult(last)}, nil
	case conversation.RoleUser:
		return l.answer(last.Content, tools), nil
	default:
		return &ports.Reply{Content: "Go on."}, nil
	}
}

func (l *Local) answer(text string, tools []domain.ToolSpec) *ports.Reply {
	if has(tools, "calculator") {
		if expr := findExpression(text); expr != "" {
			return &ports.Reply{ToolCalls: []domain.ToolCall{{
				Name: "calculator",
				Args: map[string]any{"expression": expr},
			}}}
		}
	}
	lower := strings.ToLower(text)
	if has(tools, "clock") && (strings.Contains(lower, "time") || strings.Contains(lower, "date")) {
		return &ports.Reply{ToolCalls: []domain.ToolCall{{Name: "clock", Args: map[string]any{}}}}
	}
	return &ports.Reply{Content: "You said: " + text}
}

func findExpression(text string) string {
	var best string
	for _, m := range arithmetic.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		if !strings.ContainsAny(m, "+-*/%") || len(m) <= len(best) {
			continue
		}
		if _, err := builtin.Evaluate(m); err == nil {
			best = m
		}
	}
	return best
}

func describeResult(msg conversation.Message) string {
	var payload map[string]any
	if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
		return fmt.Sprintf("%s returned %s", msg.Name, msg.Content)
	}
	if e, ok := payload["error"]; ok {
		return fmt.Sprintf("%s failed: %v", msg.Name, e)
	}
	if r, ok := payload["result"]; ok {
		return fmt.Sprintf("The answer is %v.", r)
	}
	if t, ok := payload["time"]; ok {
		return fmt.Sprintf("It is %v.", t)
	}
	return fmt.Sprintf("%s returned %s", msg.Name, msg.Content)
}

func has(tools []domain.ToolSpec, name string) bool {
	return slices.ContainsFunc(tools, func(t domain.ToolSpec) bool { return t.Name == name })
}
