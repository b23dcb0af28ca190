package provider

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// ErrScriptExhausted is returned once every scripted step has been consumed.
var ErrScriptExhausted = errors.New("scripted provider has no more replies")

// Step is one scripted provider answer.
type Step struct {
	Reply *ports.Reply
	Err   error
	// Respond, when set, computes the reply from the history it receives.
	Respond func(history []conversation.Message) (*ports.Reply, error)
}

// Call is a recorded Generate invocation.
type Call struct {
	History []conversation.Message
	Tools   []domain.ToolSpec
	Options ports.GenerateOptions
}

// Scripted replays a fixed sequence of replies and records what it was asked.
type Scripted struct {
	mu    sync.Mutex
	steps []Step
	calls []Call
}

// NewScripted creates a provider answering with steps in order.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Content answers with natural language.
func Content(text string) Step { return Step{Reply: &ports.Reply{Content: text}} }

// Think answers with a reasoning step.
func Think(thought string) Step { return Step{Reply: &ports.Reply{Thought: thought}} }

// CallTool answers with one tool invocation.
func CallTool(name string, args map[string]any) Step {
	return Step{Reply: &ports.Reply{ToolCalls: []domain.ToolCall{{Name: name, Args: maps.Clone(args)}}}}
}

// CallTools answers with several tool invocations.
func CallTools(calls ...domain.ToolCall) Step {
	return Step{Reply: &ports.Reply{ToolCalls: calls}}
}

// Fail answers with a provider failure.
func Fail(err error) Step { return Step{Err: err} }

// Respond computes the answer from the received history.
func Respond(fn func(history []conversation.Message) (*ports.Reply, error)) Step {
	return Step{Respond: fn}
}

// Generate implements ports.Provider.
func (s *Scripted) Generate(ctx context.Context, history []conversation.Message, tools []domain.ToolSpec, opts ports.GenerateOptions) (*ports.Reply, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{History: history, Tools: tools, Options: opts})
	if len(s.steps) == 0 {
		s.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if step.Respond != nil {
		return step.Respond(history)
	}
	return step.Reply, step.Err
}

// Calls returns every recorded invocation.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Remaining returns how many scripted steps are left.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}
