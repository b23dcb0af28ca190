package runner

import (
	"context"

	"github.com/aretw0/parley/pkg/ports"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents the result of one turn.
	Output(ctx context.Context, res *ports.Result) error

	// Input reads the next turn. io.EOF ends the conversation.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (confirmation prompts, input errors),
	// kept apart from conversation content.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms reply text before it is printed, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)
