package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/runner"
)

// ChatOptions configures RunChat.
type ChatOptions struct {
	ConversationID string
	JSON           bool
	Fresh          bool
	Banner         bool
	Markdown       bool
	// Message sends a single turn instead of starting the loop.
	Message string
}

// NewChatHandler picks the IO strategy for a chat session. Text output is
// rendered as markdown when opts.Markdown is set.
func NewChatHandler(opts ChatOptions, in io.Reader, out io.Writer) runner.IOHandler {
	if opts.JSON {
		return runner.NewJSONHandler(in, out)
	}
	var hopts []runner.TextHandlerOption
	if opts.Markdown {
		if render, err := tui.NewRenderer(); err == nil {
			hopts = append(hopts, runner.WithTextHandlerRenderer(render))
		}
	}
	return runner.NewTextHandler(in, out, hopts...)
}

// RunChat runs an interactive conversation, or a single turn when opts.Message is set.
func RunChat(ctx context.Context, app *App, handler runner.IOHandler, opts ChatOptions, out io.Writer) error {
	if opts.Fresh && opts.ConversationID != "" {
		if err := app.Sessions.Delete(ctx, opts.ConversationID); err != nil {
			return fmt.Errorf("failed to reset conversation: %w", err)
		}
	}

	r := runner.New(
		runner.WithHandler(handler),
		runner.WithLogger(app.Logger),
		runner.WithSessions(app.Sessions),
		runner.WithConversationID(opts.ConversationID),
		runner.WithSystemPrompt(app.Config.Engine.SystemPrompt),
		runner.WithMaxInputSize(app.Config.Engine.MaxInputSize),
	)

	if opts.Message != "" {
		text, err := r.Sanitizer.Text(opts.Message)
		if err != nil {
			return err
		}
		res, err := r.Turn(ctx, app.Engine, text)
		if err != nil {
			return err
		}
		return handler.Output(ctx, res)
	}

	if opts.Banner && !opts.JSON {
		tui.PrintBanner(out, parley.Version)
		fmt.Fprintln(out, tui.Faint(out, fmt.Sprintf("Conversation %s. Type /exit to leave.", r.ConversationID)))
	}
	app.Logger.Info("Conversation active", "conversation_id", r.ConversationID)

	if err := r.Run(ctx, app.Engine); err != nil {
		return err
	}
	app.Logger.Info("Conversation closed", "conversation_id", r.ConversationID)
	return nil
}
