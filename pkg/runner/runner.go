package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/session"
)

// exitCommands end the loop when typed as a whole line.
var exitCommands = []string{"/exit", "/quit", "exit", "quit"}

// Runner handles the turn loop of a conversation using the provided IO.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on stdin/stdout.
	Handler IOHandler

	// Logger is used for internal debug logging. Defaults to a no-op logger.
	Logger *slog.Logger

	// Sessions persists the conversation after every turn. Nil keeps it in memory.
	Sessions *session.Manager

	// ConversationID selects the conversation. Empty generates one.
	ConversationID string

	// SystemPrompt seeds a new conversation.
	SystemPrompt string

	// Sanitizer cleans every line before it becomes a turn.
	Sanitizer Sanitizer

	handleSignals bool
	state         *conversation.State
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		Logger:        logging.NewNop(),
		Sanitizer:     NewSanitizer(DefaultMaxInputSize),
		handleSignals: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	if r.ConversationID == "" {
		r.ConversationID = conversation.New("").ID
	}
	return r
}

// Run reads turns until EOF, an exit command, or ctx ends. Ctrl+C during a turn
// aborts that turn only; during input it ends the loop.
func (r *Runner) Run(ctx context.Context, engine ports.Processor) error {
	signals := r.signalContext(ctx)
	defer signals.Stop()

	for {
		inputCtx := signals.Context()
		input, err := r.Handler.Input(inputCtx)
		if err != nil {
			if errors.Is(err, io.EOF) || inputCtx.Err() != nil {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		text, err := r.Sanitizer.Text(input)
		if err != nil {
			if err := r.Handler.SystemOutput(ctx, fmt.Sprintf("Error: %v. Please try again.", err)); err != nil {
				return err
			}
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if slices.Contains(exitCommands, strings.ToLower(text)) {
			return nil
		}

		turnCtx := signals.Context()
		res, err := r.Turn(turnCtx, engine, text)
		if err != nil {
			return err
		}
		if signals.Interrupted() {
			r.Logger.Debug("turn interrupted by signal", "conversation_id", r.ConversationID)
			signals.Reset()
		}

		if err := r.Handler.Output(ctx, res); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}
}

// Turn processes one user message against the conversation and persists the result.
func (r *Runner) Turn(ctx context.Context, engine ports.Processor, text string) (*ports.Result, error) {
	sig := domain.NewUserMessage(text)

	if r.Sessions == nil {
		if r.state == nil {
			r.state = conversation.NewWithSystemPrompt(r.ConversationID, r.SystemPrompt)
		}
		res, err := engine.Process(ctx, sig, r.state)
		if err != nil {
			return nil, err
		}
		r.state = res.State
		return res, nil
	}

	var res *ports.Result
	_, err := r.Sessions.Update(ctx, r.ConversationID, r.SystemPrompt, func(ctx context.Context, st *conversation.State) error {
		var err error
		res, err = engine.Process(ctx, sig, st)
		if err != nil {
			return err
		}
		*st = *res.State
		return nil
	})
	if err != nil {
		// Ctrl+C during lock acquisition.
		if ctx.Err() != nil && res == nil {
			return interruptedResult(), nil
		}
		return nil, fmt.Errorf("critical persistence error: %w", err)
	}
	return res, nil
}

// State returns the in-memory conversation when no session manager is configured.
func (r *Runner) State() *conversation.State {
	return r.state
}

func (r *Runner) signalContext(ctx context.Context) *SignalManager {
	if r.handleSignals {
		return NewSignalManager(ctx)
	}
	sm := &SignalManager{parent: ctx}
	sm.ctx, sm.cancel = context.WithCancel(ctx)
	return sm
}

func interruptedResult() *ports.Result {
	return &ports.Result{
		Directive:   domain.DirectiveHalt,
		Signal:      domain.NewResponse("Interrupted."),
		Interrupted: true,
		Cause:       context.Canceled,
	}
}
