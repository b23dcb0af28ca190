package runner

import (
	"log/slog"

	"github.com/aretw0/parley/pkg/session"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithHandler configures the IOHandler.
func WithHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithSessions persists every turn through the session manager.
func WithSessions(sessions *session.Manager) Option {
	return func(r *Runner) {
		r.Sessions = sessions
	}
}

// WithConversationID selects the conversation to resume or start.
func WithConversationID(id string) Option {
	return func(r *Runner) {
		r.ConversationID = id
	}
}

// WithSystemPrompt seeds new conversations.
func WithSystemPrompt(prompt string) Option {
	return func(r *Runner) {
		r.SystemPrompt = prompt
	}
}

// WithSignalHandling toggles Ctrl+C interception. Enabled by default.
func WithSignalHandling(enabled bool) Option {
	return func(r *Runner) {
		r.handleSignals = enabled
	}
}

// WithMaxInputSize sets the byte limit of one input line.
func WithMaxInputSize(n int) Option {
	return func(r *Runner) {
		r.Sanitizer = NewSanitizer(n)
	}
}
