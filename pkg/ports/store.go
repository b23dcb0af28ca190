package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/conversation"
)

// StateStore persists conversation stores between turns.
type StateStore interface {
	// Save persists the conversation under id.
	Save(ctx context.Context, id string, state *conversation.State) error

	// Load retrieves the conversation stored under id.
	// Returns domain.ErrConversationNotFound if it does not exist.
	Load(ctx context.Context, id string) (*conversation.State, error)

	// Delete removes the conversation stored under id.
	Delete(ctx context.Context, id string) error

	// List returns the ids of every stored conversation.
	List(ctx context.Context) ([]string, error)
}
