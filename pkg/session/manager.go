package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed holder can keep a distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to conversations held in a StateStore.
// Per-conversation locks are reference counted and dropped once unused.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager with the given persistence store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Load retrieves an existing conversation.
func (m *Manager) Load(ctx context.Context, id string) (*conversation.State, error) {
	var state *conversation.State
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, id)
		return err
	})
	return state, err
}

// LoadOrStart loads the conversation, creating and persisting it when unknown.
// systemPrompt seeds the history of a new conversation only.
func (m *Manager) LoadOrStart(ctx context.Context, id, systemPrompt string) (*conversation.State, error) {
	var state *conversation.State
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		state, err = m.loadOrNew(ctx, id, systemPrompt)
		return err
	})
	return state, err
}

func (m *Manager) loadOrNew(ctx context.Context, id, systemPrompt string) (*conversation.State, error) {
	state, err := m.store.Load(ctx, id)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, fmt.Errorf("failed to check conversation existence: %w", err)
	}

	state = conversation.NewWithSystemPrompt(id, systemPrompt)
	if err := m.store.Save(ctx, state.ID, state); err != nil {
		return nil, fmt.Errorf("failed to initialize conversation: %w", err)
	}
	m.logger.Debug("conversation started", "conversation_id", state.ID)
	return state, nil
}

// Update runs fn on the conversation and persists the result, all under the lock.
// Unknown conversations are started with systemPrompt. The state is not saved when fn fails.
func (m *Manager) Update(ctx context.Context, id, systemPrompt string, fn func(context.Context, *conversation.State) error) (*conversation.State, error) {
	var state *conversation.State
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		current, err := m.loadOrNew(ctx, id, systemPrompt)
		if err != nil {
			return err
		}
		if err := fn(ctx, current); err != nil {
			return err
		}
		if err := m.store.Save(ctx, id, current); err != nil {
			return fmt.Errorf("failed to save conversation: %w", err)
		}
		state = current
		return nil
	})
	return state, err
}

// Save persists the conversation.
func (m *Manager) Save(ctx context.Context, id string, state *conversation.State) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Save(ctx, id, state)
	})
}

// Delete removes the conversation from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes fn while holding the lock for the conversation.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock, it will expire via TTL",
					"conversation_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
