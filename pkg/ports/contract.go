package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	t.Helper()
	ctx := context.Background()
	id := "contract-" + time.Now().Format("20060102150405.000000000")

	t.Run("Save and Load", func(t *testing.T) {
		state := conversation.NewWithSystemPrompt(id, "You are terse.")
		state.AddMessage(conversation.RoleUser, "Calculate 40+2", "")
		state.AddFunctionResult("calculator", map[string]any{"result": 42})
		state.AddToolCall(conversation.ToolCallRecord{Name: "calculator", Args: map[string]any{"expression": "40+2"}, Result: map[string]any{"result": 42}})
		state.AddTask("task-1")
		state.SetPreferences(map[string]any{"tone": "dry"})
		state.AddError(domain.KindNotFound, "tool x not found")

		require.NoError(t, store.Save(ctx, id, state), "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.ID, loaded.ID)
		assert.Equal(t, state.History, loaded.History)
		require.Len(t, loaded.ToolCalls, 1)
		assert.Equal(t, "calculator", loaded.ToolCalls[0].Name)
		assert.Equal(t, "40+2", loaded.ToolCalls[0].Args["expression"])
		require.Len(t, loaded.Tasks, 1)
		assert.Equal(t, domain.TaskStarting, loaded.Tasks[0].Status)
		assert.Equal(t, "dry", loaded.Preferences["tone"])
		require.Len(t, loaded.Errors, 1)
		assert.Equal(t, domain.KindNotFound, loaded.Errors[0].Kind)
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		state := conversation.New(id + "-copy")
		require.NoError(t, store.Save(ctx, state.ID, state))
		defer func() { _ = store.Delete(ctx, state.ID) }()

		state.AddMessage(conversation.RoleUser, "after save", "")
		loaded, err := store.Load(ctx, state.ID)
		require.NoError(t, err)
		assert.Empty(t, loaded.History, "mutating the saved value must not leak into the store")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, id, conversation.New(id)))
		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound, "Load after Delete should return ErrConversationNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := id + "-1"
		id2 := id + "-2"
		require.NoError(t, store.Save(ctx, id1, conversation.New(id1)))
		require.NoError(t, store.Save(ctx, id2, conversation.New(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
