package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
	"github.com/wricardo/mcp-training/mininggame/logging"
)

func TestManagerWithPersistence(t *testing.T) {
	configs := newTestConfigManager(t)
	persistence, err := NewFilePersistence(t.TempDir(), configs, logging.Discard())
	require.NoError(t, err)

	manager := NewManagerWithPersistence(persistence, logging.Discard())
	t.Cleanup(manager.CloseAll)

	cfg, err := configs.LoadConfig("test")
	require.NoError(t, err)

	t.Run("create session auto-saves", func(t *testing.T) {
		session, err := manager.Create("auto1", "test", cfg)
		require.NoError(t, err)
		assert.True(t, persistence.Exists(session.ID), "session should be saved on creation")
	})

	t.Run("generated IDs skip saved sessions", func(t *testing.T) {
		session, err := manager.Create("", "test", cfg)
		require.NoError(t, err)
		assert.NotEqual(t, "auto1", session.ID)
	})

	t.Run("save keeps progress", func(t *testing.T) {
		session, err := manager.Get("auto1")
		require.NoError(t, err)
		session.World.Dig(engine.Down)
		require.NoError(t, manager.Save("auto1"))

		loaded, err := persistence.Load("auto1")
		require.NoError(t, err)
		t.Cleanup(loaded.World.Close)
		assert.Len(t, loaded.World.Holes(), 1)
	})

	t.Run("get loads from persistence", func(t *testing.T) {
		manager2 := NewManagerWithPersistence(persistence, logging.Discard())
		t.Cleanup(manager2.CloseAll)

		session, err := manager2.Get("AUTO1")
		require.NoError(t, err)
		assert.Equal(t, "auto1", session.ID)
		assert.Len(t, session.World.Holes(), 1)

		again, err := manager2.Get("auto1")
		require.NoError(t, err)
		assert.Same(t, session, again, "session should be cached after loading")
		assert.Equal(t, 1, manager2.Count())
	})

	t.Run("duplicate of a saved ID is rejected", func(t *testing.T) {
		manager2 := NewManagerWithPersistence(persistence, logging.Discard())
		t.Cleanup(manager2.CloseAll)

		_, err := manager2.Create("auto1", "test", cfg)
		assert.ErrorIs(t, err, ErrSessionAlreadyExists)
	})

	t.Run("expired sessions are saved and reloadable", func(t *testing.T) {
		session, err := manager.Create("expiring", "test", cfg)
		require.NoError(t, err)
		session.World.Dig(engine.Left)
		session.Touch(time.Now().Add(-2 * time.Hour))

		assert.Equal(t, 1, manager.CleanupExpiredSessions(time.Hour))

		reloaded, err := manager.Get("expiring")
		require.NoError(t, err)
		assert.NotSame(t, session, reloaded)
		assert.Len(t, reloaded.World.Holes(), 1)
	})

	t.Run("load persisted sessions", func(t *testing.T) {
		manager2 := NewManagerWithPersistence(persistence, logging.Discard())
		t.Cleanup(manager2.CloseAll)

		require.NoError(t, manager2.LoadPersistedSessions())
		assert.Equal(t, 3, manager2.Count())

		// A second pass loads nothing new
		require.NoError(t, manager2.LoadPersistedSessions())
		assert.Equal(t, 3, manager2.Count())
	})

	t.Run("save all", func(t *testing.T) {
		require.NoError(t, manager.SaveAllSessions())
	})

	t.Run("delete removes the save", func(t *testing.T) {
		require.NoError(t, manager.Delete("auto1"))
		assert.False(t, persistence.Exists("auto1"))
		_, err := manager.Get("auto1")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("delete from memory keeps the save", func(t *testing.T) {
		require.NoError(t, manager.DeleteFromMemory("expiring"))
		assert.True(t, persistence.Exists("expiring"))
	})
}
