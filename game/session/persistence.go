package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
	"github.com/wricardo/mcp-training/mininggame/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is what a save holds. Only dug holes and portal
// ownership come back on reload; everything else restarts from the config.
type PersistedSessionData struct {
	ID             string          `json:"id"`
	ConfigName     string          `json:"config_name"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
	Progress       engine.Progress `json:"progress"`
}

func persistedData(session *service.Session) (PersistedSessionData, error) {
	if session == nil {
		return PersistedSessionData{}, fmt.Errorf("session cannot be nil")
	}
	if session.World == nil {
		return PersistedSessionData{}, fmt.Errorf("session %s has no world", session.ID)
	}
	return PersistedSessionData{
		ID:             session.ID,
		ConfigName:     session.ConfigID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessed(),
		Progress:       session.World.Progress(),
	}, nil
}

// restoreSession rebuilds a world from the saved config ID and replays the
// saved progress onto it
func restoreSession(data PersistedSessionData, configs service.ConfigManager, log logrus.FieldLogger) (*service.Session, error) {
	config, err := configs.LoadConfig(data.ConfigName)
	if err != nil {
		// The default may be the built-in world, which has no file
		if !errors.Is(err, service.ErrConfigNotFound) || data.ConfigName != configs.DefaultID() {
			return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
		}
		config = configs.GetDefault()
	}

	world, err := engine.NewWorld(config, log.WithField("session", data.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to create world: %w", err)
	}
	world.RestoreProgress(data.Progress)

	session := &service.Session{
		ID:        data.ID,
		ConfigID:  data.ConfigName,
		World:     world,
		Config:    config,
		CreatedAt: data.CreatedAt,
	}
	session.Touch(data.LastAccessedAt)
	return session, nil
}
