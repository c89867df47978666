package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
	"github.com/wricardo/mcp-training/mininggame/game/service"
	"github.com/wricardo/mcp-training/mininggame/logging"
	"github.com/wricardo/mcp-training/mininggame/metrics"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = service.ErrSessionAlreadyExists
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// maxIDAttempts bounds retries when a generated ID collides
const maxIDAttempts = 16

// Manager handles game session lifecycle. Every session owns a running
// world; removing a session from memory closes that world.
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	metrics     *metrics.Recorder
	log         logrus.FieldLogger
	mu          sync.RWMutex
}

// NewManager creates a new session manager
func NewManager(log logrus.FieldLogger) *Manager {
	return NewManagerWithPersistence(nil, log)
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(persistence SessionPersistence, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		sessions:    make(map[string]*service.Session),
		persistence: persistence,
		log:         log.WithField("component", "sessions"),
	}
}

// SetMetrics reports the active session count on r
func (m *Manager) SetMetrics(r *metrics.Recorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = r
	m.metrics.SetActiveSessions(len(m.sessions))
}

// Create creates a new session with the given ID and world configuration.
// An empty ID gets a random 4-character one.
func (m *Manager) Create(id, configID string, config *engine.WorldConfig) (*service.Session, error) {
	if strings.ContainsAny(id, `/\. `) {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		for i := 0; i < maxIDAttempts; i++ {
			if candidate := m.generateSessionID(); !m.sessionExists(candidate) {
				id = candidate
				break
			}
		}
		if id == "" {
			return nil, fmt.Errorf("failed to generate a free session ID")
		}
	} else if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	world, err := engine.NewWorld(config, logging.ForSession(m.log, id))
	if err != nil {
		return nil, fmt.Errorf("failed to create world: %w", err)
	}

	now := time.Now()
	session := &service.Session{
		ID:        id,
		ConfigID:  configID,
		World:     world,
		Config:    config,
		CreatedAt: now,
	}
	session.Touch(now)

	m.sessions[strings.ToLower(id)] = session
	m.metrics.SetActiveSessions(len(m.sessions))

	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			// The session still works in memory
			m.log.WithError(err).WithField("session", id).Warn("failed to persist new session")
		}
	}

	return session, nil
}

// Get retrieves a session by ID (case-insensitive), loading it from
// persistence if it is not in memory
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	if m.persistence == nil || !m.persistence.Exists(id) {
		return nil, ErrSessionNotFound
	}

	loaded, err := m.persistence.Load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent Get may have loaded it first; keep that one
	if existing, ok := m.sessions[strings.ToLower(id)]; ok {
		loaded.World.Close()
		return existing, nil
	}
	m.sessions[strings.ToLower(id)] = loaded
	m.metrics.SetActiveSessions(len(m.sessions))
	m.log.WithField("session", loaded.ID).Info("session restored from storage")
	return loaded, nil
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id, configID string, config *engine.WorldConfig) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, configID, config)
	}

	return nil, err
}

// List returns all sessions held in memory
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete removes a session from memory and storage and closes its world
func (m *Manager) Delete(id string) error {
	inMemory := m.evict(id)

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	if !m.evict(id) {
		return ErrSessionNotFound
	}
	return nil
}

// evict drops a session from memory and closes its world
func (m *Manager) evict(id string) bool {
	m.mu.Lock()
	session, exists := m.sessions[strings.ToLower(id)]
	if exists {
		delete(m.sessions, strings.ToLower(id))
		m.metrics.SetActiveSessions(len(m.sessions))
	}
	m.mu.Unlock()

	if exists {
		session.World.Close()
	}
	return exists
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}
	session.Touch(time.Now())
	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	return m.persistence.Save(session)
}

// CleanupExpiredSessions saves and unloads sessions that haven't been
// accessed in the given duration. They can still be loaded back by ID.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var expired []*service.Session
	for key, session := range m.sessions {
		if session.LastAccessed().Before(cutoff) {
			delete(m.sessions, key)
			expired = append(expired, session)
		}
	}
	m.metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	for _, session := range expired {
		if m.persistence != nil {
			if err := m.persistence.Save(session); err != nil {
				m.log.WithError(err).WithField("session", session.ID).Warn("failed to save expiring session")
			}
		}
		session.World.Close()
	}

	if len(expired) > 0 {
		m.log.WithField("count", len(expired)).Info("expired sessions unloaded")
	}
	return len(expired)
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// sessionExists checks if a session exists in memory or storage (case-insensitive)
func (m *Manager) sessionExists(id string) bool {
	if _, exists := m.sessions[strings.ToLower(id)]; exists {
		return true
	}
	return m.persistence != nil && m.persistence.Exists(id)
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	loadedCount := 0
	for _, id := range sessionIDs {
		m.mu.RLock()
		_, exists := m.sessions[strings.ToLower(id)]
		m.mu.RUnlock()
		if exists {
			continue
		}

		session, err := m.persistence.Load(id)
		if err != nil {
			m.log.WithError(err).WithField("session", id).Warn("failed to load persisted session")
			continue
		}

		m.mu.Lock()
		if _, exists := m.sessions[strings.ToLower(id)]; exists {
			m.mu.Unlock()
			session.World.Close()
			continue
		}
		m.sessions[strings.ToLower(id)] = session
		m.metrics.SetActiveSessions(len(m.sessions))
		m.mu.Unlock()
		loadedCount++
	}

	if loadedCount > 0 {
		m.log.WithField("count", loadedCount).Info("loaded persisted sessions from storage")
	}

	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	errorCount := 0
	for _, session := range m.List() {
		if err := m.persistence.Save(session); err != nil {
			m.log.WithError(err).WithField("session", session.ID).Warn("failed to save session")
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}

	return nil
}

// CloseAll closes every world held in memory and empties the manager
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*service.Session)
	m.metrics.SetActiveSessions(0)
	m.mu.Unlock()

	for _, session := range sessions {
		session.World.Close()
	}
}
