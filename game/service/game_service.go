package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/mininggame/game/engine"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrConfigNotFound       = errors.New("configuration not found")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// World
	GetWorld(ctx context.Context, sessionID string) (*engine.WorldSnapshot, error)
	CanMove(ctx context.Context, sessionID, direction string) (*engine.Verdict, error)
	Move(ctx context.Context, sessionID, direction string) (*MoveResult, error)
	BulkMove(ctx context.Context, sessionID string, moves []string) (*BulkMoveResult, error)
	SetGravity(ctx context.Context, sessionID string, enabled bool) (*engine.WorldSnapshot, error)
	SetInfiniteDynamite(ctx context.Context, sessionID string, enabled bool) (*engine.WorldSnapshot, error)

	// Economy
	GetBank(ctx context.Context, sessionID string) (*BankInfo, error)
	Buy(ctx context.Context, sessionID, item string) (*ShopResult, error)
	Sell(ctx context.Context, sessionID, item string) (*ShopResult, error)
	UsePortal(ctx context.Context, sessionID string) (*engine.WorldSnapshot, error)

	// Persistence
	Save(ctx context.Context, sessionID string) error

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.WorldConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.WorldConfig) error

	// Close stops the robot event watchers
	Close()
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, config *engine.WorldConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles world configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.WorldConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.WorldConfig
	DefaultID() string
	SaveConfig(name string, config *engine.WorldConfig) error
}

// Broadcaster pushes session events to connected viewers
type Broadcaster interface {
	BroadcastEvent(sessionID string, event GameEvent)
	BroadcastToSession(sessionID string, snapshot *engine.WorldSnapshot)
}

// Session represents an active game session. The access time is read by
// request handlers and written by the session manager concurrently, so it
// is only reachable through LastAccessed and Touch.
type Session struct {
	ID        string
	ConfigID  string
	World     *engine.GameWorld
	Config    *engine.WorldConfig
	CreatedAt time.Time

	mu           sync.RWMutex
	lastAccessed time.Time
}

// LastAccessed returns when the session was last used
func (s *Session) LastAccessed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccessed
}

// Touch records an access at t
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	s.lastAccessed = t
	s.mu.Unlock()
}
