package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
	"github.com/wricardo/mcp-training/mininggame/game/service"
	"github.com/wricardo/mcp-training/mininggame/logging"
	"github.com/wricardo/mcp-training/mininggame/metrics"
)

func createTestConfig() *engine.WorldConfig {
	cfg := &engine.WorldConfig{
		Name:         "Test Config",
		Description:  "Test configuration",
		Start:        engine.Point{X: 400, Y: 200},
		StartingFuel: 20,
		FuelCapacity: 20,
		Rocks:        []engine.Point{{X: 425, Y: 250}},
		Elements:     []engine.Placement{{Type: "gold", X: 400, Y: 250}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager := NewManager(logging.Discard())
	t.Cleanup(manager.CloseAll)
	return manager
}

func TestManager_Create(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := manager.Create("test-session", "test", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID != "test-session" {
			t.Errorf("Expected session ID 'test-session', got '%s'", session.ID)
		}
		if session.ConfigID != "test" {
			t.Errorf("Expected config ID 'test', got '%s'", session.ConfigID)
		}
		if session.World == nil {
			t.Fatal("Expected world to be initialized")
		}
		if session.World.Robot().Location() != config.Start {
			t.Errorf("Expected robot at %v, got %v", config.Start, session.World.Robot().Location())
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		session, err := manager.Create("", "test", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got '%s'", session.ID)
		}
	})

	t.Run("create duplicate ID", func(t *testing.T) {
		_, err := manager.Create("Test-Session", "test", config)
		if !errors.Is(err, ErrSessionAlreadyExists) {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("create with invalid ID", func(t *testing.T) {
		_, err := manager.Create("../escape", "test", config)
		if !errors.Is(err, ErrInvalidSessionID) {
			t.Errorf("Expected ErrInvalidSessionID, got %v", err)
		}
	})

	t.Run("create with invalid config", func(t *testing.T) {
		bad := createTestConfig()
		bad.Unit = 1
		if _, err := manager.Create("bad", "bad", bad); err == nil {
			t.Error("Expected error for invalid config")
		}
		if _, err := manager.Get("bad"); !errors.Is(err, ErrSessionNotFound) {
			t.Error("A failed create should not leave a session behind")
		}
	})
}

func TestManager_Get(t *testing.T) {
	manager := newTestManager(t)
	created, _ := manager.Create("MixedCase", "test", createTestConfig())

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"exact ID", "MixedCase", nil},
		{"lower case", "mixedcase", nil},
		{"upper case", "MIXEDCASE", nil},
		{"missing", "nope", ErrSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := manager.Get(tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get(%s) error: %v", tt.id, err)
			}
			if session != created {
				t.Error("Expected the same session instance")
			}
		})
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	first, err := manager.GetOrCreate("goc", "test", config)
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}
	second, err := manager.GetOrCreate("goc", "test", config)
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}
	if first != second {
		t.Error("Expected GetOrCreate to return the existing session")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", manager.Count())
	}
}

func TestManager_Delete(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()
	config.Gravity = true

	session, _ := manager.Create("doomed", "test", config)

	if err := manager.Delete("DOOMED"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := manager.Get("doomed"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := manager.Delete("doomed"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}

	// A closed world ignores gravity toggles
	session.World.SetGravity(true)
	if session.World.IsGravity() {
		t.Error("Expected deleted session's world to be closed")
	}

	if err := manager.DeleteFromMemory("doomed"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound from DeleteFromMemory, got %v", err)
	}
}

func TestManager_List(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	for i := 0; i < 5; i++ {
		if _, err := manager.Create(fmt.Sprintf("list-%d", i), "test", config); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
	}

	sessions := manager.List()
	if len(sessions) != 5 {
		t.Errorf("Expected 5 sessions, got %d", len(sessions))
	}
	for _, s := range sessions {
		if !strings.HasPrefix(s.ID, "list-") {
			t.Errorf("Unexpected session %s", s.ID)
		}
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	old, _ := manager.Create("old", "test", config)
	manager.Create("fresh", "test", config)

	old.Touch(time.Now().Add(-2 * time.Hour))

	removed := manager.CleanupExpiredSessions(time.Hour)
	if removed != 1 {
		t.Errorf("Expected 1 session removed, got %d", removed)
	}
	if _, err := manager.Get("old"); !errors.Is(err, ErrSessionNotFound) {
		t.Error("Expected expired session to be gone")
	}
	if _, err := manager.Get("fresh"); err != nil {
		t.Errorf("Expected fresh session to survive: %v", err)
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := newTestManager(t)
	session, _ := manager.Create("touch", "test", createTestConfig())

	before := session.LastAccessed()
	time.Sleep(5 * time.Millisecond)

	if err := manager.UpdateLastAccessed("TOUCH"); err != nil {
		t.Fatalf("UpdateLastAccessed() error: %v", err)
	}
	if !session.LastAccessed().After(before) {
		t.Error("Expected LastAccessedAt to move forward")
	}
	if err := manager.UpdateLastAccessed("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_SaveWithoutPersistence(t *testing.T) {
	manager := newTestManager(t)
	manager.Create("nosave", "test", createTestConfig())

	if err := manager.Save("nosave"); err != nil {
		t.Errorf("Save() without persistence should be a no-op, got %v", err)
	}
	if err := manager.SaveAllSessions(); err != nil {
		t.Errorf("SaveAllSessions() without persistence should be a no-op, got %v", err)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	var wg sync.WaitGroup
	errs := make(chan error, 40)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sid := fmt.Sprintf("concurrent-%d", id)
			if _, err := manager.Create(sid, "test", config); err != nil {
				errs <- err
				return
			}
			if _, err := manager.Get(sid); err != nil {
				errs <- err
			}
			if err := manager.UpdateLastAccessed(sid); err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error during concurrent access: %v", err)
	}
	if manager.Count() != 20 {
		t.Errorf("Expected 20 sessions, got %d", manager.Count())
	}
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	s1, _ := manager.Create("one", "test", config)
	s2, _ := manager.Create("two", "test", config)

	s1.World.Dig(engine.Down)
	s1.World.Dig(engine.Down)

	if s1.World.Bank().Balance() != engine.StartingBalance+50 {
		t.Errorf("Expected session one to collect gold, balance %d", s1.World.Bank().Balance())
	}
	if s2.World.Bank().Balance() != engine.StartingBalance {
		t.Errorf("Session two should be unaffected, balance %d", s2.World.Bank().Balance())
	}
	if len(s2.World.Holes()) != 0 {
		t.Errorf("Session two should have no holes, got %d", len(s2.World.Holes()))
	}
}

func TestManager_SessionIDGeneration(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		session, err := manager.Create("", "test", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if seen[session.ID] {
			t.Errorf("Duplicate session ID %s", session.ID)
		}
		seen[session.ID] = true
	}
}

func TestManager_ActiveSessionsMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	manager := newTestManager(t)
	manager.SetMetrics(metrics.NewRecorder(reg))

	manager.Create("m1", "test", createTestConfig())
	manager.Create("m2", "test", createTestConfig())
	manager.Delete("m1")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() != "mininggame_sessions_active" {
			continue
		}
		found = true
		if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 1 {
			t.Errorf("Expected active sessions gauge 1, got %v", got)
		}
	}
	if !found {
		t.Error("Expected sessions_active to be registered")
	}
}

// Concurrent requests on one session touch its access time while others
// read it into SessionInfo; run with -race.
func TestManager_ConcurrentGetSession(t *testing.T) {
	manager := newTestManager(t)
	game := service.NewGameService(manager, newTestConfigManager(t), service.WithLogger(logging.Discard()))
	t.Cleanup(game.Close)

	info, err := game.CreateSession(context.Background(), "test")
	if err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := game.GetSession(context.Background(), info.ID)
				if err != nil {
					errs <- err
					return
				}
				if got.LastAccessedAt.IsZero() {
					errs <- fmt.Errorf("session %s has no access time", got.ID)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error during concurrent reads: %v", err)
	}

	session, err := manager.Get(info.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if session.LastAccessed().Before(info.LastAccessedAt) {
		t.Error("Expected access time to move forward")
	}
}
