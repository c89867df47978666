package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/mcp-training/mininggame/logging"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}

	expectedAppName := "Mining Robot Game Server"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

// withFlags points the config and save flags at temp dirs for one test
func withFlags(t *testing.T) (string, string) {
	t.Helper()
	cfgDir, saveDir := t.TempDir(), t.TempDir()

	origConfig, origSessions, origBackend := *configDir, *sessionsDir, *saveBackend
	*configDir, *sessionsDir, *saveBackend = cfgDir, saveDir, BackendFile
	t.Cleanup(func() {
		*configDir, *sessionsDir, *saveBackend = origConfig, origSessions, origBackend
	})
	return cfgDir, saveDir
}

func newTestServices(t *testing.T) *services {
	t.Helper()
	svcs, err := initializeServices(logging.Discard())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	t.Cleanup(svcs.shutdown)
	return svcs
}

func TestInitializeServices(t *testing.T) {
	_, saveDir := withFlags(t)
	svcs := newTestServices(t)

	if svcs.game == nil || svcs.hub == nil || svcs.metrics == nil {
		t.Fatal("Expected all services to be initialized")
	}

	// An empty config dir falls back to the built-in world
	info, err := svcs.game.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if _, err := os.Stat(filepath.Join(saveDir, info.ID+".json")); err != nil {
		t.Errorf("Expected session saved on create: %v", err)
	}
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	withFlags(t)
	*configDir = "/non/existent/path"

	if _, err := initializeServices(logging.Discard()); err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestInitializeServices_UnknownBackend(t *testing.T) {
	withFlags(t)
	*saveBackend = "tape"

	_, err := initializeServices(logging.Discard())
	if err == nil || !strings.Contains(err.Error(), "unknown save backend") {
		t.Errorf("Expected unknown backend error, got %v", err)
	}
}

func TestFlagDefaults(t *testing.T) {
	if *port <= 0 || *port > 65535 {
		t.Errorf("Invalid default port: %d", *port)
	}
	if *host == "" {
		t.Error("Host should have a default value")
	}
	if *configDir == "" || *sessionsDir == "" {
		t.Error("Config and sessions directories should have default values")
	}
	if *sessionTTL <= 0 {
		t.Error("Session TTL should be positive")
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("MININGGAME_TEST_VAR", "")
	if got := envOr("MININGGAME_TEST_VAR", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %s", got)
	}

	t.Setenv("MININGGAME_TEST_VAR", "set")
	if got := envOr("MININGGAME_TEST_VAR", "fallback"); got != "set" {
		t.Errorf("Expected set, got %s", got)
	}
}

func TestHandler(t *testing.T) {
	withFlags(t)
	svcs := newTestServices(t)
	handler := svcs.handler("http://127.0.0.1:1")

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		status   int
		contains string
	}{
		{"health", "GET", "/healthz", "", http.StatusOK, "healthy"},
		{"metrics", "GET", "/metrics", "", http.StatusOK, "mininggame_sessions_active"},
		{"default config", "GET", "/api/configs/default", "", http.StatusOK, "Built-in world"},
		{"mcp rejects GET", "GET", "/mcp", "", http.StatusMethodNotAllowed, ""},
		{
			"mcp initialize", "POST", "/mcp",
			`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`,
			http.StatusOK, "Mining Robot Game",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			if tt.contains != "" && !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("Expected %q in response, got %s", tt.contains, w.Body.String())
			}
		})
	}
}

func TestPruneOrphans(t *testing.T) {
	_, saveDir := withFlags(t)
	svcs := newTestServices(t)
	ctx := context.Background()

	kept, err := svcs.game.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	removed, err := svcs.game.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if err := os.Remove(filepath.Join(saveDir, removed.ID+".json")); err != nil {
		t.Fatalf("Failed to remove save: %v", err)
	}

	if pruned := pruneOrphans(svcs.sessions, svcs.persistence, svcs.log); pruned != 1 {
		t.Errorf("Expected 1 pruned session, got %d", pruned)
	}
	if svcs.sessions.Count() != 1 {
		t.Errorf("Expected 1 session in memory, got %d", svcs.sessions.Count())
	}
	if _, err := svcs.game.GetSession(ctx, kept.ID); err != nil {
		t.Errorf("Kept session should still load: %v", err)
	}
}
