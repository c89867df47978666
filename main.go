// Command mininggame starts the Mining Robot Game server.
//
// It supports two modes:
//  1. "server" (default): runs the HTTP server exposing REST API, WebSocket, /metrics and an /mcp HTTP endpoint
//  2. "stdio-mcp": runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, config and save locations, logging, version output,
// and optional ngrok tunneling for easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/mcp-training/mininggame/api"
	"github.com/wricardo/mcp-training/mininggame/game/config"
	"github.com/wricardo/mcp-training/mininggame/game/service"
	"github.com/wricardo/mcp-training/mininggame/game/session"
	"github.com/wricardo/mcp-training/mininggame/logging"
	"github.com/wricardo/mcp-training/mininggame/metrics"
	"github.com/wricardo/mcp-training/mininggame/transport/mcp"
	"github.com/wricardo/mcp-training/mininggame/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Mining Robot Game Server"
)

// Save backends
const (
	BackendFile  = "file"
	BackendGData = "gdata"

	gdataAppName = "mininggame"
)

// .env is loaded before the flag defaults below read the environment
var envErr = godotenv.Load()

// Configuration flags control how the server starts and which services are enabled.
var (
	port         = flag.Int("port", 8080, "HTTP server port")
	host         = flag.String("host", "localhost", "HTTP server host")
	configDir    = flag.String("config-dir", envOr("CONFIG_DIR", "configs"), "Directory containing world configurations")
	sessionsDir  = flag.String("sessions-dir", envOr("SESSIONS_DIR", "sessions"), "Directory for saved sessions (file backend)")
	saveBackend  = flag.String("save-backend", envOr("SAVE_BACKEND", BackendFile), "Where progress is saved: file or gdata")
	sessionTTL   = flag.Duration("session-ttl", 24*time.Hour, "Unload sessions idle for longer than this")
	debug        = flag.Bool("debug", false, "Enable debug logging (overrides LOG_LEVEL)")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// envOr returns the environment variable key, or fallback when unset
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, metrics and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  LOG_LEVEL, LOG_FORMAT (text|json), CONFIG_DIR, SESSIONS_DIR, SAVE_BACKEND, NGROK_*\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                        # Run HTTP server on default port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090             # Run HTTP server on port 9090\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -save-backend gdata    # Keep saves in the per-user data dir\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp              # Run MCP stdio server\n", os.Args[0])
	}
}

// services bundles everything the transports share
type services struct {
	log         *logrus.Logger
	registry    *prometheus.Registry
	metrics     *metrics.Recorder
	configs     *config.Manager
	sessions    *session.Manager
	persistence session.SessionPersistence
	game        service.GameService
	hub         *websocket.Hub
}

// main parses flags, initializes services, and starts the selected mode.
func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	log := logging.FromEnv()
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	// Determine mode from command
	mode := "server"
	if args := flag.Args(); len(args) > 0 {
		mode = args[0]
	}

	// stdout carries the MCP protocol in stdio mode
	if strings.Contains(mode, "mcp") {
		log.SetOutput(os.Stderr)
	}

	if envErr == nil {
		log.Info("loaded environment variables from .env file")
	} else if !os.IsNotExist(envErr) {
		log.WithError(envErr).Warn("error loading .env file")
	}

	log.WithFields(logrus.Fields{"version": Version, "mode": mode}).Infof("starting %s", AppName)

	svcs, err := initializeServices(log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize services")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcs.start(ctx)

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(ctx, svcs)

	case "server", "http":
		runHTTPServer(ctx, svcs)

	default:
		svcs.shutdown()
		log.Fatalf("unknown mode: %s. Use 'server' (default) or 'stdio-mcp'", mode)
	}

	svcs.shutdown()
	log.Info("server stopped")
}

// initializeServices wires config, persistence, sessions, metrics, the
// websocket hub and the game service. Nothing runs until start.
func initializeServices(log *logrus.Logger) (*services, error) {
	configManager, err := config.NewManager(*configDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := newPersistence(*saveBackend, configManager, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	sessionManager := session.NewManagerWithPersistence(persistence, log)
	sessionManager.SetMetrics(recorder)

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.WithError(err).Warn("failed to load persisted sessions")
	}

	hub := websocket.NewHub(log)

	gameService := service.NewGameService(sessionManager, configManager,
		service.WithBroadcaster(hub),
		service.WithMetrics(recorder),
		service.WithLogger(log),
	)

	return &services{
		log:         log,
		registry:    registry,
		metrics:     recorder,
		configs:     configManager,
		sessions:    sessionManager,
		persistence: persistence,
		game:        gameService,
		hub:         hub,
	}, nil
}

// newPersistence picks the save backend
func newPersistence(backend string, configs *config.Manager, log logrus.FieldLogger) (session.SessionPersistence, error) {
	switch strings.ToLower(backend) {
	case BackendFile, "":
		return session.NewFilePersistence(*sessionsDir, configs, log)
	case BackendGData:
		return session.NewGDataPersistence(gdataAppName, configs, log)
	}
	return nil, fmt.Errorf("unknown save backend %q (want %s or %s)", backend, BackendFile, BackendGData)
}

// start launches the hub and the background routines; they stop with ctx
func (s *services) start(ctx context.Context) {
	go s.hub.Run(ctx)
	go sessionCleanupRoutine(ctx, s.sessions, *sessionTTL, s.log)
	go storageSyncRoutine(ctx, s.sessions, s.persistence, s.log)
}

// shutdown saves every loaded session and stops their gravity loops
func (s *services) shutdown() {
	s.game.Close()
	if err := s.sessions.SaveAllSessions(); err != nil {
		s.log.WithError(err).Warn("failed to save sessions on shutdown")
	}
	s.sessions.CloseAll()
}

// handler combines the REST API with the /mcp endpoint
func (s *services) handler(baseURL string) http.Handler {
	apiServer := api.NewServer(s.game, s.hub,
		api.WithLogger(s.log),
		api.WithMetricsHandler(metrics.Handler(s.registry)),
	)

	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// runHTTPServer serves until ctx is cancelled. If ngrok is enabled (via
// flag or environment), it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, s *services) {
	log := s.log
	addr := fmt.Sprintf("%s:%d", *host, *port)
	mainRouter := s.handler(fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.WithFields(logrus.Fields{
			"rest":      fmt.Sprintf("http://%s/api", addr),
			"websocket": fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp":       fmt.Sprintf("http://%s/mcp", addr),
			"metrics":   fmt.Sprintf("http://%s/metrics", addr),
		}).Infof("HTTP server listening on %s", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	if ngrokRequested() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, mainRouter, log)
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}

	wg.Wait()
}

// ngrokRequested checks the flag, then NGROK_ENABLED
func ngrokRequested() bool {
	if *ngrokEnabled {
		return true
	}
	v := os.Getenv("NGROK_ENABLED")
	return v == "true" || v == "1"
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled
func runNgrok(ctx context.Context, handler http.Handler, log logrus.FieldLogger) {
	// Support both naming conventions
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = envOr("NGROK_AUTHTOKEN", os.Getenv("NGROK_AUTH_TOKEN"))
	}
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	domain := *ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.WithField("domain", domain).Info("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	log.Info("starting ngrok tunnel")
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.WithError(err).Error("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.WithError(err).Warn("failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	log.WithFields(logrus.Fields{
		"rest":      ngrokURL + "/api",
		"websocket": ngrokURL + "/ws?session=<session_id>",
		"mcp":       ngrokURL + "/mcp",
	}).Infof("ngrok tunnel established: %s", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.WithError(err).Warn("ngrok server error")
	}
	log.Info("ngrok tunnel closed")
}

// sessionCleanupRoutine periodically saves and unloads sessions that have
// not been accessed within ttl.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, ttl time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(ttl); removed > 0 {
				log.WithField("count", removed).Info("cleaned up expired sessions")
			}
		}
	}
}

// storageSyncRoutine removes sessions from memory when their saved copy is
// deleted outside the server.
func storageSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, log logrus.FieldLogger) {
	if persistence == nil {
		return
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := pruneOrphans(manager, persistence, log); pruned > 0 {
				log.WithField("count", pruned).Info("storage sync pruned orphaned sessions")
			}
		}
	}
}

func pruneOrphans(manager *session.Manager, persistence session.SessionPersistence, log logrus.FieldLogger) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.WithField("session", sess.ID).Info("pruned session from memory (save deleted)")
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:<port>; if unavailable, it
// starts an internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, s *services) {
	log := s.log
	externalURL := fmt.Sprintf("http://localhost:%d", *port)
	baseURL := externalURL

	log.WithField("url", externalURL).Info("checking for external API server")

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/healthz")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Info("external API server found, using it for MCP")
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.WithError(err).Fatal("failed to get available port")
		}

		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		log.WithField("addr", listener.Addr().String()).Info("starting internal HTTP server for MCP stdio")

		httpServer := &http.Server{Handler: s.handler(baseURL)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("internal HTTP server error")
			}
		}()
		defer httpServer.Close()
	}

	mcpClient := mcp.NewClient(baseURL)

	log.WithField("api", baseURL).Info("MCP stdio server ready")

	done := make(chan error, 1)
	go func() { done <- server.ServeStdio(mcpClient.GetMCPServer()) }()

	select {
	case err := <-done:
		if err != nil {
			log.WithError(err).Error("MCP stdio server error")
		}
	case <-ctx.Done():
	}
}
