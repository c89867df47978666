// Package service provides the business logic layer for the mining game.
//
// The service package implements:
//   - Multi-session game management
//   - Move and dig processing, single and bulk
//   - The shop, the bank and the portal
//   - Forwarding robot events to connected viewers
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, persistence and lifecycle.
// ConfigManager loads and lists world configurations.
// Broadcaster pushes events and world snapshots to viewers (the websocket hub).
//
// Architecture:
//
// The service layer sits between the transports (HTTP, WebSocket, MCP) and
// the game engine. Each session owns its own engine.GameWorld; the world's
// mutex serializes moves, gravity ticks and portal use, so the service keeps
// no global lock.
//
// Usage:
//
//	sessionMgr := session.NewManager(log)
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr,
//		service.WithBroadcaster(hub),
//		service.WithMetrics(recorder),
//	)
//
//	info, err := gameService.CreateSession(ctx, "deep")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.Move(ctx, info.ID, "down")
//
// Persistence:
//
// Progress is saved automatically after a move that digs a new hole and after
// buying the portal. Save forces a write at any time.
package service
