// Package session provides session management for the mining game.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Session lifecycle management, including closing each session's world
//   - Saving and restoring progress through a SessionPersistence
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// Each service.Session owns an engine.GameWorld whose gravity loop runs until
// the session is deleted, expires or the manager is closed.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs unless the caller picks one. Lookups are
// case-insensitive.
//
// Persistence:
//
// Only dug holes and portal ownership are saved. On reload the world is
// rebuilt from its config, so rocks, elements, the robot and the bank start
// over. Two backends exist:
//   - FilePersistence writes one JSON file per session
//   - GDataPersistence uses per-user save slots (github.com/quasilyte/gdata)
//
// Usage:
//
//	persistence, _ := session.NewFilePersistence("sessions", configMgr, log)
//	manager := session.NewManagerWithPersistence(persistence, log)
//	defer manager.CloseAll()
//
//	sess, err := manager.Create("", "default", configMgr.GetDefault())
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Cleanup:
//
// CleanupExpiredSessions saves and unloads idle sessions; Get loads them back
// on demand.
package session
