// Package websocket pushes live session updates to viewers.
//
// A central Hub owns every connection. Viewers attach to one session with
// /ws?session=<id> and only listen: they receive the current world on
// connect, then world snapshots after each request that changes the world,
// and every game event the service publishes (moves, digs, purchases, robot
// changes from the gravity loop).
//
// Outgoing messages are JSON:
//
//	{"id": "...", "session_id": "ab12", "event": "world_update", "timestamp": "...", "world": {...}}
//	{"id": "...", "session_id": "ab12", "event": "robot_location", "timestamp": "...", "data": {...}}
//
// Hub implements service.Broadcaster. Broadcasting never blocks the caller;
// when the queue is full the message is dropped, and clients that fall
// behind are disconnected.
//
// Usage:
//
//	hub := websocket.NewHub(log)
//	go hub.Run(ctx)
//	svc := service.NewGameService(sessions, configs, service.WithBroadcaster(hub))
package websocket
