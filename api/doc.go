// Package api provides the HTTP REST API for the mining game.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session ({"config_id": "deep"}, optional)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/unified - Sessions with their worlds (?sessionIds=a,b or ?configName=x)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session and its saved progress
//
// World:
//   - GET /api/sessions/{id}/world - Current world snapshot
//   - GET /api/sessions/{id}/can-move?direction=down - Move verdict without moving
//   - POST /api/sessions/{id}/move - {"direction": "down"}
//   - POST /api/sessions/{id}/bulk-move - {"moves": ["down", "down", "left"]}
//   - POST /api/sessions/{id}/gravity - {"enabled": true}
//   - POST /api/sessions/{id}/infinite-dynamite - {"enabled": true}
//
// Economy:
//   - GET /api/sessions/{id}/bank - Balance, prices and inventory
//   - POST /api/sessions/{id}/buy - {"item": "fuel|dynamite|portal"}
//   - POST /api/sessions/{id}/sell - {"item": "dynamite"}
//   - POST /api/sessions/{id}/portal - Teleport to the surface
//   - POST /api/sessions/{id}/save - Persist progress now
//
// Configuration:
//   - GET /api/configs - List world configurations
//   - GET /api/configs/{name} - Get one configuration
//   - POST /api/configs - Save a configuration
//
// Other:
//   - GET /ws?session={id} - WebSocket feed of world updates and events
//   - GET /healthz - Liveness
//   - GET /metrics - Prometheus metrics, when enabled
//
// A blocked move is not an HTTP error: the response carries success=false and
// a reason code (rock, out_of_fuel, out_of_bounds). Errors are JSON with a
// status derived from the underlying error:
//
//	{"error": "insufficient funds"}
//
//	404 unknown session or configuration
//	400 invalid direction, item or configuration
//	402 insufficient funds
//	409 portal already owned or missing, nothing to sell, duplicate session
//
// Usage:
//
//	server := api.NewServer(gameService, hub, api.WithLogger(log), api.WithMetricsHandler(metrics.Handler(reg)))
//	http.ListenAndServe(":8080", server)
package api
