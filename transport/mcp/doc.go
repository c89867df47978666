// Package mcp exposes the mining game to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a REST request against the
// api package, and the JSON response is rendered as text an agent can read.
//
// MCP Tools:
//   - create_session, get_session, list_sessions
//   - world_state: robot, bank and a 3x3 local view around the robot
//   - can_move: move verdict without side effects
//   - move, bulk_move: movement and digging
//   - set_gravity, set_infinite_dynamite
//   - bank, buy, sell, use_portal
//   - save_session, list_configs
//   - describe_cell: what occupies one grid cell
//   - game_instructions
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: the main command mounts the MCP server on /mcp
package mcp
