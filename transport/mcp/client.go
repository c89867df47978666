package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
	"github.com/wricardo/mcp-training/mininggame/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Mining Robot Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Mining Robot Game - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Drive the mining robot (R) below the ground, dig through earth, collect
elements for credits and spend them on fuel, dynamite and a portal home.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: manage sessions
- world_state: robot, bank and surroundings
- can_move: check a move without making it
- move / bulk_move: move or dig - requires intent explanation
- set_gravity / set_infinite_dynamite: toggles
- bank / buy / sell / use_portal: economy
- save_session: persist dug holes and the portal now
- list_configs: available worlds
- describe_cell: what is at a grid position
- game_instructions: full rules

NOTE: The 'intent' parameter on move/bulk_move tools serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func sessionSchema(extra map[string]interface{}, required ...string) mcp.ToolInputSchema {
	props := map[string]interface{}{"session_id": sessionProp()}
	for k, v := range extra {
		props[k] = v
	}
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   append([]string{"session_id"}, required...),
	}
}

var directionProp = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"up", "down", "left", "right"},
	"description": "Direction to move",
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional world config",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the world config to use (optional, see list_configs)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: sessionSchema(nil),
	}, c.handleGetSession)

	// World
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "world_state",
		Description: "Get the robot, bank and the cells around the robot",
		InputSchema: sessionSchema(nil),
	}, c.handleWorldState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "can_move",
		Description: "Check whether a move is allowed without making it",
		InputSchema: sessionSchema(map[string]interface{}{"direction": directionProp}, "direction"),
	}, c.handleCanMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move",
		Description: "Move the robot one cell. Moving down below the ground digs a hole and collects any element there.",
		InputSchema: sessionSchema(map[string]interface{}{
			"direction": directionProp,
			"intent": map[string]interface{}{
				"type":        "string",
				"description": "Brief explanation of the intent behind this move (serves as a rubber duck to help explain your reasoning)",
			},
		}, "direction"),
	}, c.handleMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "bulk_move",
		Description: fmt.Sprintf("Execute up to %d moves in sequence, stopping at the first blocked move", service.MaxBulkMoves),
		InputSchema: sessionSchema(map[string]interface{}{
			"moves": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "string",
					"enum": []string{"up", "down", "left", "right"},
				},
				"description": "Array of moves",
			},
			"intent": map[string]interface{}{
				"type":        "string",
				"description": "Brief explanation of the intent behind this sequence of moves (serves as a rubber duck to help explain your reasoning)",
			},
		}, "moves"),
	}, c.handleBulkMove)

	enabledProp := map[string]interface{}{
		"enabled": map[string]interface{}{
			"type":        "boolean",
			"description": "Turn the setting on or off",
		},
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_gravity",
		Description: "Turn gravity on or off. With gravity on the robot falls into open space below it.",
		InputSchema: sessionSchema(enabledProp, "enabled"),
	}, c.handleSetGravity)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_infinite_dynamite",
		Description: "Turn infinite dynamite on or off",
		InputSchema: sessionSchema(enabledProp, "enabled"),
	}, c.handleSetInfiniteDynamite)

	// Economy
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "bank",
		Description: "Show balance, shop prices and inventory",
		InputSchema: sessionSchema(nil),
	}, c.handleBank)

	itemProp := map[string]interface{}{
		"item": map[string]interface{}{
			"type":        "string",
			"enum":        []string{engine.ItemFuel, engine.ItemDynamite, engine.ItemPortal},
			"description": "Shop item",
		},
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "buy",
		Description: "Buy fuel (fills the tank), one dynamite, or the portal",
		InputSchema: sessionSchema(itemProp, "item"),
	}, c.handleBuy)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "sell",
		Description: "Sell one dynamite back to the shop for half its price",
		InputSchema: sessionSchema(itemProp, "item"),
	}, c.handleSell)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "use_portal",
		Description: "Teleport the robot back to the surface (requires a purchased portal)",
		InputSchema: sessionSchema(nil),
	}, c.handleUsePortal)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "save_session",
		Description: "Persist the session's dug holes and portal ownership now",
		InputSchema: sessionSchema(nil),
	}, c.handleSave)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available world configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the rules of the game and tips for playing it",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe what occupies the grid cell at pixel coordinates (x, y)",
		InputSchema: sessionSchema(map[string]interface{}{
			"x": map[string]interface{}{"type": "integer", "description": "X in pixels (multiple of the unit)"},
			"y": map[string]interface{}{"type": "integer", "description": "Y in pixels (multiple of the unit)"},
		}, "x", "y"),
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}

func sessionPath(args map[string]interface{}, suffix string) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n", session.ID, session.ConfigName)
	if session.World != nil {
		result += "\n" + formatWorld(session.World)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s (Config: %s, Created: %s)", s.ID, s.ConfigName, s.CreatedAt.Format("15:04:05"))
		if s.World != nil {
			fmt.Fprintf(&b, " balance %d, depth %d", s.World.Balance, depth(s.World))
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleWorldState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/world")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var world engine.WorldSnapshot
	if err := c.apiCall(ctx, "GET", path, nil, &world); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatWorld(&world)), nil
}

func (c *Client) handleCanMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	direction, _ := args["direction"].(string)
	path, err := sessionPath(args, "/can-move?direction="+url.QueryEscape(direction))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var verdict engine.Verdict
	if err := c.apiCall(ctx, "GET", path, nil, &verdict); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if verdict.Allowed {
		return mcp.NewToolResultText(fmt.Sprintf("Yes: moving %s reaches %s", direction, verdict.Target)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("No: moving %s is blocked (%s)\n%s", direction, verdict.Reason, reasonHint(verdict.Reason))), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	direction, _ := args["direction"].(string)

	path, err := sessionPath(args, "/move")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", path, map[string]string{"direction": direction}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleBulkMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	movesRaw, _ := args["moves"].([]interface{})

	moves := make([]string, 0, len(movesRaw))
	for _, m := range movesRaw {
		if move, ok := m.(string); ok {
			moves = append(moves, move)
		}
	}

	path, err := sessionPath(args, "/bulk-move")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.BulkMoveResult
	if err := c.apiCall(ctx, "POST", path, map[string]interface{}{"moves": moves}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBulkMoveResult(sessionID, &result)), nil
}

func (c *Client) handleSetGravity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.toggle(ctx, request, "/gravity", "Gravity")
}

func (c *Client) handleSetInfiniteDynamite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.toggle(ctx, request, "/infinite-dynamite", "Infinite dynamite")
}

func (c *Client) toggle(ctx context.Context, request mcp.CallToolRequest, suffix, label string) (*mcp.CallToolResult, error) {
	args := arguments(request)
	enabled, ok := args["enabled"].(bool)
	if !ok {
		return mcp.NewToolResultError("enabled must be true or false"), nil
	}
	path, err := sessionPath(args, suffix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var world engine.WorldSnapshot
	if err := c.apiCall(ctx, "POST", path, map[string]bool{"enabled": enabled}, &world); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s %s\n\n%s", label, onOff(enabled), formatWorld(&world))), nil
}

func (c *Client) handleBank(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/bank")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var bank service.BankInfo
	if err := c.apiCall(ctx, "GET", path, nil, &bank); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBank(&bank)), nil
}

func (c *Client) handleBuy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.trade(ctx, request, "/buy", "Bought")
}

func (c *Client) handleSell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.trade(ctx, request, "/sell", "Sold")
}

func (c *Client) trade(ctx context.Context, request mcp.CallToolRequest, suffix, verb string) (*mcp.CallToolResult, error) {
	args := arguments(request)
	item, _ := args["item"].(string)
	path, err := sessionPath(args, suffix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.ShopResult
	if err := c.apiCall(ctx, "POST", path, map[string]string{"item": item}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("%s %s for %d credits. Balance: %d", verb, result.Receipt.Item, result.Receipt.Amount, result.Receipt.Balance)
	if result.World != nil {
		text += "\n\n" + formatWorld(result.World)
	}
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handleUsePortal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/portal")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var world engine.WorldSnapshot
	if err := c.apiCall(ctx, "POST", path, nil, &world); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Teleported to the surface.\n\n" + formatWorld(&world)), nil
}

func (c *Client) handleSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/save")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Message string `json:"message"`
	}
	if err := c.apiCall(ctx, "POST", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (%s)\n  %s\n  Unit: %d, Width: %d, Fuel: %d, Gravity: %s",
			config.ConfigID, config.Name, config.Description, config.Unit, config.WorldWidth, config.FuelCapacity, onOff(config.Gravity))
		if config.Generated {
			b.WriteString(", generated mine")
		}
		b.WriteString("\n\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Mining Robot Game - Complete Instructions

GAME OBJECTIVE:
Dig down from the surface, collect elements and grow your balance without
running out of fuel underground.

COORDINATES:
• Positions are pixels; the robot moves one unit (usually 25) per step
• y grows downwards; y=0 is the sky ceiling
• The ground level is 8 units down (200 with unit 25); the robot moves freely above it

MOVEMENT AND DIGGING:
• Every move burns fuel; with an empty tank the robot cannot move
• Moving into unexplored earth below the ground digs a hole there
• Digging onto an element collects it and credits its price to the bank
• Rocks (#) cannot be entered
• The world is bounded left, right, at the top and at the bottom

GRAVITY:
• With gravity on, the robot falls one unit per tick while there is open space below it
• Above the ground it always falls; underground it only falls into dug holes
• Climbing up underground is possible only through a dug hole

SHOP:
• fuel: refill the tank
• dynamite: one stick
• portal: a one-time purchase that lets you teleport back to the surface any time
• Selling dynamite refunds half its price
• Purchases that the balance cannot cover are refused

LOCAL VIEW LEGEND:
• R = robot, # = rock, * = element, o = dug hole
• ~ = open air above ground, = = solid earth, x = outside the world

STRATEGY:
• Check can_move before committing to long bulk moves
• Keep enough fuel for the way back, or buy the portal early
• Use describe_cell to inspect a cell before digging into it
• Use bulk_move for straight shafts; it stops at the first blocked move

Good luck, miner!`

	return mcp.NewToolResultText(instructions), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	xf, okX := args["x"].(float64)
	yf, okY := args["y"].(float64)
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required"), nil
	}
	path, err := sessionPath(args, "/world")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var world engine.WorldSnapshot
	if err := c.apiCall(ctx, "GET", path, nil, &world); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p := engine.Point{X: int(xf), Y: int(yf)}
	return mcp.NewToolResultText(describeCell(&world, p)), nil
}

// Formatting

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func owned(b bool) string {
	if b {
		return "owned"
	}
	return "not owned"
}

// depth is the number of units the robot is below the ground
func depth(w *engine.WorldSnapshot) int {
	if w.Geometry.Unit <= 0 || w.Robot.Location.Y <= w.Geometry.GroundLevel {
		return 0
	}
	return (w.Robot.Location.Y - w.Geometry.GroundLevel) / w.Geometry.Unit
}

func reasonHint(reason string) string {
	switch reason {
	case engine.ReasonRock:
		return "A rock occupies the target cell; go around it."
	case engine.ReasonOutOfFuel:
		return "The tank is empty. Buy fuel or use the portal."
	case engine.ReasonOutOfBounds:
		return "The target is outside the world."
	case engine.ReasonInvalidDirection:
		return "Use up, down, left or right."
	}
	return ""
}

func formatSessionInfo(session *service.SessionInfo) string {
	result := fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\nLast accessed: %s\n",
		session.ID, session.ConfigName,
		session.CreatedAt.Format(time.RFC3339), session.LastAccessedAt.Format(time.RFC3339))
	if session.World != nil {
		result += "\n" + formatWorld(session.World)
	}
	return result
}

func formatWorld(w *engine.WorldSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "World: %s (unit %d, ground at y=%d, width %d)\n", w.Name, w.Geometry.Unit, w.Geometry.GroundLevel, w.WorldWidth)
	fmt.Fprintf(&b, "Robot: %s, depth %d\n", w.Robot.Location, depth(w))
	fmt.Fprintf(&b, "Fuel: %d/%d\n", w.Robot.Fuel, w.Robot.FuelCapacity)

	dynamite := fmt.Sprintf("%d", w.Robot.Dynamite)
	if w.InfiniteDynamite {
		dynamite = "infinite"
	}
	fmt.Fprintf(&b, "Balance: %d credits, Dynamite: %s, Portal: %s\n", w.Balance, dynamite, owned(w.HasPortal))
	fmt.Fprintf(&b, "Gravity: %s, Holes dug: %d, Elements left: %d\n", onOff(w.Gravity), len(w.Holes), len(w.Elements))
	if w.SpaceBelow && w.Gravity {
		b.WriteString("WARNING: open space below, the robot will fall\n")
	}
	if w.Robot.Fuel == 0 {
		b.WriteString("WARNING: out of fuel\n")
	}

	b.WriteString("\nLocal view (3x3):\n")
	b.WriteString(formatLocal3x3(w))
	return b.String()
}

func formatLocal3x3(w *engine.WorldSnapshot) string {
	unit := w.Geometry.Unit
	pos := w.Robot.Location
	var rows []string
	for dy := -1; dy <= 1; dy++ {
		var row strings.Builder
		for dx := -1; dx <= 1; dx++ {
			row.WriteString(cellChar(w, pos.Add(dx*unit, dy*unit)))
		}
		rows = append(rows, row.String())
	}
	return strings.Join(rows, "\n") + "\n"
}

// cellChar maps what occupies p to its local view character
func cellChar(w *engine.WorldSnapshot, p engine.Point) string {
	unit := w.Geometry.Unit
	switch {
	case p == w.Robot.Location:
		return "R"
	case p.X < 0 || p.Y < 0 || p.X > w.WorldWidth-unit || p.Y > engine.BottomLimit:
		return "x"
	}
	cell := engine.NewCell(p, unit)
	for _, r := range w.Rocks {
		if r == cell {
			return "#"
		}
	}
	for _, e := range w.Elements {
		if e.Location == p {
			return "*"
		}
	}
	for _, h := range w.Holes {
		if h == cell {
			return "o"
		}
	}
	if p.Y < w.Geometry.GroundLevel {
		return "~"
	}
	return "="
}

func describeCell(w *engine.WorldSnapshot, p engine.Point) string {
	unit := w.Geometry.Unit
	if !w.Geometry.Aligned(p) {
		return fmt.Sprintf("%s is not on the grid; coordinates must be multiples of %d", p, unit)
	}

	header := fmt.Sprintf("Cell %s: ", p)
	switch cellChar(w, p) {
	case "R":
		return header + "the robot is here"
	case "x":
		return header + "outside the world"
	case "#":
		return header + "rock, impassable"
	case "*":
		for _, e := range w.Elements {
			if e.Location == p {
				return header + fmt.Sprintf("%s worth %d credits, dig into it to collect", e.Type.Name, e.Type.Price)
			}
		}
	case "o":
		return header + "dug hole, free to move through"
	case "~":
		return header + "open air above the ground"
	}
	return header + "solid earth, moving here digs a hole"
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "Moved %s: %s -> %s\n", result.Direction, result.From, result.To)
		if result.Dug {
			b.WriteString("Dug a new hole\n")
		}
		if result.Collected != nil {
			fmt.Fprintf(&b, "Collected %s (+%d credits)\n", result.Collected.Type.Name, result.Collected.Type.Price)
		}
	} else {
		fmt.Fprintf(&b, "Move %s blocked: %s\n", result.Direction, result.Reason)
		if hint := reasonHint(result.Reason); hint != "" {
			b.WriteString(hint + "\n")
		}
	}
	if result.Message != "" {
		b.WriteString(result.Message + "\n")
	}
	if result.World != nil {
		b.WriteString("\n" + formatWorld(result.World))
	}
	return b.String()
}

func formatBulkMoveResult(sessionID string, result *service.BulkMoveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s: executed %d of %d moves\n", sessionID, result.MovesExecuted, result.RequestedMoves)
	if result.Truncated {
		fmt.Fprintf(&b, "Request truncated to %d moves\n", result.Limit)
	}
	if result.StopReasonCode != "" {
		fmt.Fprintf(&b, "Stopped on move %d: %s\n", result.StoppedOnMove, result.StopReasonCode)
		if hint := reasonHint(result.StopReasonCode); hint != "" {
			b.WriteString(hint + "\n")
		}
	}
	fmt.Fprintf(&b, "Position: %s -> %s\n", result.StartPos, result.EndPos)
	fmt.Fprintf(&b, "Fuel: %d -> %d\n", result.StartFuel, result.EndFuel)
	if result.BalanceDelta != 0 {
		fmt.Fprintf(&b, "Credits earned: %+d\n", result.BalanceDelta)
	}

	// Only the last few steps, long shafts are repetitive
	steps := result.Steps
	if len(steps) > 10 {
		fmt.Fprintf(&b, "... %d earlier steps\n", len(steps)-10)
		steps = steps[len(steps)-10:]
	}
	for _, s := range steps {
		fmt.Fprintf(&b, "  %d. %s %s -> %s fuel %d", s.Idx, s.Dir, s.From, s.To, s.FuelAfter)
		if s.Dug {
			b.WriteString(" dug")
		}
		if s.Collected != "" {
			b.WriteString(" collected " + s.Collected)
		}
		b.WriteString("\n")
	}

	if result.World != nil {
		b.WriteString("\n" + formatWorld(result.World))
	}
	return b.String()
}

func formatBank(bank *service.BankInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Balance: %d credits\n", bank.Balance)
	if bank.InfiniteDynamite {
		b.WriteString("Dynamite: infinite\n")
	} else {
		fmt.Fprintf(&b, "Dynamite: %d\n", bank.Dynamite)
	}
	fmt.Fprintf(&b, "Portal: %s\n\nPrices:\n", owned(bank.HasPortal))
	for _, item := range []string{engine.ItemFuel, engine.ItemDynamite, engine.ItemPortal} {
		if price, ok := bank.Prices[item]; ok {
			fmt.Fprintf(&b, "  %s: %d\n", item, price)
		}
	}
	return b.String()
}
