package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
)

// MaxBulkMoves caps the number of moves accepted by one bulk request
const MaxBulkMoves = 200

// Event types
const (
	EventMove             = "move"
	EventBlocked          = "blocked"
	EventDug              = "dug"
	EventCollected        = "element_collected"
	EventGravity          = "gravity"
	EventInfiniteDynamite = "infinite_dynamite"
	EventPurchase         = "purchase"
	EventSale             = "sale"
	EventPortal           = "portal"
	EventSaved            = "saved"
	EventRobotPrefix      = "robot_"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string                `json:"id"`
	ConfigName     string                `json:"config_name"`
	CreatedAt      time.Time             `json:"created_at"`
	LastAccessedAt time.Time             `json:"last_accessed_at"`
	World          *engine.WorldSnapshot `json:"world"`
	WorldConfig    *engine.WorldConfig   `json:"world_config,omitempty"`
}

// MoveResult contains the result of a move operation
type MoveResult struct {
	Success   bool                  `json:"success"`
	Direction string                `json:"direction"`
	Reason    string                `json:"reason,omitempty"`
	From      engine.Point          `json:"from"`
	To        engine.Point          `json:"to"`
	Dug       bool                  `json:"dug"`
	Collected *engine.Element       `json:"collected,omitempty"`
	Message   string                `json:"message"`
	Events    []GameEvent           `json:"events,omitempty"`
	World     *engine.WorldSnapshot `json:"world"`
}

// BulkMoveResult contains the result of multiple moves
type BulkMoveResult struct {
	RequestedMoves int                   `json:"requested_moves"`
	MovesExecuted  int                   `json:"moves_executed"`
	Success        bool                  `json:"success"`
	Truncated      bool                  `json:"truncated,omitempty"`
	Limit          int                   `json:"limit,omitempty"`
	StoppedOnMove  int                   `json:"stopped_on_move,omitempty"` // 1-based index of the move that failed
	StopReasonCode string                `json:"stop_reason_code,omitempty"`
	StartPos       engine.Point          `json:"start_pos"`
	EndPos         engine.Point          `json:"end_pos"`
	StartFuel      int                   `json:"start_fuel"`
	EndFuel        int                   `json:"end_fuel"`
	BalanceDelta   int                   `json:"balance_delta"`
	Steps          []StepInfo            `json:"steps,omitempty"`
	Events         []GameEvent           `json:"events"`
	World          *engine.WorldSnapshot `json:"world"`
}

// StepInfo is a compact record for each executed move in a bulk call
type StepInfo struct {
	Idx        int          `json:"idx"`
	Dir        string       `json:"dir"`
	From       engine.Point `json:"from"`
	To         engine.Point `json:"to"`
	FuelBefore int          `json:"fuel_before"`
	FuelAfter  int          `json:"fuel_after"`
	Dug        bool         `json:"dug,omitempty"`
	Collected  string       `json:"collected,omitempty"`
}

// GameEvent represents something that happened in a session
type GameEvent struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	Position  *engine.Point `json:"position,omitempty"`
	Data      interface{}   `json:"data,omitempty"`
}

// NewEvent stamps an event with a fresh ID and the current time
func NewEvent(eventType, message string) GameEvent {
	return GameEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// At sets the event position
func (e GameEvent) At(p engine.Point) GameEvent {
	e.Position = &p
	return e
}

// BankInfo describes a session's money and shop
type BankInfo struct {
	Balance          int            `json:"balance"`
	Prices           map[string]int `json:"prices"`
	Dynamite         int            `json:"dynamite"`
	InfiniteDynamite bool           `json:"infinite_dynamite"`
	HasPortal        bool           `json:"has_portal"`
}

// ShopResult is the outcome of a purchase or sale
type ShopResult struct {
	Receipt engine.Receipt        `json:"receipt"`
	Event   GameEvent             `json:"event"`
	World   *engine.WorldSnapshot `json:"world"`
}

// ConfigInfo provides information about a world configuration
type ConfigInfo struct {
	Filename     string `json:"filename"`
	ConfigID     string `json:"config_id"` // The identifier to use for session creation
	Name         string `json:"name"`      // Display name
	Description  string `json:"description"`
	Unit         int    `json:"unit"`
	WorldWidth   int    `json:"world_width"`
	FuelCapacity int    `json:"fuel_capacity"`
	Gravity      bool   `json:"gravity"`
	Generated    bool   `json:"generated"`
}
