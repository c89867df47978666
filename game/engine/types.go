package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Direction is one of the four cardinal moves available to the robot
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Directions lists every cardinal direction in a stable order
var Directions = []Direction{Up, Down, Left, Right}

const (
	// DefaultUnit is the side of one grid square.
	DefaultUnit = 25

	// GroundLevelFactor relates the unit to the ground level (GroundLevel = Unit * 8).
	GroundLevelFactor = 8

	// Bottom is the y-coordinate of the bottom of the map.
	Bottom = 5000

	// BottomLimit is the lowest y the robot may move down from. It is a fixed
	// value derived from Bottom and the default unit and does not follow SetUnit.
	BottomLimit = Bottom + 7*DefaultUnit

	// DefaultWorldWidth is the width of the world in pixels.
	DefaultWorldWidth = 800

	// StartingBalance is the bank balance of a fresh session.
	StartingBalance = 100

	// Validation limits for world configs
	MinUnit            = 5
	MaxUnit            = 200
	MaxFuelCapacity    = 100000
	MaxGeneratorRows   = 400
	DefaultGravityTick = 250
)

var (
	ErrInvalidDirection  = errors.New("invalid direction")
	ErrInvalidUnit       = errors.New("invalid unit")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownItem       = errors.New("unknown shop item")
	ErrNoPortal          = errors.New("portal not owned")
	ErrNothingToSell     = errors.New("nothing to sell")
)

// ParseDirection converts a user supplied string into a Direction
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Up, Down, Left, Right:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Delta returns the unit vector of the direction in screen coordinates (y grows downwards)
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

// ElementType is a kind of collectible with a fixed price
type ElementType struct {
	Name  string `json:"name" yaml:"name"`
	Price int    `json:"price" yaml:"price"`
}

// Element is a collectible lying at a grid-aligned location
type Element struct {
	Type     ElementType `json:"type"`
	Location Point       `json:"location"`
}

// DefaultElementTypes is the catalog used when a world config does not define one
var DefaultElementTypes = []ElementType{
	{Name: "coal", Price: 5},
	{Name: "iron", Price: 10},
	{Name: "copper", Price: 15},
	{Name: "silver", Price: 25},
	{Name: "gold", Price: 50},
	{Name: "ruby", Price: 75},
	{Name: "diamond", Price: 100},
}
