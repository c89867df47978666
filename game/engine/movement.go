package engine

// Reasons reported by CheckMove
const (
	ReasonOK               = ""
	ReasonInvalidDirection = "invalid_direction"
	ReasonOutOfBounds      = "out_of_bounds"
	ReasonRock             = "rock"
	ReasonOutOfFuel        = "out_of_fuel"
)

// RockLookup answers exact-cell rock queries
type RockLookup interface {
	RockAt(c Cell) bool
}

// LegalityInput is everything CheckMove looks at
type LegalityInput struct {
	Geometry   Geometry
	WorldWidth int
	Robot      Point
	Fuel       int
	Rocks      RockLookup
}

// Verdict is the outcome of a legality check
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Target  Point  `json:"target"`
}

// CheckMove decides whether the robot may move one unit in direction d.
// Bounds, rock collision and fuel must all pass. It has no side effects.
func CheckMove(in LegalityInput, d Direction) Verdict {
	unit := in.Geometry.Unit
	pos := in.Robot

	var inBounds bool
	switch d {
	case Up:
		inBounds = pos.Y > 0
	case Down:
		inBounds = pos.Y < BottomLimit
	case Left:
		inBounds = pos.X > 0
	case Right:
		inBounds = pos.X < in.WorldWidth-unit
	default:
		return Verdict{Reason: ReasonInvalidDirection, Target: pos}
	}

	dx, dy := d.Delta()
	target := pos.Add(dx*unit, dy*unit)
	v := Verdict{Target: target}

	switch {
	case !inBounds:
		v.Reason = ReasonOutOfBounds
	case in.Rocks != nil && in.Rocks.RockAt(NewCell(target, unit)):
		v.Reason = ReasonRock
	case in.Fuel <= 0:
		v.Reason = ReasonOutOfFuel
	default:
		v.Allowed = true
	}
	return v
}

// HoleLookup answers the hole queries used by the vertical space checks
type HoleLookup interface {
	HoleAt(c Cell) bool
	HoleEndingAt(x, y int) bool
}

// SpaceAbove reports whether the robot at pos has open space above it:
// never at the ceiling, always within the ground strata, and deeper only
// when it stands at the top of a dug hole.
func SpaceAbove(g Geometry, pos Point, holes HoleLookup) bool {
	if pos.Y <= 0 {
		return false
	}
	if pos.Y <= g.GroundLevel {
		return true
	}
	return holes.HoleEndingAt(pos.X, pos.Y)
}

// SpaceBelow reports whether the robot at pos is unsupported: above the
// ground level it always falls, below it falls only into a dug hole.
func SpaceBelow(g Geometry, pos Point, holes HoleLookup) bool {
	if pos.Y < g.GroundLevel {
		return true
	}
	below := NewCell(pos.Add(0, g.Unit), g.Unit)
	return holes.HoleAt(below)
}
