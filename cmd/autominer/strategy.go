package main

import "github.com/wricardo/mcp-training/mininggame/game/engine"

// Strategy greedily digs toward the nearest element. It remembers rejected
// moves and how often it has stood on each cell, so a robot boxed in by rocks
// walks around them instead of bouncing between two cells.
type Strategy struct {
	visited map[engine.Point]int
	blocked map[engine.Point]map[engine.Direction]bool

	target    engine.Point
	hasTarget bool
}

// NewStrategy creates a strategy with no history
func NewStrategy() *Strategy {
	return &Strategy{
		visited: make(map[engine.Point]int),
		blocked: make(map[engine.Point]map[engine.Direction]bool),
	}
}

// Target returns the element the strategy is heading for
func (s *Strategy) Target() (engine.Point, bool) {
	return s.target, s.hasTarget
}

// Blocked records that the server rejected d from p
func (s *Strategy) Blocked(p engine.Point, d engine.Direction) {
	if s.blocked[p] == nil {
		s.blocked[p] = make(map[engine.Direction]bool)
	}
	s.blocked[p][d] = true
}

// NextMove picks the next direction. ok is false once no element is left or
// every direction from the robot is known to fail.
func (s *Strategy) NextMove(w *engine.WorldSnapshot) (d engine.Direction, ok bool) {
	pos := w.Robot.Location
	s.visited[pos]++

	nearest, _, found := engine.NearestElement(pos, w.Elements)
	if !found {
		s.hasTarget = false
		return "", false
	}
	s.target, s.hasTarget = nearest.Location, true

	unit := w.Geometry.Unit
	rocks := make(map[engine.Cell]bool, len(w.Rocks))
	for _, c := range w.Rocks {
		rocks[c] = true
	}

	best := -1
	for _, dir := range engine.Directions {
		if s.blocked[pos][dir] {
			continue
		}
		dx, dy := dir.Delta()
		next := pos.Add(dx*unit, dy*unit)
		if !inside(w, next) || rocks[engine.NewCell(next, unit)] {
			continue
		}

		// Distance dominates; revisits only break ties and escape pockets
		score := engine.ManhattanDistance(next, s.target)/unit*4 + s.visited[next]
		if best == -1 || score < best {
			best, d = score, dir
		}
	}
	return d, best != -1
}

func inside(w *engine.WorldSnapshot, p engine.Point) bool {
	return p.X >= 0 && p.X <= w.WorldWidth-w.Geometry.Unit && p.Y >= 0 && p.Y <= engine.BottomLimit
}
