package engine

import "fmt"

// Point is a position in world pixels
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns p translated by (dx, dy)
func (p Point) Add(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// String implements fmt.Stringer
func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Cell is a Size x Size square anchored at its top-left origin.
// Two cells are equal only when origin and size both match.
type Cell struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Size int `json:"size"`
}

// NewCell wraps p into a cell of the given unit
func NewCell(p Point, unit int) Cell {
	return Cell{X: p.X, Y: p.Y, Size: unit}
}

// Origin returns the top-left corner of the cell
func (c Cell) Origin() Point {
	return Point{X: c.X, Y: c.Y}
}

// BottomEdge returns the y-coordinate of the bottom edge
func (c Cell) BottomEdge() int {
	return c.Y + c.Size
}

// Geometry holds the unit size and the ground level derived from it.
// A Geometry value is immutable; unit changes replace the whole record.
type Geometry struct {
	Unit        int `json:"unit"`
	GroundLevel int `json:"ground_level"`
}

// NewGeometry derives the ground level from the unit
func NewGeometry(unit int) Geometry {
	return Geometry{Unit: unit, GroundLevel: unit * GroundLevelFactor}
}

// Aligned reports whether p lies on the unit grid
func (g Geometry) Aligned(p Point) bool {
	return g.Unit > 0 && p.X%g.Unit == 0 && p.Y%g.Unit == 0
}
