package engine

import "sync"

type edgeKey struct {
	x, bottom int
}

// Registry stores the holes, rocks and elements of a world.
//
// The three collections keep insertion order and tolerate duplicates.
// Cell-keyed indexes answer exact-match queries (rock collision, hole
// lookups) without scanning. The accessors return copies; every mutation
// must go through the registry so that collecting an element always
// credits the bank.
type Registry struct {
	mu       sync.RWMutex
	holes    []Cell
	rocks    []Cell
	elements []Element

	rockIndex   map[Cell]int
	holeIndex   map[Cell]int
	holeBottoms map[edgeKey]int

	bank *BankAccount
}

// NewRegistry creates an empty registry that credits collections to bank
func NewRegistry(bank *BankAccount) *Registry {
	return &Registry{
		rockIndex:   make(map[Cell]int),
		holeIndex:   make(map[Cell]int),
		holeBottoms: make(map[edgeKey]int),
		bank:        bank,
	}
}

// AddHole records a dug cell
func (r *Registry) AddHole(c Cell) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holes = append(r.holes, c)
	r.holeIndex[c]++
	r.holeBottoms[edgeKey{x: c.X, bottom: c.BottomEdge()}]++
}

// AddRock records an obstacle. Placing two rocks on one cell is a caller error.
func (r *Registry) AddRock(c Cell) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rocks = append(r.rocks, c)
	r.rockIndex[c]++
}

// AddElement places a collectible
func (r *Registry) AddElement(e Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements = append(r.elements, e)
}

// RemoveElement collects the first element located exactly at p.
// The price is deposited and the element removed in one step. When nothing
// lies at p it returns false and changes nothing.
func (r *Registry) RemoveElement(p Point) (Element, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.elements {
		if e.Location != p {
			continue
		}
		if r.bank != nil {
			r.bank.Deposit(e.Type.Price)
		}
		r.elements = append(r.elements[:i:i], r.elements[i+1:]...)
		return e, true
	}
	return Element{}, false
}

// RockAt reports whether a rock occupies exactly c
func (r *Registry) RockAt(c Cell) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rockIndex[c] > 0
}

// HoleAt reports whether a hole occupies exactly c
func (r *Registry) HoleAt(c Cell) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.holeIndex[c] > 0
}

// HoleEndingAt reports whether a hole at column x has its bottom edge at y
func (r *Registry) HoleEndingAt(x, y int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.holeBottoms[edgeKey{x: x, bottom: y}] > 0
}

// ElementAt returns the first element at p without removing it
func (r *Registry) ElementAt(p Point) (Element, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.elements {
		if e.Location == p {
			return e, true
		}
	}
	return Element{}, false
}

// Holes returns a copy of the holes in insertion order
func (r *Registry) Holes() []Cell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Cell(nil), r.holes...)
}

// Rocks returns a copy of the rocks in insertion order
func (r *Registry) Rocks() []Cell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Cell(nil), r.rocks...)
}

// Elements returns a copy of the elements in insertion order
func (r *Registry) Elements() []Element {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Element(nil), r.elements...)
}

// Counts returns the number of holes, rocks and elements
func (r *Registry) Counts() (holes, rocks, elements int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.holes), len(r.rocks), len(r.elements)
}
