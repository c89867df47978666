package engine

import "sync"

// Portal is the one-way teleport back to the surface. Ownership is the
// only portal state that survives a reload.
type Portal struct {
	mu    sync.RWMutex
	owned bool
	exit  Point
	uses  int
}

// NewPortal creates an unowned portal whose exit is the given point
func NewPortal(exit Point) *Portal {
	return &Portal{exit: exit}
}

// Owned reports whether the player has bought the portal
func (p *Portal) Owned() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owned
}

// Grant marks the portal as owned
func (p *Portal) Grant() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owned = true
}

// Exit returns where the portal drops the robot
func (p *Portal) Exit() Point {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exit
}

// Uses returns how many times the portal has been taken this session
func (p *Portal) Uses() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.uses
}

func (p *Portal) recordUse() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uses++
}
