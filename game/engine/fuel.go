package engine

// FuelTank tracks the robot's fuel. The level never drops below zero or
// rises above capacity. It is not safe for concurrent use on its own; the
// owning Robot guards it.
type FuelTank struct {
	level    int
	capacity int
}

// NewFuelTank creates a tank with the given level, clamped to capacity
func NewFuelTank(level, capacity int) *FuelTank {
	t := &FuelTank{capacity: capacity}
	t.set(level)
	return t
}

// FuelLevel returns the remaining fuel
func (t *FuelTank) FuelLevel() int {
	return t.level
}

// Capacity returns the tank size
func (t *FuelTank) Capacity() int {
	return t.capacity
}

// Burn removes amount of fuel, stopping at empty
func (t *FuelTank) Burn(amount int) {
	t.set(t.level - amount)
}

// Fill tops the tank up to capacity
func (t *FuelTank) Fill() {
	t.level = t.capacity
}

func (t *FuelTank) set(level int) {
	switch {
	case level < 0:
		t.level = 0
	case level > t.capacity:
		t.level = t.capacity
	default:
		t.level = level
	}
}
