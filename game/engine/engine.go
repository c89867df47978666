package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Engine provides the main interface for world operations
type Engine interface {
	// Grid
	Geometry() Geometry
	SetUnit(unit int) error
	WorldWidth() int

	// Entities
	AddHole(p Point)
	AddRock(p Point)
	AddElement(e Element)
	RemoveElement(p Point) (Element, bool)
	Holes() []Cell
	Rocks() []Cell
	Elements() []Element

	// Actors and economy
	Robot() *Robot
	Bank() *BankAccount
	Shop() *Shop
	Portal() *Portal

	// Movement
	CanMove(d Direction) bool
	CheckMove(d Direction) Verdict
	MoveRobot(d Direction)
	TryMove(d Direction) Verdict
	Dig(d Direction) DigResult
	IsSpaceAboveRobot() bool
	IsSpaceBelowRobot() bool

	// Gravity
	ApplyGravity() bool
	SetGravity(on bool)
	IsGravity() bool

	// Flags
	SetInfiniteDynamite(on bool)
	IsInfiniteDynamite() bool
	FirstStep() bool

	UsePortal() error

	Snapshot() WorldSnapshot
	Progress() Progress
	RestoreProgress(p Progress)
	Close()
}

// DigResult is the outcome of a dig action
type DigResult struct {
	Verdict   Verdict  `json:"verdict"`
	Dug       bool     `json:"dug"`
	Collected *Element `json:"collected,omitempty"`
}

// Progress is the part of a world that survives a save and reload
type Progress struct {
	Holes     []Cell `json:"holes"`
	HasPortal bool   `json:"has_portal"`
}

// RobotState is the robot part of a snapshot
type RobotState struct {
	Location     Point `json:"location"`
	Fuel         int   `json:"fuel"`
	FuelCapacity int   `json:"fuel_capacity"`
	Dynamite     int   `json:"dynamite"`
}

// WorldSnapshot is a point-in-time copy of everything a viewer draws
type WorldSnapshot struct {
	Name             string     `json:"name"`
	Geometry         Geometry   `json:"geometry"`
	WorldWidth       int        `json:"world_width"`
	Bottom           int        `json:"bottom"`
	Robot            RobotState `json:"robot"`
	Balance          int        `json:"balance"`
	Holes            []Cell     `json:"holes"`
	Rocks            []Cell     `json:"rocks"`
	Elements         []Element  `json:"elements"`
	Gravity          bool       `json:"gravity"`
	InfiniteDynamite bool       `json:"infinite_dynamite"`
	HasPortal        bool       `json:"has_portal"`
	FirstStep        bool       `json:"first_step"`
	SpaceAbove       bool       `json:"space_above"`
	SpaceBelow       bool       `json:"space_below"`
}

// GameWorld implements Engine for a single session.
//
// mu serializes every mutation of the robot position so that request
// handlers and the gravity loop never interleave a check with someone
// else's move. Read-only queries do not take it.
type GameWorld struct {
	name  string
	geom  atomic.Pointer[Geometry]
	width int
	start Point

	registry *Registry
	robot    *Robot
	bank     *BankAccount
	portal   *Portal
	shop     *Shop
	gravity  *Gravity

	mu        sync.Mutex
	infinite  atomic.Bool
	firstStep atomic.Bool
	closed    atomic.Bool

	log logrus.FieldLogger
}

// NewWorld builds a world from a validated config. Gravity starts
// running if the config enables it.
func NewWorld(config *WorldConfig, log logrus.FieldLogger) (*GameWorld, error) {
	if config == nil {
		config = DefaultWorldConfig()
	}
	if err := ValidateWorldConfig(config); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	bank := NewBankAccount(config.StartingBalance)
	robot := NewRobot(config.Start, config.StartingFuel, config.FuelCapacity, config.FuelPerMove)
	for i := 0; i < config.StartingDynamite; i++ {
		robot.AddDynamite()
	}

	w := &GameWorld{
		name:     config.Name,
		width:    config.WorldWidth,
		start:    config.Start,
		registry: NewRegistry(bank),
		robot:    robot,
		bank:     bank,
		portal:   NewPortal(config.Start),
		log:      log.WithField("world", config.Name),
	}
	geom := NewGeometry(config.Unit)
	w.geom.Store(&geom)
	w.shop = NewShop(config.ShopPrices, bank, robot, w.portal, w.infinite.Load)
	w.gravity = NewGravity(time.Duration(config.GravityIntervalMS)*time.Millisecond, w.applyGravity, w.log)

	rocks, elements := config.Generate()
	for _, p := range rocks {
		w.AddRock(p)
	}
	for _, e := range elements {
		w.AddElement(e)
	}

	if config.Gravity {
		w.gravity.Start()
	}
	return w, nil
}

// Name returns the config name the world was built from
func (w *GameWorld) Name() string {
	return w.name
}

// Geometry returns the current unit and ground level as one consistent value
func (w *GameWorld) Geometry() Geometry {
	return *w.geom.Load()
}

// SetUnit changes the grid unit. Cells placed earlier keep their size.
func (w *GameWorld) SetUnit(unit int) error {
	if unit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidUnit, unit)
	}
	geom := NewGeometry(unit)
	w.geom.Store(&geom)
	return nil
}

// WorldWidth returns the width of the world in pixels
func (w *GameWorld) WorldWidth() int {
	return w.width
}

// AddHole records a hole at p sized to the current unit
func (w *GameWorld) AddHole(p Point) {
	w.registry.AddHole(NewCell(p, w.Geometry().Unit))
}

// AddRock records a rock at p sized to the current unit
func (w *GameWorld) AddRock(p Point) {
	w.registry.AddRock(NewCell(p, w.Geometry().Unit))
}

// AddElement places a collectible
func (w *GameWorld) AddElement(e Element) {
	w.registry.AddElement(e)
}

// RemoveElement collects the first element at p and credits its price
func (w *GameWorld) RemoveElement(p Point) (Element, bool) {
	return w.registry.RemoveElement(p)
}

// Holes returns a copy of the holes
func (w *GameWorld) Holes() []Cell { return w.registry.Holes() }

// Rocks returns a copy of the rocks
func (w *GameWorld) Rocks() []Cell { return w.registry.Rocks() }

// Elements returns a copy of the elements
func (w *GameWorld) Elements() []Element { return w.registry.Elements() }

// Robot returns the session robot
func (w *GameWorld) Robot() *Robot { return w.robot }

// Bank returns the session bank account
func (w *GameWorld) Bank() *BankAccount { return w.bank }

// Shop returns the session shop
func (w *GameWorld) Shop() *Shop { return w.shop }

// Portal returns the session portal
func (w *GameWorld) Portal() *Portal { return w.portal }

// Registry returns the entity registry
func (w *GameWorld) Registry() *Registry { return w.registry }

// CanMove reports whether the robot may move one unit in direction d
func (w *GameWorld) CanMove(d Direction) bool {
	return w.CheckMove(d).Allowed
}

// CheckMove evaluates a move without applying it
func (w *GameWorld) CheckMove(d Direction) Verdict {
	return CheckMove(w.legalityInput(w.Geometry()), d)
}

func (w *GameWorld) legalityInput(geom Geometry) LegalityInput {
	return LegalityInput{
		Geometry:   geom,
		WorldWidth: w.width,
		Robot:      w.robot.Location(),
		Fuel:       w.robot.Fuel(),
		Rocks:      w.registry,
	}
}

// MoveRobot moves the robot one unit without checking legality.
// Callers are expected to have asked CanMove first.
func (w *GameWorld) MoveRobot(d Direction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.robot.Move(d, w.Geometry().Unit)
	w.firstStep.Store(true)
}

// TryMove checks and applies a move as one step
func (w *GameWorld) TryMove(d Direction) Verdict {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tryMoveLocked(d)
}

func (w *GameWorld) tryMoveLocked(d Direction) Verdict {
	geom := w.Geometry()
	from := w.robot.Location()
	v := CheckMove(w.legalityInput(geom), d)
	if !v.Allowed {
		w.log.WithFields(logrus.Fields{"direction": d, "from": from, "reason": v.Reason}).Debug("move rejected")
		return v
	}
	w.robot.Move(d, w.Geometry().Unit)
	w.firstStep.Store(true)
	w.log.WithFields(logrus.Fields{"direction": d, "from": from, "to": v.Target}).Debug("robot moved")
	return v
}

// Dig moves the robot and digs out the cell it enters. Cells at or below
// ground level become holes, and an element lying there is collected.
func (w *GameWorld) Dig(d Direction) DigResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	res := DigResult{Verdict: w.tryMoveLocked(d)}
	if !res.Verdict.Allowed {
		return res
	}

	geom := w.Geometry()
	pos := w.robot.Location()
	if pos.Y >= geom.GroundLevel {
		cell := NewCell(pos, geom.Unit)
		if !w.registry.HoleAt(cell) {
			w.registry.AddHole(cell)
			res.Dug = true
		}
	}
	if e, ok := w.registry.RemoveElement(pos); ok {
		res.Collected = &e
		w.log.WithFields(logrus.Fields{"element": e.Type.Name, "price": e.Type.Price, "at": pos}).Info("element collected")
	}
	return res
}

// IsSpaceAboveRobot reports whether there is open space above the robot
func (w *GameWorld) IsSpaceAboveRobot() bool {
	return SpaceAbove(w.Geometry(), w.robot.Location(), w.registry)
}

// IsSpaceBelowRobot reports whether the robot is unsupported
func (w *GameWorld) IsSpaceBelowRobot() bool {
	return SpaceBelow(w.Geometry(), w.robot.Location(), w.registry)
}

// ApplyGravity drops the robot one unit if nothing holds it up and the
// move is legal. It reports whether the robot fell.
func (w *GameWorld) ApplyGravity() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fallLocked()
}

// applyGravity is the gravity loop step. Ticks from a stopped generation
// are dropped once the world lock is held.
func (w *GameWorld) applyGravity(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.gravity.Current(gen) {
		return false
	}
	return w.fallLocked()
}

func (w *GameWorld) fallLocked() bool {
	geom := w.Geometry()
	if !SpaceBelow(geom, w.robot.Location(), w.registry) || !CheckMove(w.legalityInput(geom), Down).Allowed {
		return false
	}
	w.robot.Move(Down, geom.Unit)
	return true
}

// SetGravity enables or disables the gravity loop. After Close the loop
// stays off.
func (w *GameWorld) SetGravity(on bool) {
	if on {
		w.gravity.Start()
		return
	}
	w.gravity.Stop()
}

// IsGravity reports whether the gravity loop is running
func (w *GameWorld) IsGravity() bool {
	return w.gravity.Running()
}

// SetInfiniteDynamite toggles infinite dynamite. Enabling it hands the
// robot one stick; disabling it takes one back.
func (w *GameWorld) SetInfiniteDynamite(on bool) {
	w.infinite.Store(on)
	if on {
		w.robot.AddDynamite()
		return
	}
	w.robot.UseDynamite()
}

// IsInfiniteDynamite reports whether infinite dynamite is on
func (w *GameWorld) IsInfiniteDynamite() bool {
	return w.infinite.Load()
}

// FirstStep reports whether the robot has moved since the world was built
func (w *GameWorld) FirstStep() bool {
	return w.firstStep.Load()
}

// UsePortal teleports the robot to the portal exit
func (w *GameWorld) UsePortal() error {
	if !w.portal.Owned() {
		return ErrNoPortal
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	from := w.robot.Location()
	w.robot.SetLocation(w.portal.Exit())
	w.portal.recordUse()
	w.log.WithFields(logrus.Fields{"from": from, "to": w.portal.Exit()}).Info("portal used")
	return nil
}

// Snapshot copies the world state for rendering or serialization
func (w *GameWorld) Snapshot() WorldSnapshot {
	return WorldSnapshot{
		Name:       w.name,
		Geometry:   w.Geometry(),
		WorldWidth: w.width,
		Bottom:     Bottom,
		Robot: RobotState{
			Location:     w.robot.Location(),
			Fuel:         w.robot.Fuel(),
			FuelCapacity: w.robot.FuelCapacity(),
			Dynamite:     w.robot.Dynamite(),
		},
		Balance:          w.bank.Balance(),
		Holes:            w.registry.Holes(),
		Rocks:            w.registry.Rocks(),
		Elements:         w.registry.Elements(),
		Gravity:          w.IsGravity(),
		InfiniteDynamite: w.IsInfiniteDynamite(),
		HasPortal:        w.portal.Owned(),
		FirstStep:        w.FirstStep(),
		SpaceAbove:       w.IsSpaceAboveRobot(),
		SpaceBelow:       w.IsSpaceBelowRobot(),
	}
}

// Progress returns the state that is kept across reloads
func (w *GameWorld) Progress() Progress {
	return Progress{
		Holes:     w.registry.Holes(),
		HasPortal: w.portal.Owned(),
	}
}

// RestoreProgress re-applies saved holes and portal ownership. Holes
// already present are not added twice.
func (w *GameWorld) RestoreProgress(p Progress) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range p.Holes {
		if !w.registry.HoleAt(c) {
			w.registry.AddHole(c)
		}
	}
	if p.HasPortal {
		w.portal.Grant()
	}
}

// Close stops gravity and detaches every robot subscriber
func (w *GameWorld) Close() {
	if !w.closed.CompareAndSwap(false, true) {
		return
	}
	w.gravity.Shutdown()
	w.robot.closeSubscriptions()
}
