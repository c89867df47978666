package engine

import (
	"sync"
	"sync/atomic"
)

// RobotEventKind names the attribute that changed
type RobotEventKind string

const (
	RobotMoved           RobotEventKind = "location"
	RobotFuelChanged     RobotEventKind = "fuel"
	RobotDynamiteChanged RobotEventKind = "dynamite"
)

// RobotEvent is published after every robot mutation
type RobotEvent struct {
	Seq      uint64         `json:"seq"`
	Kind     RobotEventKind `json:"kind"`
	Location Point          `json:"location"`
	Fuel     int            `json:"fuel"`
	Dynamite int            `json:"dynamite"`
}

// Subscription receives robot events until Unsubscribe is called
type Subscription struct {
	C <-chan RobotEvent

	id    int
	ch    chan RobotEvent
	robot *Robot
	once  sync.Once
}

// Unsubscribe detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.robot.unsubscribe(s.id)
	})
}

// Robot is the single player-controlled agent of a session.
//
// Move trusts its caller: legality has to be checked beforehand (see
// CheckMove). Events are delivered on the goroutine that performed the
// mutation, so subscribers may see events from the gravity loop and from
// request handlers interleaved.
type Robot struct {
	mu          sync.RWMutex
	location    Point
	tank        *FuelTank
	dynamite    int
	fuelPerMove int

	subMu   sync.Mutex
	subs    map[int]chan RobotEvent
	nextSub int
	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewRobot creates a robot at start with a fuel tank
func NewRobot(start Point, fuel, capacity, fuelPerMove int) *Robot {
	return &Robot{
		location:    start,
		tank:        NewFuelTank(fuel, capacity),
		fuelPerMove: fuelPerMove,
		subs:        make(map[int]chan RobotEvent),
	}
}

// Location returns the robot position
func (r *Robot) Location() Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.location
}

// Fuel returns the fuel level
func (r *Robot) Fuel() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tank.FuelLevel()
}

// FuelCapacity returns the size of the fuel tank
func (r *Robot) FuelCapacity() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tank.Capacity()
}

// Dynamite returns the number of dynamite sticks carried
func (r *Robot) Dynamite() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dynamite
}

// Move shifts the robot step pixels in direction d and burns fuel.
// The move is unconditional.
func (r *Robot) Move(d Direction, step int) {
	dx, dy := d.Delta()
	r.mu.Lock()
	r.location = r.location.Add(dx*step, dy*step)
	r.tank.Burn(r.fuelPerMove)
	ev := r.eventLocked(RobotMoved)
	r.mu.Unlock()
	r.publish(ev)
}

// SetLocation places the robot at p without burning fuel
func (r *Robot) SetLocation(p Point) {
	r.mu.Lock()
	r.location = p
	ev := r.eventLocked(RobotMoved)
	r.mu.Unlock()
	r.publish(ev)
}

// Refuel fills the tank
func (r *Robot) Refuel() {
	r.mu.Lock()
	r.tank.Fill()
	ev := r.eventLocked(RobotFuelChanged)
	r.mu.Unlock()
	r.publish(ev)
}

// AddDynamite gives the robot one stick of dynamite
func (r *Robot) AddDynamite() {
	r.mu.Lock()
	r.dynamite++
	ev := r.eventLocked(RobotDynamiteChanged)
	r.mu.Unlock()
	r.publish(ev)
}

// UseDynamite consumes one stick. It returns false when there is none.
func (r *Robot) UseDynamite() bool {
	r.mu.Lock()
	if r.dynamite == 0 {
		r.mu.Unlock()
		return false
	}
	r.dynamite--
	ev := r.eventLocked(RobotDynamiteChanged)
	r.mu.Unlock()
	r.publish(ev)
	return true
}

// Subscribe registers a listener with a buffered channel. Events that do
// not fit into the buffer are dropped and counted by DroppedEvents.
func (r *Robot) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan RobotEvent, buffer)

	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.subMu.Unlock()

	return &Subscription{C: ch, id: id, ch: ch, robot: r}
}

// DroppedEvents returns how many events were discarded because a subscriber lagged
func (r *Robot) DroppedEvents() uint64 {
	return r.dropped.Load()
}

// closeSubscriptions detaches every listener
func (r *Robot) closeSubscriptions() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}

func (r *Robot) unsubscribe(id int) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if ch, ok := r.subs[id]; ok {
		delete(r.subs, id)
		close(ch)
	}
}

func (r *Robot) eventLocked(kind RobotEventKind) RobotEvent {
	return RobotEvent{
		Seq:      r.seq.Add(1),
		Kind:     kind,
		Location: r.location,
		Fuel:     r.tank.FuelLevel(),
		Dynamite: r.dynamite,
	}
}

func (r *Robot) publish(ev RobotEvent) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			r.dropped.Add(1)
		}
	}
}
