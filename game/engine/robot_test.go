package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotMoveBurnsFuel(t *testing.T) {
	r := NewRobot(Point{X: 0, Y: 0}, 2, 10, 1)

	r.Move(Down, 25)
	r.Move(Right, 25)
	r.Move(Right, 25)

	assert.Equal(t, Point{X: 50, Y: 25}, r.Location())
	assert.Equal(t, 0, r.Fuel(), "fuel never goes negative")

	r.Refuel()
	assert.Equal(t, 10, r.Fuel())
	assert.Equal(t, 10, r.FuelCapacity())
}

func TestNewFuelTankClamps(t *testing.T) {
	assert.Equal(t, 10, NewFuelTank(50, 10).FuelLevel())
	assert.Equal(t, 0, NewFuelTank(-5, 10).FuelLevel())
}

func TestRobotDynamite(t *testing.T) {
	r := NewRobot(Point{}, 10, 10, 1)

	assert.False(t, r.UseDynamite())
	r.AddDynamite()
	r.AddDynamite()
	assert.Equal(t, 2, r.Dynamite())
	assert.True(t, r.UseDynamite())
	assert.Equal(t, 1, r.Dynamite())
}

func TestRobotEvents(t *testing.T) {
	r := NewRobot(Point{X: 0, Y: 0}, 10, 10, 1)
	sub := r.Subscribe(8)

	r.Move(Down, 25)
	r.AddDynamite()
	r.Refuel()
	r.SetLocation(Point{X: 100, Y: 0})

	want := []RobotEvent{
		{Seq: 1, Kind: RobotMoved, Location: Point{X: 0, Y: 25}, Fuel: 9},
		{Seq: 2, Kind: RobotDynamiteChanged, Location: Point{X: 0, Y: 25}, Fuel: 9, Dynamite: 1},
		{Seq: 3, Kind: RobotFuelChanged, Location: Point{X: 0, Y: 25}, Fuel: 10, Dynamite: 1},
		{Seq: 4, Kind: RobotMoved, Location: Point{X: 100, Y: 0}, Fuel: 10, Dynamite: 1},
	}
	for _, w := range want {
		got := <-sub.C
		assert.Equal(t, w, got)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	_, open := <-sub.C
	assert.False(t, open)

	r.Move(Up, 25)
	assert.Equal(t, uint64(0), r.DroppedEvents())
}

func TestRobotEventsDropWhenFull(t *testing.T) {
	r := NewRobot(Point{}, 10, 10, 1)
	sub := r.Subscribe(1)
	defer sub.Unsubscribe()

	r.Move(Down, 25)
	r.Move(Down, 25)
	r.Move(Down, 25)

	ev := <-sub.C
	assert.Equal(t, uint64(1), ev.Seq)
	assert.Equal(t, uint64(2), r.DroppedEvents())
}

func TestRobotFailedUseDynamitePublishesNothing(t *testing.T) {
	r := NewRobot(Point{}, 10, 10, 1)
	sub := r.Subscribe(4)
	defer sub.Unsubscribe()

	require.False(t, r.UseDynamite())
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}
