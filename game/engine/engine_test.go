package engine

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// testConfig is a small deterministic world: no generator, gravity off
func testConfig() *WorldConfig {
	cfg := &WorldConfig{
		Name:              "test",
		Unit:              25,
		WorldWidth:        800,
		Start:             Point{X: 400, Y: 0},
		StartingFuel:      100,
		FuelCapacity:      100,
		FuelPerMove:       1,
		StartingBalance:   100,
		GravityIntervalMS: 5,
	}
	cfg.ApplyDefaults()
	return cfg
}

func newTestWorld(t *testing.T, mutate func(*WorldConfig)) *GameWorld {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	w, err := NewWorld(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func TestNewWorld(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.StartingDynamite = 2
		c.Rocks = []Point{{X: 0, Y: 250}}
		c.Elements = []Placement{{Type: "gold", X: 25, Y: 250}}
	})

	assert.Equal(t, Geometry{Unit: 25, GroundLevel: 200}, w.Geometry())
	assert.Equal(t, Point{X: 400, Y: 0}, w.Robot().Location())
	assert.Equal(t, 100, w.Bank().Balance())
	assert.Equal(t, 2, w.Robot().Dynamite())
	assert.Equal(t, []Cell{{X: 0, Y: 250, Size: 25}}, w.Rocks())
	require.Len(t, w.Elements(), 1)
	assert.Equal(t, "gold", w.Elements()[0].Type.Name)
	assert.False(t, w.IsGravity())
	assert.False(t, w.FirstStep())
}

func TestNewWorldRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Unit = 1
	_, err := NewWorld(cfg, quietLogger())
	require.Error(t, err)
}

func TestSetUnit(t *testing.T) {
	w := newTestWorld(t, nil)

	require.NoError(t, w.SetUnit(10))
	assert.Equal(t, Geometry{Unit: 10, GroundLevel: 80}, w.Geometry())

	err := w.SetUnit(0)
	require.ErrorIs(t, err, ErrInvalidUnit)
	assert.Equal(t, Geometry{Unit: 10, GroundLevel: 80}, w.Geometry())

	require.ErrorIs(t, w.SetUnit(-5), ErrInvalidUnit)
}

func TestSetUnitKeepsOldCells(t *testing.T) {
	w := newTestWorld(t, nil)
	w.AddRock(Point{X: 400, Y: 10})

	require.NoError(t, w.SetUnit(10))
	w.AddRock(Point{X: 100, Y: 10})

	rocks := w.Rocks()
	require.Len(t, rocks, 2)
	assert.Equal(t, 25, rocks[0].Size)
	assert.Equal(t, 10, rocks[1].Size)

	// The old rock sits on the target origin but is sized 25, so it does not block.
	assert.True(t, w.CanMove(Down))
}

func TestSetUnitIsAtomic(t *testing.T) {
	w := newTestWorld(t, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			if i%2 == 0 {
				_ = w.SetUnit(10)
			} else {
				_ = w.SetUnit(25)
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		g := w.Geometry()
		require.Equal(t, g.Unit*GroundLevelFactor, g.GroundLevel)
	}
	wg.Wait()
}

func TestCanMoveHasNoSideEffects(t *testing.T) {
	w := newTestWorld(t, nil)
	before := w.Snapshot()

	for _, d := range Directions {
		w.CanMove(d)
		w.CheckMove(d)
	}

	assert.Equal(t, before, w.Snapshot())
}

func TestTryMove(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.Rocks = []Point{{X: 425, Y: 0}}
	})

	v := w.TryMove(Up)
	assert.False(t, v.Allowed)
	assert.Equal(t, ReasonOutOfBounds, v.Reason)
	assert.Equal(t, Point{X: 400, Y: 0}, w.Robot().Location())

	v = w.TryMove(Right)
	assert.False(t, v.Allowed)
	assert.Equal(t, ReasonRock, v.Reason)
	assert.False(t, w.FirstStep())

	v = w.TryMove(Left)
	assert.True(t, v.Allowed)
	assert.Equal(t, Point{X: 375, Y: 0}, v.Target)
	assert.Equal(t, Point{X: 375, Y: 0}, w.Robot().Location())
	assert.Equal(t, 99, w.Robot().Fuel())
	assert.True(t, w.FirstStep())
}

// The target a move is checked against is the cell the robot lands on,
// even while the unit changes underneath it.
func TestTryMoveUsesOneGeometry(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.StartingFuel = 1000
		c.FuelCapacity = 1000
	})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			unit := 25
			if i%2 == 0 {
				unit = 10
			}
			_ = w.SetUnit(unit)
		}
	}()

	dirs := []Direction{Left, Right}
	for i := 0; i < 200; i++ {
		v := w.TryMove(dirs[i%2])
		if v.Allowed {
			require.Equal(t, v.Target, w.Robot().Location(), "move %d", i)
		}
	}
	close(done)
	wg.Wait()
}

func TestMoveRobotIsUnconditional(t *testing.T) {
	w := newTestWorld(t, nil)

	require.False(t, w.CanMove(Up))
	w.MoveRobot(Up)

	assert.Equal(t, Point{X: 400, Y: -25}, w.Robot().Location())
	assert.Equal(t, 99, w.Robot().Fuel())
}

func TestOutOfFuelBlocksMoves(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.StartingFuel = 2
	})

	assert.True(t, w.TryMove(Left).Allowed)
	assert.True(t, w.TryMove(Left).Allowed)

	v := w.TryMove(Left)
	assert.False(t, v.Allowed)
	assert.Equal(t, ReasonOutOfFuel, v.Reason)
	assert.Equal(t, 0, w.Robot().Fuel())
	for _, d := range Directions {
		assert.False(t, w.CanMove(d), "direction %s", d)
	}
}

func TestDig(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.Start = Point{X: 400, Y: 200}
		c.Elements = []Placement{{Type: "gold", X: 400, Y: 225}}
	})

	res := w.Dig(Down)
	require.True(t, res.Verdict.Allowed)
	assert.True(t, res.Dug)
	require.NotNil(t, res.Collected)
	assert.Equal(t, "gold", res.Collected.Type.Name)
	assert.Equal(t, 150, w.Bank().Balance())
	assert.Empty(t, w.Elements())
	assert.Equal(t, []Cell{{X: 400, Y: 225, Size: 25}}, w.Holes())

	// Walking back up digs the surface row, then re-entering the hole digs nothing.
	res = w.Dig(Up)
	assert.True(t, res.Dug)
	res = w.Dig(Down)
	assert.True(t, res.Verdict.Allowed)
	assert.False(t, res.Dug)
	assert.Nil(t, res.Collected)
	assert.Len(t, w.Holes(), 2)
	assert.Equal(t, 150, w.Bank().Balance())
}

func TestDigAboveGroundLeavesNoHole(t *testing.T) {
	w := newTestWorld(t, nil)

	res := w.Dig(Down)
	assert.True(t, res.Verdict.Allowed)
	assert.False(t, res.Dug)
	assert.Empty(t, w.Holes())
}

func TestDigRejected(t *testing.T) {
	w := newTestWorld(t, nil)

	res := w.Dig(Up)
	assert.False(t, res.Verdict.Allowed)
	assert.False(t, res.Dug)
	assert.Nil(t, res.Collected)
}

func TestSpaceQueries(t *testing.T) {
	w := newTestWorld(t, nil)

	assert.False(t, w.IsSpaceAboveRobot(), "ceiling")
	assert.True(t, w.IsSpaceBelowRobot(), "sky")

	w.Robot().SetLocation(Point{X: 400, Y: 200})
	assert.True(t, w.IsSpaceAboveRobot())
	assert.False(t, w.IsSpaceBelowRobot())

	w.AddHole(Point{X: 400, Y: 225})
	assert.True(t, w.IsSpaceBelowRobot())

	w.Robot().SetLocation(Point{X: 400, Y: 250})
	assert.True(t, w.IsSpaceAboveRobot(), "hole at 225 ends at 250")

	w.Robot().SetLocation(Point{X: 425, Y: 250})
	assert.False(t, w.IsSpaceAboveRobot())
}

func TestApplyGravityConverges(t *testing.T) {
	tests := []struct {
		name  string
		holes []Point
		rocks []Point
		fuel  int
		want  Point
	}{
		{name: "lands on ground level", fuel: 100, want: Point{X: 400, Y: 200}},
		{
			name:  "falls through dug holes",
			holes: []Point{{X: 400, Y: 225}, {X: 400, Y: 250}},
			fuel:  100,
			want:  Point{X: 400, Y: 250},
		},
		{name: "stops on a rock", rocks: []Point{{X: 400, Y: 100}}, fuel: 100, want: Point{X: 400, Y: 75}},
		{name: "stops when out of fuel", fuel: 3, want: Point{X: 400, Y: 75}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorld(t, func(c *WorldConfig) {
				c.StartingFuel = tt.fuel
				c.Rocks = tt.rocks
			})
			for _, h := range tt.holes {
				w.AddHole(h)
			}

			steps := 0
			for w.ApplyGravity() {
				steps++
				require.Less(t, steps, 1000)
			}
			assert.Equal(t, tt.want, w.Robot().Location())
			assert.False(t, w.ApplyGravity())
		})
	}
}

func TestGravityLoop(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.Gravity = true
	})

	require.True(t, w.IsGravity())
	require.Eventually(t, func() bool {
		return w.Robot().Location() == Point{X: 400, Y: 200}
	}, 2*time.Second, 5*time.Millisecond)

	// A second start does not launch another loop.
	assert.False(t, w.gravity.Start())
	w.SetGravity(true)
	assert.True(t, w.IsGravity())

	w.SetGravity(false)
	assert.False(t, w.IsGravity())
	assert.False(t, w.gravity.Stop())

	w.Robot().SetLocation(Point{X: 400, Y: 0})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Point{X: 400, Y: 0}, w.Robot().Location())

	w.SetGravity(true)
	require.Eventually(t, func() bool {
		return w.Robot().Location() == Point{X: 400, Y: 200}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGravityTicksOncePerInterval(t *testing.T) {
	const interval = 20 * time.Millisecond

	var mu sync.Mutex
	var gens []uint64
	g := NewGravity(interval, func(gen uint64) bool {
		mu.Lock()
		gens = append(gens, gen)
		mu.Unlock()
		return true
	}, quietLogger())
	t.Cleanup(g.Shutdown)

	started := time.Now()
	require.True(t, g.Start())
	require.False(t, g.Start())
	time.Sleep(5*interval + interval/2)
	g.Stop()
	g.Wait()
	maxTicks := int(time.Since(started) / interval)

	mu.Lock()
	ticks := len(gens)
	mu.Unlock()
	assert.GreaterOrEqual(t, ticks, 1)
	assert.LessOrEqual(t, ticks, maxTicks, "a second Start must not add a loop")

	// A stop/start flip-flop leaves only the newest loop ticking.
	mu.Lock()
	gens = nil
	mu.Unlock()
	started = time.Now()
	require.True(t, g.Start())
	g.Stop()
	require.True(t, g.Start())
	time.Sleep(3*interval + interval/2)
	g.Stop()
	g.Wait()
	maxTicks = int(time.Since(started) / interval)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, len(gens), maxTicks)
	for _, gen := range gens {
		assert.Equal(t, uint64(5), gen, "tick from a stopped loop")
	}
}

func TestGravityFallsOneUnitPerTick(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.GravityIntervalMS = 20
	})

	started := time.Now()
	w.SetGravity(true)
	w.SetGravity(true)
	time.Sleep(110 * time.Millisecond)
	w.SetGravity(false)
	w.gravity.Wait()
	maxTicks := int(time.Since(started) / (20 * time.Millisecond))

	y := w.Robot().Location().Y
	assert.Greater(t, y, 0)
	assert.LessOrEqual(t, y, 25*maxTicks, "fell more than one unit per tick")
}

func TestGravityShutdown(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.Gravity = true
	})
	require.True(t, w.IsGravity())

	w.Close()
	assert.False(t, w.IsGravity())
	assert.False(t, w.gravity.Start())

	w.SetGravity(true)
	assert.False(t, w.IsGravity())
}

func TestStaleGravityTickIsDropped(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.GravityIntervalMS = 60000
	})

	require.True(t, w.gravity.Start())
	w.gravity.Stop()
	w.gravity.Wait()

	// Generation 1 belonged to the loop that was just stopped.
	assert.False(t, w.applyGravity(1))
	assert.Equal(t, Point{X: 400, Y: 0}, w.Robot().Location())
}

func TestInfiniteDynamite(t *testing.T) {
	w := newTestWorld(t, nil)

	w.SetInfiniteDynamite(true)
	assert.True(t, w.IsInfiniteDynamite())
	assert.Equal(t, 1, w.Robot().Dynamite())

	w.SetInfiniteDynamite(false)
	assert.False(t, w.IsInfiniteDynamite())
	assert.Equal(t, 0, w.Robot().Dynamite())

	w.SetInfiniteDynamite(false)
	assert.Equal(t, 0, w.Robot().Dynamite())
}

func TestUsePortal(t *testing.T) {
	w := newTestWorld(t, nil)
	w.Robot().SetLocation(Point{X: 100, Y: 900})

	require.ErrorIs(t, w.UsePortal(), ErrNoPortal)
	assert.Equal(t, Point{X: 100, Y: 900}, w.Robot().Location())

	w.Bank().Deposit(1000)
	_, err := w.Shop().Buy(ItemPortal)
	require.NoError(t, err)

	require.NoError(t, w.UsePortal())
	assert.Equal(t, Point{X: 400, Y: 0}, w.Robot().Location())
	assert.Equal(t, 1, w.Portal().Uses())
}

func TestProgressRoundTrip(t *testing.T) {
	mutate := func(c *WorldConfig) {
		c.Start = Point{X: 400, Y: 200}
		c.Elements = []Placement{{Type: "diamond", X: 400, Y: 225}}
		c.Rocks = []Point{{X: 0, Y: 500}}
	}
	w1 := newTestWorld(t, mutate)
	w1.Dig(Down)
	w1.Dig(Down)
	w1.Bank().Deposit(500)
	_, err := w1.Shop().Buy(ItemPortal)
	require.NoError(t, err)

	p := w1.Progress()
	require.Len(t, p.Holes, 2)
	require.True(t, p.HasPortal)

	w2 := newTestWorld(t, mutate)
	w2.RestoreProgress(p)
	w2.RestoreProgress(p)

	assert.Equal(t, w1.Holes(), w2.Holes())
	assert.True(t, w2.Portal().Owned())

	// Everything else starts over from the config.
	assert.Equal(t, Point{X: 400, Y: 200}, w2.Robot().Location())
	assert.Equal(t, 100, w2.Bank().Balance())
	assert.Len(t, w2.Elements(), 1)
	assert.Len(t, w2.Rocks(), 1)
}

func TestSnapshot(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.Elements = []Placement{{Type: "coal", X: 0, Y: 300}}
	})

	s := w.Snapshot()
	assert.Equal(t, "test", s.Name)
	assert.Equal(t, 800, s.WorldWidth)
	assert.Equal(t, Bottom, s.Bottom)
	assert.Equal(t, RobotState{Location: Point{X: 400, Y: 0}, Fuel: 100, FuelCapacity: 100}, s.Robot)
	assert.Equal(t, 100, s.Balance)
	assert.Len(t, s.Elements, 1)
	assert.False(t, s.SpaceAbove)
	assert.True(t, s.SpaceBelow)

	s.Elements[0].Type.Name = "changed"
	assert.Equal(t, "coal", w.Elements()[0].Type.Name)
}

func TestClose(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.Gravity = true
	})
	sub := w.Robot().Subscribe(64)

	w.Close()
	w.Close()

	assert.False(t, w.IsGravity())
	w.SetGravity(true)
	assert.False(t, w.IsGravity())

	for range sub.C {
	}
}

func TestConcurrentMovesAndGravity(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) {
		c.Gravity = true
		c.FuelCapacity = 10000
		c.StartingFuel = 10000
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w.Dig(Directions[(i+j)%len(Directions)])
				w.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	loc := w.Robot().Location()
	assert.True(t, w.Geometry().Aligned(loc))
	assert.GreaterOrEqual(t, loc.X, 0)
	assert.LessOrEqual(t, loc.X, 775)
	assert.GreaterOrEqual(t, loc.Y, 0)
}
