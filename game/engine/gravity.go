package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Gravity drives the background loop that drops an unsupported robot.
//
// At most one loop is active per Gravity. Stop bumps the generation and
// cancels the loop context; every tick passes its generation back to the
// step function, which discards ticks from a stale generation. A tick that
// is already past that check when Stop runs still completes.
type Gravity struct {
	mu         sync.Mutex
	running    bool
	shutdown   bool
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}

	interval time.Duration
	step     func(gen uint64) bool
	log      logrus.FieldLogger
}

// NewGravity creates a stopped gravity loop that calls step every interval
func NewGravity(interval time.Duration, step func(gen uint64) bool, log logrus.FieldLogger) *Gravity {
	if interval <= 0 {
		interval = DefaultGravityTick * time.Millisecond
	}
	return &Gravity{interval: interval, step: step, log: log}
}

// Start launches the loop. It returns false, doing nothing, when a loop is
// already running or the loop has been shut down.
func (g *Gravity) Start() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running || g.shutdown {
		return false
	}
	g.running = true
	g.generation++
	gen := g.generation

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})

	go g.run(ctx, gen, g.done)
	g.log.WithField("generation", gen).Debug("gravity started")
	return true
}

// Stop halts the loop. It returns false when no loop was running.
func (g *Gravity) Stop() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return false
	}
	g.running = false
	g.generation++
	g.cancel()
	g.log.WithField("generation", g.generation).Debug("gravity stopped")
	return true
}

// Shutdown stops the loop for good and waits for its goroutine to exit.
// Later calls to Start are refused.
func (g *Gravity) Shutdown() {
	g.mu.Lock()
	g.shutdown = true
	g.mu.Unlock()

	g.Stop()
	g.Wait()
}

// Running reports whether a loop is active
func (g *Gravity) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Current reports whether gen is the generation of the active loop
func (g *Gravity) Current(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running && g.generation == gen
}

// Wait blocks until the most recently started loop goroutine has exited
func (g *Gravity) Wait() {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (g *Gravity) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !g.Current(gen) {
				return
			}
			g.step(gen)
		}
	}
}
