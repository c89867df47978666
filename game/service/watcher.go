package service

import (
	"github.com/wricardo/mcp-training/mininggame/game/engine"
)

const watcherBuffer = 64

// watcher forwards one world's robot events until the subscription closes
type watcher struct {
	world *engine.GameWorld
	sub   *engine.Subscription
	done  chan struct{}
}

// watch starts forwarding robot events for sess. A session whose world was
// rebuilt (for example after being reloaded) gets a fresh watcher.
func (s *gameServiceImpl) watch(sess *Session) {
	s.watchMu.Lock()
	old, ok := s.watchers[sess.ID]
	if ok && old.world == sess.World {
		s.watchMu.Unlock()
		return
	}

	w := &watcher{
		world: sess.World,
		sub:   sess.World.Robot().Subscribe(watcherBuffer),
		done:  make(chan struct{}),
	}
	s.watchers[sess.ID] = w
	s.watchMu.Unlock()

	if ok {
		old.stop()
	}
	go s.forward(sess.ID, w)
}

// unwatch stops the watcher of a session, if any
func (s *gameServiceImpl) unwatch(sessionID string) {
	s.watchMu.Lock()
	w, ok := s.watchers[sessionID]
	delete(s.watchers, sessionID)
	s.watchMu.Unlock()

	if ok {
		w.stop()
	}
}

func (s *gameServiceImpl) forward(sessionID string, w *watcher) {
	defer close(w.done)
	for ev := range w.sub.C {
		s.metrics.RobotEvent(string(ev.Kind))
		if s.broadcaster == nil {
			continue
		}
		gev := NewEvent(EventRobotPrefix+string(ev.Kind), "").At(ev.Location)
		gev.Data = ev
		s.broadcaster.BroadcastEvent(sessionID, gev)
	}
}

func (w *watcher) stop() {
	w.sub.Unsubscribe()
	<-w.done
}
