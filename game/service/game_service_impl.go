package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
	"github.com/wricardo/mcp-training/mininggame/metrics"
)

// Option configures the game service
type Option func(*gameServiceImpl)

// WithBroadcaster forwards robot events and world updates to b
func WithBroadcaster(b Broadcaster) Option {
	return func(s *gameServiceImpl) { s.broadcaster = b }
}

// WithMetrics records game activity on r
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *gameServiceImpl) { s.metrics = r }
}

// WithLogger sets the service logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *gameServiceImpl) { s.log = log }
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions    SessionManager
	configs     ConfigManager
	broadcaster Broadcaster
	metrics     *metrics.Recorder
	log         logrus.FieldLogger

	watchMu  sync.Mutex
	watchers map[string]*watcher
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		log:      logrus.StandardLogger(),
		watchers: make(map[string]*watcher),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	var config *engine.WorldConfig
	configID := configName
	if configName != "" {
		var err error
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s' not found, available configs %v: %w", configName, configIDs, err)
				}
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
		configID = s.configs.DefaultID()
	}

	// Let session manager generate the ID
	sess, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.watch(sess)

	s.log.WithFields(logrus.Fields{"session": sess.ID, "config": configID}).Info("session created")
	return sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		info := sessionInfo(sess)
		info.WorldConfig = nil
		result = append(result, info)
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.unwatch(sessionID)
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	s.log.WithField("session", sessionID).Info("session deleted")
	return nil
}

// GetWorld returns a snapshot of the session's world
func (s *gameServiceImpl) GetWorld(ctx context.Context, sessionID string) (*engine.WorldSnapshot, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	snap := sess.World.Snapshot()
	return &snap, nil
}

// CanMove reports whether a move would be legal without applying it
func (s *gameServiceImpl) CanMove(ctx context.Context, sessionID, direction string) (*engine.Verdict, error) {
	dir, err := engine.ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	v := sess.World.CheckMove(dir)
	return &v, nil
}

// Move digs one cell in the given direction
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string) (*MoveResult, error) {
	dir, err := engine.ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	from := sess.World.Robot().Location()
	res := sess.World.Dig(dir)
	s.metrics.Move(res.Verdict.Allowed, res.Verdict.Reason)

	result := &MoveResult{
		Success:   res.Verdict.Allowed,
		Direction: string(dir),
		Reason:    res.Verdict.Reason,
		From:      from,
		To:        sess.World.Robot().Location(),
		Dug:       res.Dug,
		Collected: res.Collected,
	}
	result.Events = s.digEvents(res, dir, result.To)
	result.Message = result.Events[len(result.Events)-1].Message

	if res.Dug {
		s.autoSave(sess.ID, "move")
	}

	snap := sess.World.Snapshot()
	result.World = &snap
	return result, nil
}

// BulkMove executes moves in sequence and stops at the first rejected one
func (s *gameServiceImpl) BulkMove(ctx context.Context, sessionID string, moves []string) (*BulkMoveResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	world := sess.World

	startBalance := world.Bank().Balance()
	result := &BulkMoveResult{
		RequestedMoves: len(moves),
		Success:        true,
		StartPos:       world.Robot().Location(),
		StartFuel:      world.Robot().Fuel(),
		Events:         make([]GameEvent, 0),
	}

	if len(moves) > MaxBulkMoves {
		result.Truncated = true
		result.Limit = MaxBulkMoves
		moves = moves[:MaxBulkMoves]
	}

	dug := false
	for i, move := range moves {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.StoppedOnMove = i + 1
			result.StopReasonCode = "cancelled"
			break
		}

		dir, err := engine.ParseDirection(move)
		if err != nil {
			result.Success = false
			result.StoppedOnMove = i + 1
			result.StopReasonCode = engine.ReasonInvalidDirection
			break
		}

		from := world.Robot().Location()
		fuelBefore := world.Robot().Fuel()
		res := world.Dig(dir)
		s.metrics.Move(res.Verdict.Allowed, res.Verdict.Reason)
		to := world.Robot().Location()
		result.Events = append(result.Events, s.digEvents(res, dir, to)...)

		if !res.Verdict.Allowed {
			result.Success = false
			result.StoppedOnMove = i + 1
			result.StopReasonCode = res.Verdict.Reason
			break
		}

		result.MovesExecuted++
		dug = dug || res.Dug
		step := StepInfo{
			Idx:        i + 1,
			Dir:        string(dir),
			From:       from,
			To:         to,
			FuelBefore: fuelBefore,
			FuelAfter:  world.Robot().Fuel(),
			Dug:        res.Dug,
		}
		if res.Collected != nil {
			step.Collected = res.Collected.Type.Name
		}
		result.Steps = append(result.Steps, step)
	}

	result.EndPos = world.Robot().Location()
	result.EndFuel = world.Robot().Fuel()
	result.BalanceDelta = world.Bank().Balance() - startBalance

	if dug {
		s.autoSave(sess.ID, "bulk move")
	}

	snap := world.Snapshot()
	result.World = &snap
	return result, nil
}

// SetGravity turns the gravity loop on or off
func (s *gameServiceImpl) SetGravity(ctx context.Context, sessionID string, enabled bool) (*engine.WorldSnapshot, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.World.SetGravity(enabled)
	s.publish(sess.ID, NewEvent(EventGravity, fmt.Sprintf("Gravity %s", onOff(enabled))))
	snap := sess.World.Snapshot()
	return &snap, nil
}

// SetInfiniteDynamite toggles infinite dynamite
func (s *gameServiceImpl) SetInfiniteDynamite(ctx context.Context, sessionID string, enabled bool) (*engine.WorldSnapshot, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.World.SetInfiniteDynamite(enabled)
	s.publish(sess.ID, NewEvent(EventInfiniteDynamite, fmt.Sprintf("Infinite dynamite %s", onOff(enabled))))
	snap := sess.World.Snapshot()
	return &snap, nil
}

// GetBank returns the bank balance and shop prices
func (s *gameServiceImpl) GetBank(ctx context.Context, sessionID string) (*BankInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	world := sess.World
	shop := world.Shop()

	prices := make(map[string]int)
	for _, item := range shop.Items() {
		if p, err := shop.Price(item); err == nil {
			prices[item] = p
		}
	}
	return &BankInfo{
		Balance:          world.Bank().Balance(),
		Prices:           prices,
		Dynamite:         world.Robot().Dynamite(),
		InfiniteDynamite: world.IsInfiniteDynamite(),
		HasPortal:        world.Portal().Owned(),
	}, nil
}

// Buy purchases an item from the shop
func (s *gameServiceImpl) Buy(ctx context.Context, sessionID, item string) (*ShopResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	receipt, err := sess.World.Shop().Buy(item)
	if err != nil {
		return nil, fmt.Errorf("buy %s: %w", item, err)
	}
	s.metrics.Purchase(item)
	if item == engine.ItemPortal {
		s.autoSave(sess.ID, "portal purchase")
	}

	ev := NewEvent(EventPurchase, fmt.Sprintf("Bought %s for %d, balance %d", item, -receipt.Amount, receipt.Balance))
	ev.Data = receipt
	s.publish(sess.ID, ev)

	snap := sess.World.Snapshot()
	return &ShopResult{Receipt: receipt, Event: ev, World: &snap}, nil
}

// Sell sells an item back to the shop
func (s *gameServiceImpl) Sell(ctx context.Context, sessionID, item string) (*ShopResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	receipt, err := sess.World.Shop().Sell(item)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", item, err)
	}
	s.metrics.Sale(item)

	ev := NewEvent(EventSale, fmt.Sprintf("Sold %s for %d, balance %d", item, receipt.Amount, receipt.Balance))
	ev.Data = receipt
	s.publish(sess.ID, ev)

	snap := sess.World.Snapshot()
	return &ShopResult{Receipt: receipt, Event: ev, World: &snap}, nil
}

// UsePortal teleports the robot back to the surface
func (s *gameServiceImpl) UsePortal(ctx context.Context, sessionID string) (*engine.WorldSnapshot, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.World.UsePortal(); err != nil {
		return nil, err
	}
	s.metrics.PortalUsed()

	snap := sess.World.Snapshot()
	s.publish(sess.ID, NewEvent(EventPortal, "Teleported to the surface").At(snap.Robot.Location))
	return &snap, nil
}

// Save persists the session's progress
func (s *gameServiceImpl) Save(ctx context.Context, sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if err := s.sessions.Save(sess.ID); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	s.publish(sess.ID, NewEvent(EventSaved, "Progress saved"))
	return nil
}

// ListConfigs returns all available configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.WorldConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a configuration
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.WorldConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// Close stops every robot event watcher
func (s *gameServiceImpl) Close() {
	s.watchMu.Lock()
	ids := make([]string, 0, len(s.watchers))
	for id := range s.watchers {
		ids = append(ids, id)
	}
	s.watchMu.Unlock()

	for _, id := range ids {
		s.unwatch(id)
	}
}

// session looks up a session, marks it accessed and makes sure its events are forwarded
func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	if err := s.sessions.UpdateLastAccessed(sess.ID); err != nil {
		s.log.WithError(err).WithField("session", sess.ID).Warn("failed to update last access")
	}
	s.watch(sess)
	return sess, nil
}

func (s *gameServiceImpl) autoSave(sessionID, after string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.log.WithError(err).WithField("session", sessionID).Warnf("failed to persist session after %s", after)
	}
}

func (s *gameServiceImpl) publish(sessionID string, ev GameEvent) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(sessionID, ev)
	}
}

func (s *gameServiceImpl) digEvents(res engine.DigResult, dir engine.Direction, at engine.Point) []GameEvent {
	if !res.Verdict.Allowed {
		return []GameEvent{NewEvent(EventBlocked, blockedMessage(dir, res.Verdict.Reason)).At(res.Verdict.Target)}
	}

	events := []GameEvent{NewEvent(EventMove, fmt.Sprintf("Moved %s to %s", dir, at)).At(at)}
	if res.Dug {
		events = append(events, NewEvent(EventDug, fmt.Sprintf("Dug a hole at %s", at)).At(at))
	}
	if e := res.Collected; e != nil {
		s.metrics.Collected(e.Type.Name, e.Type.Price)
		ev := NewEvent(EventCollected, fmt.Sprintf("Collected %s worth %d", e.Type.Name, e.Type.Price)).At(at)
		ev.Data = e
		events = append(events, ev)
	}
	return events
}

func blockedMessage(dir engine.Direction, reason string) string {
	switch reason {
	case engine.ReasonOutOfBounds:
		return fmt.Sprintf("Can't move %s: edge of the world", dir)
	case engine.ReasonRock:
		return fmt.Sprintf("Can't move %s: rock in the way", dir)
	case engine.ReasonOutOfFuel:
		return fmt.Sprintf("Can't move %s: out of fuel", dir)
	}
	return fmt.Sprintf("Can't move %s", dir)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func sessionInfo(sess *Session) *SessionInfo {
	snap := sess.World.Snapshot()
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessed(),
		World:          &snap,
		WorldConfig:    sess.Config,
	}
}
