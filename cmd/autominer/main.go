// Command autominer plays a session over the REST API: it digs toward the
// nearest element until the mine is empty, buying fuel when the tank runs low.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
	"github.com/wricardo/mcp-training/mininggame/game/service"
	"github.com/wricardo/mcp-training/mininggame/logging"
)

// APIError is a non-2xx response from the game server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Message)
}

// Client talks to one session of the game server
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + c.sessionID + suffix
}

// CreateSession starts a new session and makes it the client's session
func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", map[string]string{"config_id": configID}, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

func (c *Client) World(ctx context.Context) (*engine.WorldSnapshot, error) {
	var world engine.WorldSnapshot
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/world"), nil, &world); err != nil {
		return nil, err
	}
	return &world, nil
}

func (c *Client) SetGravity(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPost, c.sessionPath("/gravity"), map[string]bool{"enabled": enabled}, nil)
}

func (c *Client) Move(ctx context.Context, d engine.Direction) (*service.MoveResult, error) {
	var result service.MoveResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/move"), map[string]string{"direction": string(d)}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Buy(ctx context.Context, item string) (*service.ShopResult, error) {
	var result service.ShopResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/buy"), map[string]string{"item": item}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Miner runs the play loop
type Miner struct {
	client      *Client
	strategy    *Strategy
	log         logrus.FieldLogger
	maxMoves    int
	minFuel     int
	keepGravity bool
	delay       time.Duration
}

// Report summarizes one run
type Report struct {
	SessionID string
	Moves     int
	Blocked   int
	Collected int
	Refuels   int
	Balance   int
	Remaining int
}

// ErrBroke is returned when the robot needs fuel it cannot pay for
var ErrBroke = errors.New("out of fuel and money")

// Run plays until the mine is empty, the move budget is spent or ctx ends
func (m *Miner) Run(ctx context.Context) (report Report, err error) {
	report.SessionID = m.client.sessionID

	if !m.keepGravity {
		if err := m.client.SetGravity(ctx, false); err != nil {
			return report, fmt.Errorf("disable gravity: %w", err)
		}
	}

	world, err := m.client.World(ctx)
	if err != nil {
		return report, err
	}
	defer func() {
		if world != nil {
			report.Balance = world.Balance
			report.Remaining = len(world.Elements)
		}
	}()

	for report.Moves < m.maxMoves {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if world.Robot.Fuel <= m.minFuel {
			shop, err := m.client.Buy(ctx, engine.ItemFuel)
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusPaymentRequired {
				if world.Robot.Fuel == 0 {
					return report, ErrBroke
				}
			} else if err != nil {
				return report, fmt.Errorf("buy fuel: %w", err)
			} else {
				report.Refuels++
				world = shop.World
				m.log.WithFields(logrus.Fields{"fuel": world.Robot.Fuel, "balance": world.Balance}).Info("refueled")
			}
		}

		dir, ok := m.strategy.NextMove(world)
		if !ok {
			if len(world.Elements) > 0 {
				m.log.WithField("at", world.Robot.Location).Warn("no move left toward the remaining elements")
			}
			return report, nil
		}

		result, err := m.client.Move(ctx, dir)
		if err != nil {
			return report, fmt.Errorf("move %s: %w", dir, err)
		}
		report.Moves++
		world = result.World

		if !result.Success {
			report.Blocked++
			m.strategy.Blocked(result.From, dir)
			m.log.WithFields(logrus.Fields{"direction": dir, "at": result.From, "reason": result.Reason}).Debug("move blocked")
		}
		if result.Collected != nil {
			report.Collected++
			m.log.WithFields(logrus.Fields{
				"element": result.Collected.Type.Name,
				"price":   result.Collected.Type.Price,
				"balance": world.Balance,
			}).Info("collected")
		}

		if m.delay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(m.delay):
			}
		}
	}
	return report, nil
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Game server URL")
	configID := flag.String("config", "", "World config ID (server default when empty)")
	maxMoves := flag.Int("max-moves", 5000, "Maximum moves before giving up")
	minFuel := flag.Int("min-fuel", 5, "Buy fuel when the tank drops to this level")
	keepGravity := flag.Bool("gravity", false, "Leave gravity on while playing")
	delayMs := flag.Int("delay", 0, "Delay between moves in milliseconds")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	log := logging.New(level, os.Getenv("LOG_FORMAT"), os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := NewClient(*serverURL)
	info, err := client.CreateSession(ctx, *configID)
	if err != nil {
		log.WithError(err).Fatal("failed to create session")
	}
	log.WithFields(logrus.Fields{"session": info.ID, "config": info.ConfigName}).Info("session created")

	miner := &Miner{
		client:      client,
		strategy:    NewStrategy(),
		log:         logging.ForSession(log, info.ID),
		maxMoves:    *maxMoves,
		minFuel:     *minFuel,
		keepGravity: *keepGravity,
		delay:       time.Duration(*delayMs) * time.Millisecond,
	}

	report, err := miner.Run(ctx)
	fields := logrus.Fields{
		"session":   report.SessionID,
		"moves":     report.Moves,
		"blocked":   report.Blocked,
		"collected": report.Collected,
		"refuels":   report.Refuels,
		"balance":   report.Balance,
		"remaining": report.Remaining,
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("run stopped")
		os.Exit(1)
	}
	log.WithFields(fields).Info("run finished")
	if report.Remaining > 0 {
		os.Exit(1)
	}
}
