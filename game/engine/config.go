package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Placement puts one element of a catalog type at a point
type Placement struct {
	Type string `json:"type" yaml:"type"`
	X    int    `json:"x" yaml:"x"`
	Y    int    `json:"y" yaml:"y"`
}

// GeneratorConfig scatters rocks and elements in the rows below ground level
type GeneratorConfig struct {
	Seed          int64   `json:"seed" yaml:"seed"`
	Rows          int     `json:"rows" yaml:"rows"`
	RockChance    float64 `json:"rock_chance" yaml:"rock_chance"`
	ElementChance float64 `json:"element_chance" yaml:"element_chance"`
}

// WorldConfig describes how a session's world is built
type WorldConfig struct {
	Name              string           `json:"name" yaml:"name"`
	Description       string           `json:"description" yaml:"description"`
	Unit              int              `json:"unit" yaml:"unit"`
	WorldWidth        int              `json:"world_width" yaml:"world_width"`
	Start             Point            `json:"start" yaml:"start"`
	StartingFuel      int              `json:"starting_fuel" yaml:"starting_fuel"`
	FuelCapacity      int              `json:"fuel_capacity" yaml:"fuel_capacity"`
	FuelPerMove       int              `json:"fuel_per_move" yaml:"fuel_per_move"`
	StartingBalance   int              `json:"starting_balance" yaml:"starting_balance"`
	StartingDynamite  int              `json:"starting_dynamite" yaml:"starting_dynamite"`
	Gravity           bool             `json:"gravity" yaml:"gravity"`
	GravityIntervalMS int              `json:"gravity_interval_ms" yaml:"gravity_interval_ms"`
	ElementTypes      []ElementType    `json:"element_types,omitempty" yaml:"element_types,omitempty"`
	ShopPrices        map[string]int   `json:"shop_prices,omitempty" yaml:"shop_prices,omitempty"`
	Rocks             []Point          `json:"rocks,omitempty" yaml:"rocks,omitempty"`
	Elements          []Placement      `json:"elements,omitempty" yaml:"elements,omitempty"`
	Generator         *GeneratorConfig `json:"generator,omitempty" yaml:"generator,omitempty"`
}

// DefaultWorldConfig returns the built-in world
func DefaultWorldConfig() *WorldConfig {
	cfg := &WorldConfig{
		Name:              "default",
		Description:       "Built-in world with a generated mine",
		Unit:              DefaultUnit,
		WorldWidth:        DefaultWorldWidth,
		Start:             Point{X: 400, Y: 0},
		StartingFuel:      100,
		FuelCapacity:      100,
		FuelPerMove:       1,
		StartingBalance:   StartingBalance,
		Gravity:           true,
		GravityIntervalMS: DefaultGravityTick,
		Generator: &GeneratorConfig{
			Seed:          1,
			Rows:          60,
			RockChance:    0.12,
			ElementChance: 0.08,
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with the package defaults.
// A zero starting balance means the default balance.
func (c *WorldConfig) ApplyDefaults() {
	if c.Unit == 0 {
		c.Unit = DefaultUnit
	}
	if c.WorldWidth == 0 {
		c.WorldWidth = DefaultWorldWidth
	}
	if c.FuelPerMove == 0 {
		c.FuelPerMove = 1
	}
	if c.StartingBalance == 0 {
		c.StartingBalance = StartingBalance
	}
	if c.GravityIntervalMS == 0 {
		c.GravityIntervalMS = DefaultGravityTick
	}
	if len(c.ElementTypes) == 0 {
		c.ElementTypes = append([]ElementType(nil), DefaultElementTypes...)
	}
}

// ElementType looks up a catalog entry by name
func (c *WorldConfig) ElementType(name string) (ElementType, bool) {
	for _, t := range c.ElementTypes {
		if t.Name == name {
			return t, true
		}
	}
	return ElementType{}, false
}

// ValidateWorldConfig checks a world configuration for consistency
func ValidateWorldConfig(config *WorldConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}

	if config.Unit < MinUnit || config.Unit > MaxUnit {
		return fmt.Errorf("config validation: unit must be between %d and %d, got %d", MinUnit, MaxUnit, config.Unit)
	}
	if config.WorldWidth < 2*config.Unit || config.WorldWidth%config.Unit != 0 {
		return fmt.Errorf("config validation: world_width must be a multiple of unit (%d) and at least two units, got %d",
			config.Unit, config.WorldWidth)
	}

	if config.FuelCapacity < 1 || config.FuelCapacity > MaxFuelCapacity {
		return fmt.Errorf("config validation: fuel_capacity must be between 1 and %d, got %d", MaxFuelCapacity, config.FuelCapacity)
	}
	if config.StartingFuel < 0 || config.StartingFuel > config.FuelCapacity {
		return fmt.Errorf("config validation: starting_fuel must be between 0 and fuel_capacity (%d), got %d",
			config.FuelCapacity, config.StartingFuel)
	}
	if config.FuelPerMove < 1 {
		return fmt.Errorf("config validation: fuel_per_move must be positive, got %d", config.FuelPerMove)
	}
	if config.StartingBalance < 0 {
		return fmt.Errorf("config validation: starting_balance cannot be negative, got %d", config.StartingBalance)
	}
	if config.StartingDynamite < 0 {
		return fmt.Errorf("config validation: starting_dynamite cannot be negative, got %d", config.StartingDynamite)
	}
	if config.GravityIntervalMS < 1 {
		return fmt.Errorf("config validation: gravity_interval_ms must be positive, got %d", config.GravityIntervalMS)
	}

	seen := make(map[string]bool, len(config.ElementTypes))
	for i, t := range config.ElementTypes {
		if t.Name == "" {
			return fmt.Errorf("config validation: element_types[%d] has no name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("config validation: element type %q defined twice", t.Name)
		}
		if t.Price < 0 {
			return fmt.Errorf("config validation: element type %q has negative price %d", t.Name, t.Price)
		}
		seen[t.Name] = true
	}

	for item, price := range config.ShopPrices {
		if _, ok := DefaultShopPrices[item]; !ok {
			return fmt.Errorf("config validation: shop_prices has unknown item %q", item)
		}
		if price < 0 {
			return fmt.Errorf("config validation: shop price for %q cannot be negative, got %d", item, price)
		}
	}

	geom := NewGeometry(config.Unit)
	if err := checkPlacement(geom, config.WorldWidth, config.Start); err != nil {
		return fmt.Errorf("config validation: start %v: %v", config.Start, err)
	}

	rocks := make(map[Point]bool, len(config.Rocks))
	for _, p := range config.Rocks {
		if err := checkPlacement(geom, config.WorldWidth, p); err != nil {
			return fmt.Errorf("config validation: rock %v: %v", p, err)
		}
		if rocks[p] {
			return fmt.Errorf("config validation: two rocks at %v", p)
		}
		if p == config.Start {
			return fmt.Errorf("config validation: rock %v covers the start position", p)
		}
		rocks[p] = true
	}

	for _, e := range config.Elements {
		p := Point{X: e.X, Y: e.Y}
		if _, ok := config.ElementType(e.Type); !ok {
			return fmt.Errorf("config validation: element at %v has unknown type %q", p, e.Type)
		}
		if err := checkPlacement(geom, config.WorldWidth, p); err != nil {
			return fmt.Errorf("config validation: element %v: %v", p, err)
		}
	}

	if g := config.Generator; g != nil {
		if g.Rows < 0 || g.Rows > MaxGeneratorRows {
			return fmt.Errorf("config validation: generator.rows must be between 0 and %d, got %d", MaxGeneratorRows, g.Rows)
		}
		if g.RockChance < 0 || g.ElementChance < 0 || g.RockChance+g.ElementChance > 1 {
			return fmt.Errorf("config validation: generator chances must be non-negative and sum to at most 1")
		}
	}

	return nil
}

func checkPlacement(g Geometry, width int, p Point) error {
	if !g.Aligned(p) {
		return fmt.Errorf("not aligned to unit %d", g.Unit)
	}
	if p.X < 0 || p.X > width-g.Unit || p.Y < 0 || p.Y > BottomLimit {
		return fmt.Errorf("outside the world")
	}
	return nil
}

// Generate returns the rocks and elements of the world: explicit placements
// first, then the seeded scatter below ground level. The same config always
// produces the same world.
func (c *WorldConfig) Generate() ([]Point, []Element) {
	rocks := append([]Point(nil), c.Rocks...)
	elements := make([]Element, 0, len(c.Elements))
	for _, e := range c.Elements {
		t, _ := c.ElementType(e.Type)
		elements = append(elements, Element{Type: t, Location: Point{X: e.X, Y: e.Y}})
	}

	g := c.Generator
	if g == nil || g.Rows == 0 || len(c.ElementTypes) == 0 {
		return rocks, elements
	}

	taken := make(map[Point]bool, len(rocks)+len(elements))
	for _, p := range rocks {
		taken[p] = true
	}
	for _, e := range elements {
		taken[e.Location] = true
	}

	rng := rand.New(rand.NewSource(g.Seed))
	geom := NewGeometry(c.Unit)
	for row := 1; row <= g.Rows; row++ {
		y := geom.GroundLevel + row*c.Unit
		if y > BottomLimit {
			break
		}
		for x := 0; x <= c.WorldWidth-c.Unit; x += c.Unit {
			roll := rng.Float64()
			p := Point{X: x, Y: y}
			if taken[p] || p == c.Start {
				continue
			}
			switch {
			case roll < g.RockChance:
				rocks = append(rocks, p)
			case roll < g.RockChance+g.ElementChance:
				t := c.ElementTypes[pickType(rng, len(c.ElementTypes), row, g.Rows)]
				elements = append(elements, Element{Type: t, Location: p})
			default:
				continue
			}
			taken[p] = true
		}
	}
	return rocks, elements
}

// pickType favors pricier catalog entries deeper in the mine
func pickType(rng *rand.Rand, n, row, rows int) int {
	depth := float64(row) / float64(rows)
	idx := int(rng.Float64() * float64(n) * (0.4 + 0.6*depth))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// DecodeWorldConfig parses JSON or YAML depending on the file extension
func DecodeWorldConfig(filename string, data []byte) (*WorldConfig, error) {
	var config WorldConfig
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	}
	config.ApplyDefaults()
	return &config, nil
}

// LoadWorldConfig loads and validates a world configuration file
func LoadWorldConfig(filename string) (*WorldConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config, err := DecodeWorldConfig(filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", filename, err)
	}

	if err := ValidateWorldConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", filename, err)
	}

	return config, nil
}
