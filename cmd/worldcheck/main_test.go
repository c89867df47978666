package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
)

const validJSON = `{
  "name": "tiny",
  "unit": 25,
  "world_width": 200,
  "start": {"x": 100, "y": 0},
  "starting_fuel": 50,
  "fuel_capacity": 50,
  "rocks": [{"x": 100, "y": 225}],
  "elements": [{"type": "gold", "x": 50, "y": 250}, {"type": "coal", "x": 75, "y": 250}]
}`

const validYAML = `name: scattered
unit: 25
world_width: 200
start: {x: 0, y: 0}
starting_fuel: 100
fuel_capacity: 100
generator:
  seed: 7
  rows: 10
  rock_chance: 0.1
  element_chance: 0.2
`

func writeConfigs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(context.Background(), append([]string{"worldcheck"}, args...))
	return out.String(), err
}

func TestValidate(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"tiny.json":     validJSON,
		"scattered.yml": validYAML,
		"notes.txt":     "ignored",
	})

	out, err := run(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "OK      scattered.yml (scattered)")
	assert.Contains(t, out, "OK      tiny.json (tiny)")
	assert.Contains(t, out, "All 2 configs are valid")
	assert.NotContains(t, out, "notes.txt")
}

func TestValidate_Invalid(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"tiny.json":   validJSON,
		"broken.json": `{"name": "broken", "unit": 3}`,
		"bad.json":    `{not json`,
	})

	out, err := run(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 configs have errors")
	assert.Contains(t, out, "INVALID broken.json")
	assert.Contains(t, out, "unit must be between")
	assert.Contains(t, out, "INVALID bad.json")
}

func TestValidate_EmptyDir(t *testing.T) {
	_, err := run(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config files")
}

func TestValidate_MissingDir(t *testing.T) {
	_, err := run(t, "validate", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	dir := writeConfigs(t, map[string]string{"tiny.json": validJSON})

	out, err := run(t, "analyze", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "=== tiny ===")
	assert.Contains(t, out, "Rocks: 1")
	assert.Contains(t, out, "Elements: 2 worth 55 credits")
	assert.Contains(t, out, "Deepest element: y=250")
}

func TestAnalyze_JSON(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"tiny.json":   validJSON,
		"broken.json": `{"name": ""}`,
	})

	out, err := run(t, "analyze", "--json", dir)
	require.NoError(t, err)

	// The skip notice precedes the JSON document
	start := strings.Index(out, "[")
	require.GreaterOrEqual(t, start, 0)
	assert.Contains(t, out[:start], "skipping broken.json")

	var stats []engine.WorldStats
	require.NoError(t, json.Unmarshal([]byte(out[start:]), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, "tiny", stats[0].Name)
	assert.Equal(t, 55, stats[0].TotalValue)
}

func TestRepositoryConfigsAreValid(t *testing.T) {
	dir := filepath.Join("..", "..", "configs")
	if _, err := os.Stat(dir); err != nil {
		t.Skip("configs directory not present")
	}

	results, err := validateDir(dir)
	require.NoError(t, err)
	for _, r := range results {
		assert.NoError(t, r.Err, r.File)
	}
}
