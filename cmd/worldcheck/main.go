// Command worldcheck validates and summarizes the world configuration files in
// a directory. It loads every .json, .yaml and .yml file through the engine's
// own loader, so a file that passes here will also load in the server.
//
//	worldcheck validate configs
//	worldcheck analyze --json configs
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/mininggame/game/engine"
)

// ValidationResult captures the outcome of loading a single file
type ValidationResult struct {
	File   string
	Config *engine.WorldConfig
	Err    error
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "worldcheck",
		Usage: "validate and analyze mining world configs",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "load every config in a directory and report errors",
				ArgsUsage: "[dir]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runValidate(cmd.Root().Writer, dirArg(cmd))
				},
			},
			{
				Name:      "analyze",
				Usage:     "generate each world and count what is in it",
				ArgsUsage: "[dir]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print stats as JSON"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runAnalyze(cmd.Root().Writer, dirArg(cmd), cmd.Bool("json"))
				},
			},
		},
	}
}

func dirArg(cmd *cli.Command) string {
	if dir := cmd.Args().First(); dir != "" {
		return dir
	}
	return "configs"
}

// configFiles lists the world config files in dir, sorted by name
func configFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func validateDir(dir string) ([]ValidationResult, error) {
	files, err := configFiles(dir)
	if err != nil {
		return nil, err
	}

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		config, err := engine.LoadWorldConfig(file)
		results = append(results, ValidationResult{File: filepath.Base(file), Config: config, Err: err})
	}
	return results, nil
}

func runValidate(w io.Writer, dir string) error {
	results, err := validateDir(dir)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no config files found in %s", dir)
	}

	invalid := 0
	for _, r := range results {
		if r.Err != nil {
			invalid++
			fmt.Fprintf(w, "INVALID %s: %v\n", r.File, r.Err)
			continue
		}
		fmt.Fprintf(w, "OK      %s (%s)\n", r.File, r.Config.Name)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d configs have errors", invalid, len(results))
	}
	fmt.Fprintf(w, "All %d configs are valid\n", len(results))
	return nil
}

func runAnalyze(w io.Writer, dir string, asJSON bool) error {
	results, err := validateDir(dir)
	if err != nil {
		return err
	}

	var stats []engine.WorldStats
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "skipping %s: %v\n", r.File, r.Err)
			continue
		}
		stats = append(stats, engine.AnalyzeWorld(r.Config))
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	for _, s := range stats {
		fmt.Fprintf(w, "\n=== %s ===\n", s.Name)
		fmt.Fprintf(w, "Rocks: %d\n", s.Rocks)
		fmt.Fprintf(w, "Elements: %d worth %d credits\n", s.Elements, s.TotalValue)
		for _, tc := range s.ByType {
			fmt.Fprintf(w, "  %-10s x%-4d %d credits\n", tc.Name, tc.Count, tc.Value)
		}
		fmt.Fprintf(w, "Deepest element: y=%d\n", s.DeepestY)
		fmt.Fprintf(w, "Moves to bottom: %d", s.MovesToBottom)
		if s.FuelStops > 0 {
			fmt.Fprintf(w, " (needs %d refuels)", s.FuelStops)
		}
		fmt.Fprintln(w)
	}
	return nil
}
