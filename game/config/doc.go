// Package config provides world configuration management for the mining game.
//
// The config package handles:
//   - Loading world configurations from JSON or YAML files
//   - Validation through engine.ValidateWorldConfig
//   - Default configuration selection
//   - Configuration discovery, listing and saving
//
// Configuration Format:
//
// A world configuration is a JSON (.json) or YAML (.yaml, .yml) file in the
// configs directory. The file name without extension is the config ID used
// to create sessions. Each configuration defines:
//   - The grid unit, world width and robot start point
//   - Fuel (starting, capacity, per move), starting balance and dynamite
//   - Gravity and its tick interval
//   - The element catalog and shop prices
//   - Explicit rocks and elements, and an optional seeded generator
//
// Default Configuration:
//
// The default is "default.*" when present, otherwise the first valid config
// in ID order, otherwise the built-in engine.DefaultWorldConfig.
//
// Usage:
//
//	manager, err := config.NewManager("configs", log)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	worldConfig, err := manager.LoadConfig("deep")
//	configs, err := manager.ListConfigs()
package config
