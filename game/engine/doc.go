// Package engine provides the world model of the mining robot game.
//
// The engine package implements:
//   - The unit grid, ground level and map bounds
//   - The entity registry of holes, rocks and collectible elements
//   - The robot with its fuel tank, dynamite and change events
//   - The bank account, shop and portal
//   - Movement legality and the gravity loop
//   - World configuration loading, validation and generation
//
// Core Types:
//
// The Engine interface is implemented by GameWorld, which owns one session's
// registry, robot, bank, shop, portal and gravity loop. WorldConfig describes
// how a world is built and is loaded from JSON or YAML files.
//
// Usage:
//
//	config, err := engine.LoadWorldConfig("configs/default.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	world, err := engine.NewWorld(config, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer world.Close()
//
//	if world.CanMove(engine.Down) {
//		world.Dig(engine.Down)
//	}
//
// Coordinates are world pixels with y growing downwards. Everything above
// the ground level is open air; below it every cell the robot digs into
// becomes a hole, and gravity pulls it down whenever the cell below is open.
package engine
