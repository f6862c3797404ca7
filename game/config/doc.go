// Package config provides configuration management for the Dice Merge Game.
//
// The config package handles:
//   - Loading game configurations from JSON files
//   - Default configuration management
//   - Configuration discovery, listing and saving
//
// Configuration Format:
//
// Game configurations are stored as JSON files in the configs directory.
// Each configuration defines:
//   - grid_size: board edge length (2 to 12)
//   - initial_dice: dice placed when a session starts
//   - Game messages for selection, merges, records and game over
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameConfig, err := manager.LoadConfig("small")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
//
// When classic.json is missing the first valid file becomes the default,
// and an empty directory falls back to engine.DefaultGameConfig.
package config
