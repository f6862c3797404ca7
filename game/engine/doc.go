// Package engine provides the core game logic for the Dice Merge Game.
//
// The engine package implements the game mechanics including:
//   - A fixed N x N grid of dice stored in row-major order
//   - Click selection with toggle-off and re-select
//   - Merging two equal dice into one die of the next value
//   - Weighted random spawning (1 at 70%, 2 at 30%) on empty cells
//   - Terminal-state detection and linear scoring
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. GameState represents one playthrough, while
// GameConfig defines the board size, seeding and messages loaded from JSON.
//
// Usage:
//
//	gameEngine, err := engine.NewEngine(engine.DefaultGameConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	recorder := &engine.EventRecorder{}
//	gameEngine.Subscribe(recorder)
//	gameEngine.StartSession()
//
//	outcome, err := gameEngine.SelectOrMerge(0)
//	events := recorder.Drain()
//
// Game Rules:
//
// Selecting a die and then another die of the same value merges them: the
// first die is consumed and the second becomes value+1, adding (value+1)*2
// to the score. The game ends when the board is full and no two
// horizontally or vertically adjacent dice match.
//
// Notifications:
//
// The engine never calls renderers, audio or storage directly. Every state
// change is published as an Event to the observers registered with
// Subscribe, synchronously and in a fixed order.
package engine
