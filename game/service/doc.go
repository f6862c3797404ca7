// Package service provides the business logic layer for the Dice Merge Game.
//
// The service package implements:
//   - Multi-session game management
//   - Configuration management and loading
//   - Select, merge, spawn and new-game actions
//   - Forwarding score snapshots to the score recorder
//   - Paginated move history and the leaderboard
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages game configuration loading and validation.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Every action takes the service lock, subscribes an
// engine.EventRecorder for the duration of the call and returns the collected
// events in the ActionResult, so transports can push them to clients in
// emission order.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	recorder := scores.NewRecorder(scores.NewMemoryStore(), scores.DefaultSnapshotInterval)
//	gameService := service.NewGameService(sessionMgr, configMgr, service.WithRecorder(recorder))
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.Select(ctx, info.ID, 0)
//
// Rejections:
//
// Engine rejections (game over, empty cell, mismatched values, full board)
// are not errors. They come back as ActionResult{Success: false} with a
// Reason code and the unchanged state. Errors are reserved for unknown
// sessions and host failures.
package service
