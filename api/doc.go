// Package api provides HTTP REST API handlers for the Dice Merge game.
//
// The api package implements:
//   - Session management endpoints
//   - Select, merge, spawn and new-game actions
//   - Configuration listing and creation
//   - The top-scores leaderboard
//   - WebSocket upgrade handling
//   - Static file serving
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session ({"config_id": "classic"})
//   - GET /api/sessions - List sessions (?sort=accessed|created|score&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current board and derived views
//   - POST /api/sessions/{id}/select - Click a cell ({"index": 7})
//   - POST /api/sessions/{id}/merge - Drag one die onto another ({"source": 7, "target": 8})
//   - POST /api/sessions/{id}/spawn - Roll a new die onto a random empty cell
//   - POST /api/sessions/{id}/new-game - Clear the board and start a fresh run
//   - GET /api/sessions/{id}/history - Paginated move history (?page=&limit=&order=)
//
// Configuration and Scores:
//   - GET /api/configs - List available configurations
//   - GET /api/configs/{name} - Load one configuration
//   - POST /api/configs - Save a configuration
//   - GET /api/leaderboard - Best recorded runs (?limit=N)
//
// Action Responses:
//
// Every action answers 200 with an ActionResult. A move the rules refuse
// is not an HTTP error:
//
//	{
//	  "success": false,
//	  "outcome": "rejected",
//	  "reason": "value_mismatch",
//	  "events": [],
//	  "game_state": {...}
//	}
//
// Accepted actions carry the ordered engine events they produced, and the
// same batch is pushed to the session's WebSocket clients as an "action"
// message.
//
// Error Handling:
//
// Request and lookup failures are returned as JSON with a matching status
// code (400 bad input, 404 unknown session or config, 500 otherwise):
//
//	{
//	  "error": "error message"
//	}
package api
