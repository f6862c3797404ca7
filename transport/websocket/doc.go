// Package websocket provides WebSocket transport for the Dice Merge Game.
//
// The websocket package implements:
//   - Session-aware WebSocket connections
//   - Broadcasting state updates and engine event batches
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is served by a read and a
// write goroutine; only the Hub's Run loop changes the client registry.
//
// Message Protocol:
//
// Every frame is one JSON Message:
//   - state_update: {session_id, event, game_state}
//   - action: {session_id, event, events, game_state}, events in the order
//     the engine emitted them (cell_changed, merge_animation, sound, ...)
//   - session_deleted and other custom events carry data
//
// Clients are render and audio collaborators: they replay the events and
// never send commands over the socket.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Close()
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
