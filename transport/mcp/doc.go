// Package mcp provides the Model Context Protocol front end for Dice Merge.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API and the JSON answer is rendered as text an agent can read.
//
// MCP Tools:
//   - create_session, get_session, list_sessions: session management
//   - game_state: board with the selected cell bracketed and mergeable pairs listed
//   - select_cell: click a cell by row-major index
//   - merge_cells: drag a die onto an adjacent equal die
//   - spawn_die: roll a new die onto a random empty cell
//   - new_game: start a fresh run in the same session
//   - move_history: paginated merges and spawns
//   - describe_cell: value and neighbours of one cell
//   - list_configs: available boards
//   - leaderboard: best recorded runs
//   - game_instructions: rules and strategy notes
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: the /mcp endpoint hands request bodies to HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
