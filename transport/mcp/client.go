package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/dicemerge/game/engine"
	"github.com/wricardo/mcp-training/dicemerge/game/service"
)

const (
	serverName    = "Dice Merge"
	serverVersion = "1.0.0"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Dice Merge - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Merge equal dice that sit next to each other to build the highest die and score.
The game ends when the board is full and no two neighbours match.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: manage games
- game_state: board, score, empty cells and mergeable pairs
- select_cell: click a cell (select, deselect, reselect or merge into it)
- merge_cells: drag one die onto an adjacent equal die
- spawn_die: roll a new die onto a random empty cell
- new_game: clear the board and start a fresh run
- move_history: view past merges and spawns
- describe_cell: inspect one cell and its neighbours
- list_configs: board sizes available
- leaderboard: best recorded runs
- game_instructions: full rules

NOTE: The 'intent' parameter on action tools serves as rubber duck debugging - explain your reasoning!`),
	)

	// Register all tools
	c.registerTools()
}

func sessionParam() mcp.ToolOption {
	return mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session ID"),
	)
}

func intentParam() mcp.ToolOption {
	return mcp.WithString("intent",
		mcp.Description("Brief explanation of the intent behind this action (serves as a rubber duck to help explain your reasoning)"),
	)
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a new game session with optional config selection"),
		mcp.WithString("config_id",
			mcp.Description("Config to use, as listed by list_configs (optional, defaults to classic)"),
		),
	), c.handleCreateSession)

	c.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List all active game sessions"),
	), c.handleListSessions)

	c.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get details of a specific session"),
		sessionParam(),
	), c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.NewTool("game_state",
		mcp.WithDescription("Get the current board, score and available moves"),
		sessionParam(),
	), c.handleGameState)

	c.mcpServer.AddTool(mcp.NewTool("select_cell",
		mcp.WithDescription("Click a cell. Selects a die, deselects it when clicked again, "+
			"moves the selection to a non-matching die, or merges the selected die into an adjacent equal one."),
		sessionParam(),
		mcp.WithNumber("index",
			mcp.Required(),
			mcp.Description("Row-major cell index (row*grid_size + col, 0-based)"),
			mcp.Min(0),
		),
		intentParam(),
	), c.handleSelectCell)

	c.mcpServer.AddTool(mcp.NewTool("merge_cells",
		mcp.WithDescription("Drag the die at source onto the adjacent die at target. Both must show the same value."),
		sessionParam(),
		mcp.WithNumber("source",
			mcp.Required(),
			mcp.Description("Cell index of the die being moved"),
			mcp.Min(0),
		),
		mcp.WithNumber("target",
			mcp.Required(),
			mcp.Description("Cell index of the die that grows"),
			mcp.Min(0),
		),
		intentParam(),
	), c.handleMergeCells)

	c.mcpServer.AddTool(mcp.NewTool("spawn_die",
		mcp.WithDescription("Roll a new die (1 or 2) onto a random empty cell"),
		sessionParam(),
		intentParam(),
	), c.handleSpawnDie)

	c.mcpServer.AddTool(mcp.NewTool("new_game",
		mcp.WithDescription("Clear the board and start a fresh run in the same session"),
		sessionParam(),
	), c.handleNewGame)

	c.mcpServer.AddTool(mcp.NewTool("move_history",
		mcp.WithDescription("Get move history for a session"),
		sessionParam(),
		mcp.WithNumber("page", mcp.Description("Page number")),
		mcp.WithNumber("limit", mcp.Description("Items per page")),
		mcp.WithString("order",
			mcp.Description("asc or desc (default desc)"),
			mcp.Enum("asc", "desc"),
		),
	), c.handleMoveHistory)

	c.mcpServer.AddTool(mcp.NewTool("list_configs",
		mcp.WithDescription("List available game configurations"),
	), c.handleListConfigs)

	c.mcpServer.AddTool(mcp.NewTool("leaderboard",
		mcp.WithDescription("Show the best recorded runs across all sessions"),
		mcp.WithNumber("limit",
			mcp.Description("Number of entries (1-10, default 10)"),
			mcp.Min(1),
			mcp.Max(10),
		),
	), c.handleLeaderboard)

	c.mcpServer.AddTool(mcp.NewTool("game_instructions",
		mcp.WithDescription("Get comprehensive game instructions and rules"),
	), c.handleGameInstructions)

	c.mcpServer.AddTool(mcp.NewTool("describe_cell",
		mcp.WithDescription("Get detailed information about one cell: its value, its neighbours and which of them it can merge with."),
		sessionParam(),
		mcp.WithNumber("index",
			mcp.Description("Row-major cell index (use this or row+col)"),
		),
		mcp.WithNumber("row", mcp.Description("Row of the cell (0-based)")),
		mcp.WithNumber("col", mcp.Description("Column of the cell (0-based)")),
	), c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool inputs

type sessionInput struct {
	SessionID string `json:"session_id"`
	Intent    string `json:"intent"`
}

type selectInput struct {
	SessionID string `json:"session_id"`
	Index     *int   `json:"index"`
	Intent    string `json:"intent"`
}

type mergeInput struct {
	SessionID string `json:"session_id"`
	Source    *int   `json:"source"`
	Target    *int   `json:"target"`
	Intent    string `json:"intent"`
}

type historyInput struct {
	SessionID string `json:"session_id"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	Order     string `json:"order"`
}

type describeInput struct {
	SessionID string `json:"session_id"`
	Index     *int   `json:"index"`
	Row       *int   `json:"row"`
	Col       *int   `json:"col"`
}

// bindSession decodes the arguments and insists on a session id
func bindSession(request mcp.CallToolRequest, target interface{}, sessionID func() string) *mcp.CallToolResult {
	if err := request.BindArguments(target); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err)
	}
	if sessionID() == "" {
		return mcp.NewToolResultError("session_id is required")
	}
	return nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input struct {
		ConfigID string `json:"config_id"`
	}
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}

	body := map[string]string{}
	if input.ConfigID != "" {
		body["config_id"] = input.ConfigID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s", session.ID, session.ConfigName, formatGameState(session.GameState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		score, over := 0, false
		if s.GameState != nil {
			score, over = s.GameState.Score, s.GameState.GameOver
		}
		status := "playing"
		if over {
			status = "game over"
		}
		result += fmt.Sprintf("- %s (Config: %s, Score: %d, %s, Created: %s)\n",
			s.ID, s.ConfigName, score, status, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input sessionInput
	if res := bindSession(request, &input, func() string { return input.SessionID }); res != nil {
		return res, nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+url.PathEscape(input.SessionID), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input sessionInput
	if res := bindSession(request, &input, func() string { return input.SessionID }); res != nil {
		return res, nil
	}

	state, err := c.fetchState(ctx, input.SessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(state)), nil
}

func (c *Client) fetchState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	var state engine.GameState
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/sessions/%s/state", url.PathEscape(sessionID)), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) handleSelectCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input selectInput
	if res := bindSession(request, &input, func() string { return input.SessionID }); res != nil {
		return res, nil
	}
	if input.Index == nil {
		return mcp.NewToolResultError("index is required"), nil
	}

	// Intent parameter serves as rubber duck debugging - we don't need to process it further
	_ = input.Intent

	return c.postAction(ctx, input.SessionID, "select", map[string]int{"index": *input.Index})
}

func (c *Client) handleMergeCells(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input mergeInput
	if res := bindSession(request, &input, func() string { return input.SessionID }); res != nil {
		return res, nil
	}
	if input.Source == nil || input.Target == nil {
		return mcp.NewToolResultError("source and target are required"), nil
	}

	return c.postAction(ctx, input.SessionID, "merge", map[string]int{
		"source": *input.Source,
		"target": *input.Target,
	})
}

func (c *Client) handleSpawnDie(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input sessionInput
	if res := bindSession(request, &input, func() string { return input.SessionID }); res != nil {
		return res, nil
	}
	return c.postAction(ctx, input.SessionID, "spawn", nil)
}

func (c *Client) handleNewGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input sessionInput
	if res := bindSession(request, &input, func() string { return input.SessionID }); res != nil {
		return res, nil
	}
	return c.postAction(ctx, input.SessionID, "new-game", nil)
}

func (c *Client) postAction(ctx context.Context, sessionID, action string, body interface{}) (*mcp.CallToolResult, error) {
	var result service.ActionResult
	path := fmt.Sprintf("/api/sessions/%s/%s", url.PathEscape(sessionID), action)
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input historyInput
	if res := bindSession(request, &input, func() string { return input.SessionID }); res != nil {
		return res, nil
	}

	params := url.Values{}
	if input.Page > 0 {
		params.Set("page", fmt.Sprint(input.Page))
	}
	if input.Limit > 0 {
		params.Set("limit", fmt.Sprint(input.Limit))
	}
	if input.Order != "" {
		params.Set("order", input.Order)
	}

	path := fmt.Sprintf("/api/sessions/%s/history", url.PathEscape(input.SessionID))
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Configurations:\n\n"
	for _, config := range configs {
		result += fmt.Sprintf("• %s (config_id: %s)\n  %s\n  Grid: %dx%d, Starting dice: %d\n\n",
			config.Name, config.ConfigID, config.Description, config.GridSize, config.GridSize, config.InitialDice)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input struct {
		Limit int `json:"limit"`
	}
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}

	path := "/api/leaderboard"
	if input.Limit > 0 {
		path += fmt.Sprintf("?limit=%d", input.Limit)
	}

	var response struct {
		Count   int                        `json:"count"`
		Entries []service.LeaderboardEntry `json:"entries"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLeaderboard(response.Entries)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `🎲 Dice Merge - Complete Instructions

GAME OBJECTIVE:
Grow the highest die you can. Every merge scores twice the value it creates.

BOARD:
• A square grid (5x5 on the classic config), cells numbered row by row from 0
• index = row * grid_size + col
• "." is an empty cell, a number is a die showing that value
• A new game starts with a few dice showing 1

GAME MECHANICS:
• Merge: two dice with the same value that share an edge (up, down, left or right)
  combine. The target grows by one, the source cell empties. Diagonals never merge.
• Score: a merge into value N adds 2*N points
• Spawn: rolls a die onto a random empty cell. It shows 1 most of the time, 2 otherwise.
  Spawning needs at least one empty cell.
• Game Over: the board is full and no two neighbours show the same value

TWO WAYS TO MERGE:
1. select_cell on a die to select it, then select_cell on an equal neighbour to merge into it
   - clicking the selected die again deselects it
   - clicking any other die (not an equal neighbour) moves the selection there
   - clicking an empty cell does nothing
2. merge_cells with source and target in a single call

🤖 STRATEGY NOTES:
- Merge before you spawn: every spawn fills a cell you may need later
- Keep big dice in a corner and build a chain of descending values next to them
- A merge that lands next to a die one higher sets up the next merge
- game_state lists mergeable_pairs; when it is 0 your only move is spawn_die
- describe_cell shows the neighbours of a cell and which of them can merge

🚨 PITFALLS:
- ❌ Merging dice that are not adjacent or not equal (the move is rejected)
- ❌ Spawning when pairs are available and filling the board
- ❌ Forgetting that index counts from 0

Good luck building that big die!`

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input describeInput
	if res := bindSession(request, &input, func() string { return input.SessionID }); res != nil {
		return res, nil
	}

	state, err := c.fetchState(ctx, input.SessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	size := state.GridSize
	var index int
	switch {
	case input.Index != nil:
		index = *input.Index
	case input.Row != nil && input.Col != nil:
		if *input.Row < 0 || *input.Row >= size || *input.Col < 0 || *input.Col >= size {
			return mcp.NewToolResultError(fmt.Sprintf("row/col (%d,%d) out of bounds for a %dx%d grid", *input.Row, *input.Col, size, size)), nil
		}
		index = engine.CellIndex(*input.Row, *input.Col, size)
	default:
		return mcp.NewToolResultError("provide index, or row and col"), nil
	}

	if index < 0 || index >= len(state.Grid) {
		return mcp.NewToolResultError(fmt.Sprintf("index %d out of range (0..%d)", index, len(state.Grid)-1)), nil
	}

	return mcp.NewToolResultText(describeCell(state, index)), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameState(session.GameState))
}

func cellLabel(v int) string {
	if v == engine.EmptyCell {
		return "."
	}
	return fmt.Sprint(v)
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state available"
	}

	var result strings.Builder
	size := state.GridSize

	result.WriteString(fmt.Sprintf("Score: %d | Highest die: %d | Moves: %d | Empty cells: %d\n",
		state.Score, state.HighestDie, state.TotalMoves, engine.CountEmpty(state.Grid)))
	if state.HasSelection() {
		row, col := engine.CellRowCol(state.SelectedCell, size)
		result.WriteString(fmt.Sprintf("Selected: cell %d (row %d, col %d)\n", state.SelectedCell, row, col))
	}
	result.WriteString("\n")

	// Grid, selected cell in brackets
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			i := engine.CellIndex(row, col, size)
			if i >= len(state.Grid) {
				continue
			}
			label := cellLabel(state.Grid[i])
			if i == state.SelectedCell {
				result.WriteString(fmt.Sprintf("[%s]", label))
			} else {
				result.WriteString(fmt.Sprintf(" %s ", label))
			}
		}
		result.WriteString("\n")
	}

	if counts := engine.ValueCounts(state.Grid); len(counts) > 0 {
		values := make([]int, 0, len(counts))
		for v := range counts {
			values = append(values, v)
		}
		sort.Ints(values)
		parts := make([]string, 0, len(values))
		for _, v := range values {
			parts = append(parts, fmt.Sprintf("%d×%d", v, counts[v]))
		}
		result.WriteString("\nDice: " + strings.Join(parts, " ") + "\n")
	}

	if pairs := engine.AdjacentEqualPairs(state.Grid, size); len(pairs) > 0 {
		parts := make([]string, 0, len(pairs))
		for _, p := range pairs {
			parts = append(parts, fmt.Sprintf("%d-%d", p.A, p.B))
		}
		result.WriteString("\nMergeable pairs: " + strings.Join(parts, ", ") + "\n")
	} else if !state.GameOver {
		result.WriteString("\nNo mergeable pairs: spawn a die\n")
	}

	if state.GameOver {
		result.WriteString("\n💀 GAME OVER")
	}

	if state.Message != "" {
		result.WriteString(fmt.Sprintf("\nMessage: %s", state.Message))
	}

	return result.String()
}

func formatActionResult(result *service.ActionResult) string {
	var b strings.Builder
	if result.Success {
		b.WriteString(fmt.Sprintf("✓ %s", result.Outcome))
		if result.Index >= 0 {
			b.WriteString(fmt.Sprintf(" (cell %d)", result.Index))
		}
		b.WriteString("\n")
	} else {
		b.WriteString(fmt.Sprintf("✗ Rejected: %s\n", result.Reason))
		if result.Message != "" {
			b.WriteString(result.Message + "\n")
		}
	}

	if len(result.Events) > 0 {
		b.WriteString("Events:\n")
		for _, event := range result.Events {
			b.WriteString("- " + formatEvent(event) + "\n")
		}
	}

	b.WriteString("\n" + formatGameState(result.GameState))
	return b.String()
}

func formatEvent(ev engine.Event) string {
	switch ev.Type {
	case engine.EventCellChanged:
		return fmt.Sprintf("%s: cell %d -> %s", ev.Type, ev.Index, cellLabel(ev.Value))
	case engine.EventMergeAnimation:
		return fmt.Sprintf("%s: %d onto %d makes %d", ev.Type, ev.Source, ev.Index, ev.Value)
	case engine.EventScoreChanged, engine.EventScoreSnapshot:
		return fmt.Sprintf("%s: score %d, highest %d", ev.Type, ev.Score, ev.HighestDie)
	case engine.EventSelectionChanged:
		return fmt.Sprintf("%s: cell %d selected=%v", ev.Type, ev.Index, ev.Selected)
	case engine.EventSpawnAvailability:
		return fmt.Sprintf("%s: %v", ev.Type, ev.Available)
	case engine.EventSound:
		return fmt.Sprintf("%s: %s", ev.Type, ev.Sound)
	}
	if ev.Message != "" {
		return fmt.Sprintf("%s: %s", ev.Type, ev.Message)
	}
	return string(ev.Type)
}

// describeCell lists a cell's value and its four neighbours
func describeCell(state *engine.GameState, index int) string {
	size := state.GridSize
	row, col := engine.CellRowCol(index, size)
	value := state.Grid[index]

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Cell %d (row %d, col %d):\n", index, row, col))
	b.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━\n")
	if value == engine.EmptyCell {
		b.WriteString("Value: empty\n")
	} else {
		b.WriteString(fmt.Sprintf("Value: %d\n", value))
	}
	if index == state.SelectedCell {
		b.WriteString("Selected: yes\n")
	}

	neighbours := []struct {
		name       string
		dRow, dCol int
	}{
		{"up", -1, 0},
		{"down", 1, 0},
		{"left", 0, -1},
		{"right", 0, 1},
	}

	var merges []string
	b.WriteString("Neighbours:\n")
	for _, n := range neighbours {
		r, c := row+n.dRow, col+n.dCol
		if r < 0 || r >= size || c < 0 || c >= size {
			b.WriteString(fmt.Sprintf("  %-5s edge\n", n.name))
			continue
		}
		i := engine.CellIndex(r, c, size)
		b.WriteString(fmt.Sprintf("  %-5s cell %d = %s\n", n.name, i, cellLabel(state.Grid[i])))
		if value != engine.EmptyCell && state.Grid[i] == value {
			merges = append(merges, fmt.Sprint(i))
		}
	}

	switch {
	case value == engine.EmptyCell:
		b.WriteString("\nEmpty cells can receive a spawned die.")
	case len(merges) > 0:
		b.WriteString(fmt.Sprintf("\n✅ Can merge with cell(s) %s into a %d.", strings.Join(merges, ", "), value+1))
	default:
		b.WriteString("\nNo equal neighbour: this die cannot merge right now.")
	}

	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Move History (page %d/%d, %d total moves):\n\n",
		history.Page, history.TotalPages, history.TotalMoves))

	for _, move := range history.Moves {
		switch move.Action {
		case engine.ActionMerge:
			b.WriteString(fmt.Sprintf("#%d merge %d -> %d = %d (score %d)\n",
				move.MoveNumber, move.Source, move.Target, move.Value, move.ScoreAfter))
		default:
			b.WriteString(fmt.Sprintf("#%d %s at %d = %d (score %d)\n",
				move.MoveNumber, move.Action, move.Target, move.Value, move.ScoreAfter))
		}
	}

	if history.HasNext {
		b.WriteString(fmt.Sprintf("\nMore moves on page %d", history.Page+1))
	}
	return b.String()
}

func formatLeaderboard(entries []service.LeaderboardEntry) string {
	if len(entries) == 0 {
		return "No scores recorded yet"
	}

	var b strings.Builder
	b.WriteString("🏆 Leaderboard\n\n")
	for _, e := range entries {
		status := "in progress"
		if e.Final {
			status = "final"
		}
		b.WriteString(fmt.Sprintf("%2d. %6d pts  highest %d  (%s, session %s, %s)\n",
			e.Rank, e.Score, e.HighestDie, e.ConfigName, e.SessionID, status))
	}
	return b.String()
}
