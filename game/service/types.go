package service

import (
	"time"

	"github.com/wricardo/mcp-training/dicemerge/game/engine"
	"github.com/wricardo/mcp-training/dicemerge/game/scores"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.GameState  `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// ActionResult contains the result of a select, merge or spawn
type ActionResult struct {
	Success   bool              `json:"success"`
	Outcome   engine.Outcome    `json:"outcome"`
	Reason    string            `json:"reason,omitempty"` // set when the action was rejected
	Message   string            `json:"message"`
	Index     int               `json:"index"` // cell affected: selected, merge target, or spawn position
	Events    []engine.Event    `json:"events"`
	GameState *engine.GameState `json:"game_state"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	GridSize    int    `json:"grid_size"`
	InitialDice int    `json:"initial_dice"`
}

// LeaderboardEntry is one ranked row of the top-scores table
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	scores.Record
}
