package engine

const (
	// EmptyCell marks a cell that holds no die
	EmptyCell = 0

	// Validation constants
	MinGridSize        = 2
	MaxGridSize        = 12
	DefaultGridSize    = 5
	DefaultInitialDice = 3

	// SpawnOneProbability is the chance that a spawned die shows 1; otherwise it shows 2
	SpawnOneProbability = 0.7
	SpawnLowValue       = 1
	SpawnHighValue      = 2

	// NoSelection is the SelectedCell value when nothing is selected
	NoSelection = -1
)

// Action names recorded in move history
const (
	ActionMerge = "merge"
	ActionSpawn = "spawn"
)

// GameConfig represents the game configuration from JSON
type GameConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	GridSize    int    `json:"grid_size"`
	InitialDice int    `json:"initial_dice"`
	Messages    struct {
		Welcome   string `json:"welcome"`
		Selected  string `json:"selected"`
		Merged    string `json:"merged"`
		NewRecord string `json:"new_record"`
		Spawned   string `json:"spawned"`
		BoardFull string `json:"board_full"`
		GameOver  string `json:"game_over"`
	} `json:"messages"`
}

// GameState represents the complete state of one playthrough
type GameState struct {
	Grid         []int              `json:"grid"`
	GridSize     int                `json:"grid_size"`
	Score        int                `json:"score"`
	HighestDie   int                `json:"highest_die"`
	SelectedCell int                `json:"selected_cell"`
	Message      string             `json:"message"`
	GameOver     bool               `json:"game_over"`
	ConfigName   string             `json:"config_name"`
	RunID        string             `json:"run_id"`
	MoveHistory  []MoveHistoryEntry `json:"move_history"`
	TotalMoves   int                `json:"total_moves"`

	// Computed helper views (not required for core game logic)
	Rows           []string `json:"rows,omitempty"`
	EmptyCells     int      `json:"empty_cells"`
	CanSpawn       bool     `json:"can_spawn"`
	MergeablePairs int      `json:"mergeable_pairs"`
}

// MoveHistoryEntry represents a single accepted action in the game history
type MoveHistoryEntry struct {
	Action     string `json:"action"`
	Source     int    `json:"source"`
	Target     int    `json:"target"`
	Value      int    `json:"value"`
	ScoreAfter int    `json:"score_after"`
	Timestamp  int64  `json:"timestamp"`
	MoveNumber int    `json:"move_number"`
}

// HasSelection reports whether a cell is currently selected
func (gs *GameState) HasSelection() bool {
	return gs.SelectedCell != NoSelection
}

// Clone returns a deep copy of the state, safe to hand to other goroutines
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	c := *gs
	c.Grid = append([]int(nil), gs.Grid...)
	c.MoveHistory = make([]MoveHistoryEntry, len(gs.MoveHistory))
	copy(c.MoveHistory, gs.MoveHistory)
	if gs.Rows != nil {
		c.Rows = append([]string(nil), gs.Rows...)
	}
	return &c
}
