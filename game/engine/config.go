package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}

	// Validate required fields
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	// Validate grid size
	if config.GridSize < MinGridSize || config.GridSize > MaxGridSize {
		return fmt.Errorf("config validation: grid_size must be between %d and %d, got %d", MinGridSize, MaxGridSize, config.GridSize)
	}

	// Seeding must leave the board playable
	cells := config.GridSize * config.GridSize
	if config.InitialDice < 1 || config.InitialDice > cells {
		return fmt.Errorf("config validation: initial_dice must be between 1 and %d, got %d", cells, config.InitialDice)
	}

	// Validate messages
	if config.Messages.Welcome == "" {
		return fmt.Errorf("config validation: messages.welcome is required")
	}
	if config.Messages.GameOver == "" {
		return fmt.Errorf("config validation: messages.game_over is required")
	}

	// Validate format strings
	if config.Messages.NewRecord != "" && !strings.Contains(config.Messages.NewRecord, "%d") {
		return fmt.Errorf("config validation: messages.new_record must contain %%d for the die value")
	}
	if !strings.Contains(config.Messages.GameOver, "%d") {
		return fmt.Errorf("config validation: messages.game_over must contain %%d for the final score")
	}
	if config.Messages.Merged != "" && !strings.Contains(config.Messages.Merged, "%d") {
		return fmt.Errorf("config validation: messages.merged must contain %%d for the merged value")
	}

	return nil
}

// ErrMalformedConfig marks config documents that are not valid JSON
var ErrMalformedConfig = errors.New("malformed config")

// ParseGameConfig decodes a JSON config document and validates it.
// Decoding failures wrap ErrMalformedConfig.
func ParseGameConfig(data []byte) (*GameConfig, error) {
	var config GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	if err := ValidateGameConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultGameConfig returns the built-in 5x5 configuration
func DefaultGameConfig() *GameConfig {
	config := &GameConfig{
		Name:        "classic",
		Description: "Classic 5x5 board seeded with three dice",
		GridSize:    DefaultGridSize,
		InitialDice: DefaultInitialDice,
	}
	config.Messages.Welcome = "Merge matching dice to climb higher!"
	config.Messages.Selected = "Die selected"
	config.Messages.Merged = "Merged into a %d!"
	config.Messages.NewRecord = "New record: %d!"
	config.Messages.Spawned = "A new die appeared"
	config.Messages.BoardFull = "The board is full"
	config.Messages.GameOver = "No moves left! Final score: %d"
	return config
}

// InitGameStateFromConfig creates an empty, unseeded game state for the configuration
func InitGameStateFromConfig(config *GameConfig) *GameState {
	if config == nil {
		config = DefaultGameConfig()
	}

	size := config.GridSize
	return &GameState{
		Grid:         make([]int, size*size),
		GridSize:     size,
		Score:        0,
		HighestDie:   1,
		SelectedCell: NoSelection,
		Message:      config.Messages.Welcome,
		GameOver:     false,
		ConfigName:   config.Name,
		MoveHistory:  []MoveHistoryEntry{},
		TotalMoves:   0,
	}
}
