// Command validate checks the game configuration JSON files in a configs
// directory. It checks:
//   - JSON structure and unknown keys
//   - The engine's own rules (name, description, grid_size, initial_dice, messages)
//   - Message keys the UI shows but the engine does not require
//   - File names usable as config ids
//   - Playability: one greedy game runs to its end on the board
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/dicemerge/game/engine"
	"github.com/wricardo/mcp-training/dicemerge/game/strategy"
)

// configIDPattern is what session creation accepts as a config id.
var configIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration JSON file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	config, err := engine.ParseGameConfig(data)
	if errors.Is(err, engine.ErrMalformedConfig) {
		result.fail("Invalid JSON: %s", strings.TrimPrefix(err.Error(), engine.ErrMalformedConfig.Error()+": "))
		return result
	}

	// Same document again, strictly, to flag typos in keys
	strict := json.NewDecoder(bytes.NewReader(data))
	strict.DisallowUnknownFields()
	var strictConfig engine.GameConfig
	if err := strict.Decode(&strictConfig); err != nil {
		result.warn("Unknown key: %v", err)
	}

	id := strings.TrimSuffix(result.File, ".json")
	if !configIDPattern.MatchString(id) {
		result.fail("File name %q is not a usable config id (lowercase letters, digits, '-' and '_')", id)
	}

	if err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), "config validation: "))
		return result
	}

	optional := map[string]string{
		"selected":   config.Messages.Selected,
		"merged":     config.Messages.Merged,
		"new_record": config.Messages.NewRecord,
		"spawned":    config.Messages.Spawned,
		"board_full": config.Messages.BoardFull,
	}
	for _, key := range []string{"selected", "merged", "new_record", "spawned", "board_full"} {
		if optional[key] == "" {
			result.warn("Missing message: %s", key)
		}
	}

	cells := config.GridSize * config.GridSize
	if config.InitialDice == cells {
		result.warn("initial_dice fills the whole board; the first move must be a merge")
	}

	if res, err := smokeTest(config); err != nil {
		result.fail("Playability: %v", err)
	} else {
		result.info("Playability: greedy game ended with score %d, highest die %d", res.Score, res.HighestDie)
	}

	if result.Valid {
		result.info("Name: %s", config.Name)
		result.info("Grid: %dx%d (%d cells)", config.GridSize, config.GridSize, cells)
		result.info("Starting dice: %d", config.InitialDice)
	}

	return result
}

// smokeTest plays one seeded greedy game to completion.
func smokeTest(config *engine.GameConfig) (strategy.Result, error) {
	eng, err := engine.NewEngine(config, engine.WithSeed(1))
	if err != nil {
		return strategy.Result{}, err
	}
	eng.StartSession()
	return strategy.Play(eng, strategy.Greedy{}, 2000*config.GridSize*config.GridSize)
}

// validateDir validates every *.json file in dir and prints a report.
// It reports whether all files were valid.
func validateDir(dir string) (bool, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return false, fmt.Errorf("error finding config files: %w", err)
	}
	if len(files) == 0 {
		return false, fmt.Errorf("no config files in %s", dir)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
		for _, w := range result.Warnings {
			fmt.Println("  ⚠️  " + w)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
	}
	return allValid, nil
}

// main validates the directory given as the first argument (default
// ../configs) and exits non-zero if any file is invalid.
func main() {
	cmd := &cli.Command{
		Name:      "validate",
		Usage:     "Validate game configuration files",
		ArgsUsage: "[config-dir]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := "../configs"
			if cmd.Args().Len() > 0 {
				dir = cmd.Args().First()
			}
			ok, err := validateDir(dir)
			if err != nil {
				return err
			}
			if !ok {
				return cli.Exit("", 1)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
