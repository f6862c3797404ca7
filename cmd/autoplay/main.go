// Command autoplay plays a Dice Merge session over the REST API with one of
// the automatic strategies. It keeps the session id in a .session file so a
// later run continues the same session, and plays a fresh game per attempt.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/dicemerge/game/engine"
	"github.com/wricardo/mcp-training/dicemerge/game/strategy"
)

const sessionFile = ".session"

// Options control a run of the bot
type Options struct {
	ConfigID   string
	SessionID  string
	Strategy   string
	Seed       int64
	MaxMoves   int
	Attempts   int
	Delay      time.Duration
	Click      bool // merge through two select calls instead of /merge
	Verbose    bool
	SaveSession bool
}

// Attempt is the outcome of one played game
type Attempt struct {
	Number     int
	Moves      int
	Score      int
	HighestDie int
	GameOver   bool
}

func main() {
	cmd := &cli.Command{
		Name:  "autoplay",
		Usage: "Play Dice Merge automatically against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL"},
			&cli.StringFlag{Name: "config", Usage: "Config id for a new session (default, small, large, ...)"},
			&cli.StringFlag{Name: "continue", Usage: "Resume an existing session by ID"},
			&cli.StringFlag{Name: "strategy", Value: "greedy", Usage: "greedy or random"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Seed for the random strategy"},
			&cli.IntFlag{Name: "max-moves", Value: 3000, Usage: "Maximum moves per attempt"},
			&cli.IntFlag{Name: "attempts", Value: 1, Usage: "Games to play"},
			&cli.IntFlag{Name: "delay", Usage: "Delay between moves in milliseconds"},
			&cli.BoolFlag{Name: "click", Usage: "Merge by selecting source then target, like the web UI"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := Options{
				ConfigID:   cmd.String("config"),
				SessionID:  cmd.String("continue"),
				Strategy:   cmd.String("strategy"),
				Seed:       int64(cmd.Int("seed")),
				MaxMoves:   int(cmd.Int("max-moves")),
				Attempts:   int(cmd.Int("attempts")),
				Delay:      time.Duration(cmd.Int("delay")) * time.Millisecond,
				Click:      cmd.Bool("click"),
				Verbose:    cmd.Bool("v"),
				SaveSession: true,
			}
			if opts.SessionID == "" {
				if data, err := os.ReadFile(sessionFile); err == nil {
					opts.SessionID = string(bytes.TrimSpace(data))
				}
			}

			url := cmd.String("url")
			log.Printf("Connecting to game server at %s", url)
			client := NewClient(url)

			attempts, err := run(ctx, client, opts)
			if err != nil {
				return err
			}

			best := attempts[0]
			for _, a := range attempts[1:] {
				if a.Score > best.Score {
					best = a
				}
			}
			log.Printf("🏁 Best of %d: score %d, highest die %d (attempt %d)", len(attempts), best.Score, best.HighestDie, best.Number)
			log.Printf("Session: %s", client.SessionID())

			if entries, err := client.Leaderboard(ctx, 5); err == nil && len(entries) > 0 {
				log.Printf("Leaderboard:")
				for _, e := range entries {
					log.Printf("  %2d. %6d pts  highest %d  (%s)", e.Rank, e.Score, e.HighestDie, e.ConfigName)
				}
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newChooser(name string, seed int64) (strategy.Chooser, error) {
	switch name {
	case "greedy":
		return strategy.Greedy{}, nil
	case "random":
		return strategy.NewRandom(seed), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// run resumes or creates a session and plays opts.Attempts games on it
func run(ctx context.Context, client *Client, opts Options) ([]Attempt, error) {
	chooser, err := newChooser(opts.Strategy, opts.Seed)
	if err != nil {
		return nil, err
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	var state *engine.GameState
	if opts.SessionID != "" {
		log.Printf("🔄 Resuming session: %s", opts.SessionID)
		state, err = client.Resume(ctx, opts.SessionID)
		if err != nil {
			log.Printf("⚠️  Failed to resume session (may be expired): %v", err)
		}
	}
	if state == nil {
		state, err = client.CreateSession(ctx, opts.ConfigID)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		log.Printf("✨ Session created: %s (%s, %dx%d)", client.SessionID(), state.ConfigName, state.GridSize, state.GridSize)
		if opts.SaveSession {
			if err := os.WriteFile(sessionFile, []byte(client.SessionID()), 0644); err != nil {
				log.Printf("Warning: Failed to save session ID: %v", err)
			}
		}
	}

	var attempts []Attempt
	for n := 1; n <= opts.Attempts; n++ {
		// A resumed session that is still in play is finished first
		if n > 1 || state.GameOver {
			result, err := client.NewGame(ctx)
			if err != nil {
				return attempts, fmt.Errorf("new game: %w", err)
			}
			state = result.GameState
		}

		log.Printf("=== 🎲 Attempt %d/%d ===", n, opts.Attempts)
		attempt, err := playGame(ctx, client, chooser, state, opts)
		attempt.Number = n
		attempts = append(attempts, attempt)
		if err != nil {
			return attempts, err
		}

		if attempt.GameOver {
			log.Printf("Attempt %d: game over after %d moves, score %d, highest die %d", n, attempt.Moves, attempt.Score, attempt.HighestDie)
		} else {
			log.Printf("Attempt %d: stopped after %d moves, score %d, highest die %d", n, attempt.Moves, attempt.Score, attempt.HighestDie)
		}
	}
	return attempts, nil
}

// playGame makes moves until the game ends or MaxMoves is reached
func playGame(ctx context.Context, client *Client, chooser strategy.Chooser, state *engine.GameState, opts Options) (Attempt, error) {
	var attempt Attempt
	for !state.GameOver && attempt.Moves < opts.MaxMoves {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}
		if opts.Verbose && attempt.Moves%50 == 0 {
			log.Printf("Score: %d, highest die: %d, empty cells: %d", state.Score, state.HighestDie, state.EmptyCells)
		}

		move := chooser.Next(state.Grid, state.GridSize)
		next, err := apply(ctx, client, move, state, opts.Click)
		if err != nil {
			return summarize(attempt, state), err
		}
		if next == nil {
			log.Printf("⚠️  No valid moves available")
			break
		}
		state = next
		attempt.Moves++

		if opts.Delay > 0 {
			time.Sleep(opts.Delay)
		}
	}
	return summarize(attempt, state), nil
}

// apply sends one move and returns the resulting state, or nil for MoveNone.
// A rejected action means the bot and the server disagree about the board,
// which is reported as an error.
func apply(ctx context.Context, client *Client, move strategy.Move, state *engine.GameState, click bool) (*engine.GameState, error) {
	switch move.Kind {
	case strategy.MoveSpawn:
		result, err := client.Spawn(ctx)
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return nil, fmt.Errorf("spawn rejected: %s", result.Reason)
		}
		return result.GameState, nil

	case strategy.MoveMerge:
		if !click {
			result, err := client.Merge(ctx, move.Source, move.Target)
			if err != nil {
				return nil, err
			}
			if !result.Success {
				return nil, fmt.Errorf("merge %d -> %d rejected: %s", move.Source, move.Target, result.Reason)
			}
			return result.GameState, nil
		}

		// Clear any stale selection the same way a player would
		if state.SelectedCell != engine.NoSelection && state.SelectedCell != move.Source {
			if _, err := client.Select(ctx, state.SelectedCell); err != nil {
				return nil, err
			}
		}
		if state.SelectedCell != move.Source {
			result, err := client.Select(ctx, move.Source)
			if err != nil {
				return nil, err
			}
			if result.Outcome != engine.OutcomeSelected {
				return nil, fmt.Errorf("select %d: unexpected outcome %s", move.Source, result.Outcome)
			}
		}
		result, err := client.Select(ctx, move.Target)
		if err != nil {
			return nil, err
		}
		if result.Outcome != engine.OutcomeMerged {
			return nil, fmt.Errorf("select %d: expected a merge, got %s", move.Target, result.Outcome)
		}
		return result.GameState, nil
	}
	return nil, nil
}

func summarize(attempt Attempt, state *engine.GameState) Attempt {
	attempt.Score = state.Score
	attempt.HighestDie = state.HighestDie
	attempt.GameOver = state.GameOver
	return attempt
}
