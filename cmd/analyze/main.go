// Command analyze plays simulated games on every configuration in the
// configs directory and prints score statistics per strategy, so board
// sizes and starting dice can be compared without a running server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/dicemerge/game/config"
	"github.com/wricardo/mcp-training/dicemerge/game/engine"
	"github.com/wricardo/mcp-training/dicemerge/game/strategy"
)

// maxStepsPerCell bounds a simulated game relative to the board area.
const maxStepsPerCell = 2000

// Summary aggregates simulated games for one config and strategy.
type Summary struct {
	Config      string      `json:"config"`
	Strategy    string      `json:"strategy"`
	GridSize    int         `json:"grid_size"`
	InitialDice int         `json:"initial_dice"`
	Games       int         `json:"games"`
	MeanScore   float64     `json:"mean_score"`
	BestScore   int         `json:"best_score"`
	WorstScore  int         `json:"worst_score"`
	MeanMerges  float64     `json:"mean_merges"`
	MeanSpawns  float64     `json:"mean_spawns"`
	HighestDie  map[int]int `json:"highest_die"` // games reaching each highest die
	Unfinished  int         `json:"unfinished"`
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Simulate games on each config and compare strategies",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing game configurations"},
			&cli.IntFlag{Name: "games", Value: 200, Usage: "Games per config and strategy"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Base seed; game i uses seed+i"},
			&cli.StringSliceFlag{Name: "config", Usage: "Only analyze these config ids"},
			&cli.BoolFlag{Name: "json", Usage: "Print summaries as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			summaries, err := analyzeDir(cmd.String("config-dir"), cmd.StringSlice("config"), int(cmd.Int("games")), int64(cmd.Int("seed")))
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}
			printSummaries(os.Stdout, summaries)
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// analyzeDir simulates every config in dir, or only those named in only.
func analyzeDir(dir string, only []string, games int, seed int64) ([]Summary, error) {
	manager, err := config.NewManager(dir)
	if err != nil {
		return nil, err
	}

	infos, err := manager.ListConfigs()
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ConfigID < infos[j].ConfigID })

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[strings.ToLower(name)] = true
	}

	var summaries []Summary
	for _, info := range infos {
		if len(wanted) > 0 && !wanted[info.ConfigID] {
			continue
		}
		cfg, err := manager.LoadConfig(info.ConfigID)
		if err != nil {
			return nil, err
		}

		choosers := []func(i int) strategy.Chooser{
			func(int) strategy.Chooser { return strategy.Greedy{} },
			func(i int) strategy.Chooser { return strategy.NewRandom(seed + int64(i)) },
		}
		for _, newChooser := range choosers {
			summary, err := simulate(info.ConfigID, cfg, newChooser, games, seed)
			if err != nil {
				return nil, err
			}
			summaries = append(summaries, summary)
		}
	}
	return summaries, nil
}

// simulate plays games fresh engines seeded seed, seed+1, ...
func simulate(name string, cfg *engine.GameConfig, newChooser func(i int) strategy.Chooser, games int, seed int64) (Summary, error) {
	summary := Summary{
		Config:      name,
		GridSize:    cfg.GridSize,
		InitialDice: cfg.InitialDice,
		HighestDie:  make(map[int]int),
	}
	maxSteps := maxStepsPerCell * cfg.GridSize * cfg.GridSize

	var totalScore, totalMerges, totalSpawns int
	for i := 0; i < games; i++ {
		eng, err := engine.NewEngine(cfg, engine.WithSeed(seed+int64(i)))
		if err != nil {
			return summary, fmt.Errorf("%s: %w", name, err)
		}
		eng.StartSession()

		chooser := newChooser(i)
		summary.Strategy = chooser.Name()

		res, err := strategy.Play(eng, chooser, maxSteps)
		if err == strategy.ErrStepLimit {
			summary.Unfinished++
		} else if err != nil {
			return summary, fmt.Errorf("%s game %d: %w", name, i, err)
		}

		if summary.Games == 0 || res.Score > summary.BestScore {
			summary.BestScore = res.Score
		}
		if summary.Games == 0 || res.Score < summary.WorstScore {
			summary.WorstScore = res.Score
		}
		summary.Games++
		summary.HighestDie[res.HighestDie]++
		totalScore += res.Score
		totalMerges += res.Merges
		totalSpawns += res.Spawns
	}

	if summary.Games > 0 {
		n := float64(summary.Games)
		summary.MeanScore = float64(totalScore) / n
		summary.MeanMerges = float64(totalMerges) / n
		summary.MeanSpawns = float64(totalSpawns) / n
	}
	return summary, nil
}

func printSummaries(w io.Writer, summaries []Summary) {
	current := ""
	for _, s := range summaries {
		if s.Config != current {
			current = s.Config
			fmt.Fprintf(w, "\n=== %s (%dx%d, %d starting dice) ===\n", s.Config, s.GridSize, s.GridSize, s.InitialDice)
		}
		fmt.Fprintf(w, "%-7s games=%d mean=%.1f best=%d worst=%d merges=%.1f spawns=%.1f\n",
			s.Strategy, s.Games, s.MeanScore, s.BestScore, s.WorstScore, s.MeanMerges, s.MeanSpawns)
		fmt.Fprintf(w, "        highest die: %s\n", formatDistribution(s.HighestDie, s.Games))
		if s.Unfinished > 0 {
			fmt.Fprintf(w, "        ⚠️  %d games hit the step limit\n", s.Unfinished)
		}
	}
}

// formatDistribution renders "4:12% 5:60% 6:28%" in die order.
func formatDistribution(counts map[int]int, games int) string {
	if games == 0 {
		return "-"
	}
	dice := make([]int, 0, len(counts))
	for die := range counts {
		dice = append(dice, die)
	}
	sort.Ints(dice)

	parts := make([]string, 0, len(dice))
	for _, die := range dice {
		parts = append(parts, fmt.Sprintf("%d:%.0f%%", die, 100*float64(counts[die])/float64(games)))
	}
	return strings.Join(parts, " ")
}
