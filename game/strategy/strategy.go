// Package strategy contains automatic players for the Dice Merge Game. They
// look only at the board, so the same chooser drives an in-process engine
// (cmd/analyze) and a remote session over HTTP (cmd/autoplay).
package strategy

import (
	"errors"
	"math/rand"

	"github.com/wricardo/mcp-training/dicemerge/game/engine"
)

// MoveKind says what a chooser wants to do next
type MoveKind string

const (
	MoveMerge MoveKind = "merge"
	MoveSpawn MoveKind = "spawn"
	MoveNone  MoveKind = "none"
)

// Move is one decision. Source and Target are set for merges only.
type Move struct {
	Kind   MoveKind `json:"kind"`
	Source int      `json:"source"`
	Target int      `json:"target"`
	Value  int      `json:"value"`
}

// Chooser picks the next move for a board
type Chooser interface {
	Name() string
	Next(grid []int, size int) Move
}

// Greedy merges the highest-valued pair available and spawns only when no
// merge is left. Among equal values it prefers a target whose upgraded die
// would immediately have a partner.
type Greedy struct{}

func (Greedy) Name() string { return "greedy" }

func (Greedy) Next(grid []int, size int) Move {
	best := Move{Kind: MoveNone}
	bestScore := -1
	for _, p := range engine.AdjacentEqualPairs(grid, size) {
		value := grid[p.A]
		for _, m := range [2]Move{
			{Kind: MoveMerge, Source: p.A, Target: p.B, Value: value + 1},
			{Kind: MoveMerge, Source: p.B, Target: p.A, Value: value + 1},
		} {
			score := value * 10
			if hasNeighbor(grid, size, m.Target, m.Source, value+1) {
				score += 5
			}
			if score > bestScore {
				best, bestScore = m, score
			}
		}
	}
	if best.Kind == MoveMerge {
		return best
	}
	if engine.CountEmpty(grid) > 0 {
		return Move{Kind: MoveSpawn, Source: engine.NoSelection, Target: engine.NoSelection}
	}
	return best
}

// hasNeighbor reports whether a cell next to index, other than skip, holds value
func hasNeighbor(grid []int, size, index, skip, value int) bool {
	row, col := engine.CellRowCol(index, size)
	for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		r, c := row+d[0], col+d[1]
		if r < 0 || r >= size || c < 0 || c >= size {
			continue
		}
		n := engine.CellIndex(r, c, size)
		if n != skip && grid[n] == value {
			return true
		}
	}
	return false
}

// Random picks uniformly among every legal merge and the spawn action
type Random struct {
	rng *rand.Rand
}

// NewRandom returns a Random chooser with its own seeded source
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Name() string { return "random" }

func (r *Random) Next(grid []int, size int) Move {
	var moves []Move
	for _, p := range engine.AdjacentEqualPairs(grid, size) {
		moves = append(moves, Move{Kind: MoveMerge, Source: p.A, Target: p.B, Value: grid[p.A] + 1})
	}
	if engine.CountEmpty(grid) > 0 {
		moves = append(moves, Move{Kind: MoveSpawn, Source: engine.NoSelection, Target: engine.NoSelection})
	}
	if len(moves) == 0 {
		return Move{Kind: MoveNone}
	}
	return moves[r.rng.Intn(len(moves))]
}

// ErrStepLimit is returned by Play when the game did not end in time
var ErrStepLimit = errors.New("step limit reached")

// Result summarises one played game
type Result struct {
	Score      int  `json:"score"`
	HighestDie int  `json:"highest_die"`
	Merges     int  `json:"merges"`
	Spawns     int  `json:"spawns"`
	GameOver   bool `json:"game_over"`
}

// Play drives eng with c until the game ends or maxSteps moves were made.
// The engine must already hold a started session.
func Play(eng engine.Engine, c Chooser, maxSteps int) (Result, error) {
	var res Result
	for step := 0; step < maxSteps; step++ {
		state := eng.GetState()
		if state.GameOver {
			break
		}
		move := c.Next(state.Grid, state.GridSize)
		switch move.Kind {
		case MoveMerge:
			if err := eng.Merge(move.Source, move.Target); err != nil {
				return res, err
			}
			res.Merges++
		case MoveSpawn:
			if _, err := eng.SpawnDie(); err != nil {
				return res, err
			}
			res.Spawns++
		default:
			return fill(res, eng), nil
		}
	}
	res = fill(res, eng)
	if !res.GameOver {
		return res, ErrStepLimit
	}
	return res, nil
}

func fill(res Result, eng engine.Engine) Result {
	res.Score = eng.GetScore()
	res.HighestDie = eng.GetHighestDie()
	res.GameOver = eng.IsGameOver()
	return res
}
