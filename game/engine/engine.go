package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Rejection reasons. A rejected call leaves the state untouched.
var (
	ErrGameOver         = errors.New("game is over")
	ErrIndexOutOfRange  = errors.New("cell index out of range")
	ErrEmptyCell        = errors.New("cell is empty")
	ErrSameCell         = errors.New("source and target are the same cell")
	ErrValueMismatch    = errors.New("dice values do not match")
	ErrBoardFull        = errors.New("board is full")
	ErrStateNil         = errors.New("state cannot be nil")
	ErrStateGridInvalid = errors.New("state grid does not match grid size")
)

// Outcome describes what an accepted selectOrMerge call did
type Outcome string

const (
	OutcomeSelected   Outcome = "selected"
	OutcomeDeselected Outcome = "deselected"
	OutcomeReselected Outcome = "reselected"
	OutcomeMerged     Outcome = "merged"
	OutcomeSpawned    Outcome = "spawned"
	OutcomeRejected   Outcome = "rejected"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	Snapshot() *GameState
	SetState(state *GameState) error
	StartSession() *GameState
	IsGameOver() bool
	GetScore() int
	GetHighestDie() int

	// Board operations
	GetCell(index int) (int, error)
	GetSelectedCell() int
	SelectOrMerge(index int) (Outcome, error)
	Merge(source, target int) error
	SpawnDie() (int, error)
	CheckGameOver() bool
	MergeablePairs() []Pair

	// Configuration
	GetConfig() *GameConfig

	// History
	GetMoveHistory() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry

	// Notifications
	Subscribe(observer Observer) (unsubscribe func())
}

type subscription struct {
	id       int
	observer Observer
}

// GameEngine implements the Engine interface
type GameEngine struct {
	state     *GameState
	config    *GameConfig
	rng       *rand.Rand
	newRunID  func() string
	observers []subscription
	nextSubID int
}

// Option customises a GameEngine at construction time
type Option func(*GameEngine)

// WithRand makes the engine draw spawn positions and values from r
func WithRand(r *rand.Rand) Option {
	return func(e *GameEngine) {
		e.rng = r
	}
}

// WithSeed seeds the engine's random source deterministically
func WithSeed(seed int64) Option {
	return func(e *GameEngine) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

// WithObserver subscribes observer before the first session starts
func WithObserver(observer Observer) Option {
	return func(e *GameEngine) {
		e.Subscribe(observer)
	}
}

// WithRunIDGenerator overrides how run IDs are minted at session start
func WithRunIDGenerator(fn func() string) Option {
	return func(e *GameEngine) {
		e.newRunID = fn
	}
}

// NewEngine creates an idle engine for the provided configuration.
// Call StartSession to seed the board.
func NewEngine(config *GameConfig, opts ...Option) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	engine := &GameEngine{
		config: config,
		state:  InitGameStateFromConfig(config),
	}
	engine.applyOptions(opts)

	return engine, nil
}

// NewEngineWithDefaults creates an idle engine with the built-in configuration
func NewEngineWithDefaults(opts ...Option) *GameEngine {
	config := DefaultGameConfig()
	engine := &GameEngine{
		config: config,
		state:  InitGameStateFromConfig(config),
	}
	engine.applyOptions(opts)
	return engine
}

func (e *GameEngine) applyOptions(opts []Option) {
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(newSeed()))
	}
	if e.newRunID == nil {
		e.newRunID = func() string { return uuid.NewString() }
	}
}

// newSeed reads a seed from crypto/rand, falling back to the clock
func newSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// GetState returns the live game state
func (e *GameEngine) GetState() *GameState {
	return e.state
}

// Snapshot returns a deep copy of the state with helper views filled in
func (e *GameEngine) Snapshot() *GameState {
	snap := e.state.Clone()
	snap.Rows = RenderRows(snap.Grid, snap.GridSize)
	snap.EmptyCells = CountEmpty(snap.Grid)
	snap.CanSpawn = !snap.GameOver && snap.EmptyCells > 0
	snap.MergeablePairs = len(AdjacentEqualPairs(snap.Grid, snap.GridSize))
	return snap
}

// SetState replaces the game state (used for persistence loading)
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return ErrStateNil
	}
	if state.GridSize < MinGridSize || len(state.Grid) != state.GridSize*state.GridSize {
		return fmt.Errorf("%w: size %d, %d cells", ErrStateGridInvalid, state.GridSize, len(state.Grid))
	}
	if e.config != nil && state.GridSize != e.config.GridSize {
		return fmt.Errorf("%w: config expects size %d, state has %d", ErrStateGridInvalid, e.config.GridSize, state.GridSize)
	}
	for i, v := range state.Grid {
		if v < EmptyCell {
			return fmt.Errorf("%w: negative value %d at cell %d", ErrStateGridInvalid, v, i)
		}
	}
	if state.SelectedCell != NoSelection && (state.SelectedCell < 0 || state.SelectedCell >= len(state.Grid) || state.Grid[state.SelectedCell] == EmptyCell) {
		state.SelectedCell = NoSelection
	}
	if state.HighestDie < 1 {
		state.HighestDie = 1
	}
	if highest := MaxValue(state.Grid); highest > state.HighestDie {
		state.HighestDie = highest
	}
	if state.MoveHistory == nil {
		state.MoveHistory = []MoveHistoryEntry{}
	}
	e.state = state
	return nil
}

// StartSession discards the current state and seeds a fresh board
func (e *GameEngine) StartSession() *GameState {
	e.state = InitGameStateFromConfig(e.config)
	e.state.RunID = e.newRunID()

	e.emit(Event{Type: EventSessionReset, GridSize: e.state.GridSize})

	dice := DefaultInitialDice
	if e.config != nil {
		dice = e.config.InitialDice
	}
	for i := 0; i < dice; i++ {
		if _, err := e.spawn(false); err != nil {
			break
		}
	}

	e.emit(Event{Type: EventScoreChanged, Score: e.state.Score, HighestDie: e.state.HighestDie})
	if !e.state.GameOver {
		e.emit(Event{Type: EventSpawnAvailability, Available: CountEmpty(e.state.Grid) > 0})
	}

	return e.state
}

// IsGameOver returns whether the game is over
func (e *GameEngine) IsGameOver() bool {
	return e.state.GameOver
}

// GetScore returns the current score
func (e *GameEngine) GetScore() int {
	return e.state.Score
}

// GetHighestDie returns the highest die value reached this session
func (e *GameEngine) GetHighestDie() int {
	return e.state.HighestDie
}

// GetCell returns the die at index, or EmptyCell
func (e *GameEngine) GetCell(index int) (int, error) {
	if !e.inRange(index) {
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return e.state.Grid[index], nil
}

// GetSelectedCell returns the selected index, or NoSelection
func (e *GameEngine) GetSelectedCell() int {
	return e.state.SelectedCell
}

// SelectOrMerge handles a click on a cell: select, toggle off, re-select, or merge
func (e *GameEngine) SelectOrMerge(index int) (Outcome, error) {
	if !e.inRange(index) {
		return OutcomeRejected, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	if e.state.GameOver {
		return OutcomeRejected, ErrGameOver
	}
	if e.state.Grid[index] == EmptyCell {
		return OutcomeRejected, fmt.Errorf("%w: %d", ErrEmptyCell, index)
	}

	selected := e.state.SelectedCell
	switch {
	case selected == NoSelection:
		e.state.SelectedCell = index
		e.state.Message = e.config.Messages.Selected
		e.emit(Event{Type: EventSelectionChanged, Index: index, Selected: true})
		e.emit(Event{Type: EventSound, Sound: SoundSelect})
		return OutcomeSelected, nil

	case selected == index:
		e.state.SelectedCell = NoSelection
		e.emit(Event{Type: EventSelectionChanged, Index: index, Selected: false})
		return OutcomeDeselected, nil

	case e.state.Grid[selected] != e.state.Grid[index]:
		e.state.SelectedCell = index
		e.state.Message = e.config.Messages.Selected
		e.emit(Event{Type: EventSelectionChanged, Index: selected, Selected: false})
		e.emit(Event{Type: EventSelectionChanged, Index: index, Selected: true})
		e.emit(Event{Type: EventSound, Sound: SoundSelect})
		return OutcomeReselected, nil
	}

	if err := e.Merge(selected, index); err != nil {
		return OutcomeRejected, err
	}
	return OutcomeMerged, nil
}

// Merge consumes the die at source and upgrades the equal die at target.
// It is also the entry point for drag gestures.
func (e *GameEngine) Merge(source, target int) error {
	if !e.inRange(source) {
		return fmt.Errorf("%w: source %d", ErrIndexOutOfRange, source)
	}
	if !e.inRange(target) {
		return fmt.Errorf("%w: target %d", ErrIndexOutOfRange, target)
	}
	if e.state.GameOver {
		return ErrGameOver
	}
	if source == target {
		return fmt.Errorf("%w: %d", ErrSameCell, source)
	}
	grid := e.state.Grid
	if grid[source] == EmptyCell || grid[target] == EmptyCell {
		return fmt.Errorf("%w: merge %d -> %d", ErrEmptyCell, source, target)
	}
	if grid[source] != grid[target] {
		return fmt.Errorf("%w: %d at %d, %d at %d", ErrValueMismatch, grid[source], source, grid[target], target)
	}

	wasFull := CountEmpty(grid) == 0
	newValue := grid[target] + 1
	previousHighest := e.state.HighestDie

	grid[source] = EmptyCell
	grid[target] = newValue

	e.state.Score += newValue * 2
	if newValue > e.state.HighestDie {
		e.state.HighestDie = newValue
	}
	previousSelection := e.state.SelectedCell
	e.state.SelectedCell = NoSelection
	e.state.Message = formatMessage(e.config.Messages.Merged, newValue)
	e.addMoveToHistory(ActionMerge, source, target, newValue)

	e.emit(Event{Type: EventCellChanged, Index: source, Value: EmptyCell})
	e.emit(Event{Type: EventCellChanged, Index: target, Value: newValue})
	if previousSelection != NoSelection {
		e.emit(Event{Type: EventSelectionChanged, Index: previousSelection, Selected: false})
	}
	e.emit(Event{Type: EventMergeAnimation, Source: source, Index: target, Value: newValue})
	e.emit(Event{Type: EventSound, Sound: SoundMerge})
	e.emit(Event{Type: EventScoreChanged, Score: e.state.Score, HighestDie: e.state.HighestDie})
	if newValue > previousHighest {
		msg := formatMessage(e.config.Messages.NewRecord, newValue)
		if msg != "" {
			e.state.Message = msg
		}
		e.emit(Event{Type: EventSound, Sound: SoundUpgrade})
		e.emit(Event{Type: EventNewRecord, Value: newValue, Message: msg})
	}
	if wasFull {
		e.emit(Event{Type: EventSpawnAvailability, Available: true})
	}
	e.emit(Event{Type: EventScoreSnapshot, Score: e.state.Score, HighestDie: e.state.HighestDie})

	if e.CheckGameOver() {
		e.endGame()
	}

	return nil
}

// SpawnDie places a new die on a random empty cell and returns its index
func (e *GameEngine) SpawnDie() (int, error) {
	return e.spawn(true)
}

func (e *GameEngine) spawn(playerMove bool) (int, error) {
	if e.state.GameOver {
		return -1, ErrGameOver
	}

	empty := EmptyCells(e.state.Grid)
	if len(empty) == 0 {
		e.emit(Event{Type: EventSpawnAvailability, Available: false})
		return -1, ErrBoardFull
	}

	index := empty[e.rng.Intn(len(empty))]
	value := e.rollDie()
	e.state.Grid[index] = value

	highestChanged := false
	if value > e.state.HighestDie {
		e.state.HighestDie = value
		highestChanged = true
	}

	if playerMove {
		e.state.Message = e.config.Messages.Spawned
		e.addMoveToHistory(ActionSpawn, NoSelection, index, value)
	}

	e.emit(Event{Type: EventCellChanged, Index: index, Value: value})
	e.emit(Event{Type: EventSpawnAnimation, Index: index, Value: value})
	e.emit(Event{Type: EventSound, Sound: SoundPlace})
	if highestChanged && playerMove {
		e.emit(Event{Type: EventScoreChanged, Score: e.state.Score, HighestDie: e.state.HighestDie})
	}
	if len(empty) == 1 {
		e.emit(Event{Type: EventSpawnAvailability, Available: false})
	}

	if e.CheckGameOver() {
		e.endGame()
	}

	return index, nil
}

// rollDie draws 1 with SpawnOneProbability, else 2
func (e *GameEngine) rollDie() int {
	if e.rng.Float64() < SpawnOneProbability {
		return SpawnLowValue
	}
	return SpawnHighValue
}

// CheckGameOver reports whether the board is full with no adjacent equal dice
func (e *GameEngine) CheckGameOver() bool {
	return IsTerminal(e.state.Grid, e.state.GridSize)
}

// MergeablePairs lists adjacent equal dice on the current board
func (e *GameEngine) MergeablePairs() []Pair {
	return AdjacentEqualPairs(e.state.Grid, e.state.GridSize)
}

func (e *GameEngine) endGame() {
	e.state.GameOver = true
	e.state.SelectedCell = NoSelection
	e.state.Message = formatMessage(e.config.Messages.GameOver, e.state.Score)

	e.emit(Event{Type: EventGameOver, Score: e.state.Score, HighestDie: e.state.HighestDie, Message: e.state.Message})
	e.emit(Event{Type: EventSound, Sound: SoundGameOver})
	e.emit(Event{Type: EventScoreSnapshot, Score: e.state.Score, HighestDie: e.state.HighestDie, Final: true})
}

// GetConfig returns the current game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

// GetMoveHistory returns the session's move history
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return e.state.MoveHistory
}

// GetLastMove returns the last move made, or nil if no moves
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.state.MoveHistory) == 0 {
		return nil
	}
	return &e.state.MoveHistory[len(e.state.MoveHistory)-1]
}

// Subscribe registers observer and returns a function that removes it
func (e *GameEngine) Subscribe(observer Observer) func() {
	e.nextSubID++
	id := e.nextSubID
	e.observers = append(e.observers, subscription{id: id, observer: observer})

	return func() {
		for i, sub := range e.observers {
			if sub.id == id {
				e.observers = append(e.observers[:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

func (e *GameEngine) emit(ev Event) {
	ev.RunID = e.state.RunID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	for _, sub := range e.observers {
		sub.observer.OnEvent(ev)
	}
}

func (e *GameEngine) inRange(index int) bool {
	return index >= 0 && index < len(e.state.Grid)
}

// addMoveToHistory records an accepted merge or spawn
func (e *GameEngine) addMoveToHistory(action string, source, target, value int) {
	e.state.TotalMoves++
	e.state.MoveHistory = append(e.state.MoveHistory, MoveHistoryEntry{
		Action:     action,
		Source:     source,
		Target:     target,
		Value:      value,
		ScoreAfter: e.state.Score,
		Timestamp:  time.Now().Unix(),
		MoveNumber: e.state.TotalMoves,
	})
}

func formatMessage(format string, value int) string {
	if format == "" {
		return ""
	}
	return fmt.Sprintf(format, value)
}
