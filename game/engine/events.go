package engine

import "time"

// EventType identifies a notification emitted by the engine
type EventType string

const (
	// === Render events ===

	// EventCellChanged fires whenever a cell value changes
	// Payload: Index, Value (0 when emptied)
	EventCellChanged EventType = "cell_changed"

	// EventSelectionChanged fires when a cell gains or loses the selection
	// Payload: Index, Selected
	EventSelectionChanged EventType = "selection_changed"

	// EventScoreChanged fires after score or highest die change
	// Payload: Score, HighestDie
	EventScoreChanged EventType = "score_changed"

	// EventGameOver fires once when the board becomes terminal
	// Payload: Score, HighestDie
	EventGameOver EventType = "game_over"

	// EventSessionReset fires at the start of every session, before seeding
	// Payload: GridSize
	EventSessionReset EventType = "session_reset"

	// EventMergeAnimation asks the renderer to animate source into target
	// Payload: Source, Index (target), Value
	EventMergeAnimation EventType = "merge_animation"

	// EventSpawnAnimation asks the renderer to animate a new die
	// Payload: Index, Value
	EventSpawnAnimation EventType = "spawn_animation"

	// EventSpawnAvailability tells the spawn control whether spawning is possible
	// Payload: Available
	EventSpawnAvailability EventType = "spawn_availability"

	// EventNewRecord fires when a merge produces a die above the previous highest
	// Payload: Value, Message
	EventNewRecord EventType = "new_record"

	// === Audio events ===

	// EventSound requests a named sound effect
	// Payload: Sound
	EventSound EventType = "sound"

	// === Persistence events ===

	// EventScoreSnapshot carries a score record candidate
	// Payload: Score, HighestDie, Final, Timestamp
	EventScoreSnapshot EventType = "score_snapshot"
)

// Sound names carried by EventSound
const (
	SoundSelect   = "select"
	SoundMerge    = "merge"
	SoundPlace    = "place"
	SoundUpgrade  = "upgrade"
	SoundGameOver = "gameover"
)

// Event is a single engine notification. Only the fields named in the
// EventType documentation are meaningful for a given type.
type Event struct {
	Type       EventType `json:"type"`
	Index      int       `json:"index"`
	Source     int       `json:"source,omitempty"`
	Value      int       `json:"value,omitempty"`
	Selected   bool      `json:"selected,omitempty"`
	Available  bool      `json:"available,omitempty"`
	Score      int       `json:"score,omitempty"`
	HighestDie int       `json:"highest_die,omitempty"`
	GridSize   int       `json:"grid_size,omitempty"`
	Sound      string    `json:"sound,omitempty"`
	Final      bool      `json:"final,omitempty"`
	Message    string    `json:"message,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Observer receives engine events synchronously, in emission order
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a plain function to the Observer interface
type ObserverFunc func(Event)

// OnEvent calls f(ev)
func (f ObserverFunc) OnEvent(ev Event) {
	f(ev)
}

// EventRecorder is an Observer that buffers events until drained
type EventRecorder struct {
	events []Event
}

// OnEvent appends ev to the buffer
func (r *EventRecorder) OnEvent(ev Event) {
	r.events = append(r.events, ev)
}

// Events returns the buffered events without clearing them
func (r *EventRecorder) Events() []Event {
	return r.events
}

// Drain returns the buffered events and clears the buffer
func (r *EventRecorder) Drain() []Event {
	events := r.events
	r.events = nil
	return events
}

// Types returns the event types in the buffer, in order
func (r *EventRecorder) Types() []EventType {
	types := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.Type)
	}
	return types
}
