package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/dicemerge/game/engine"
	"github.com/wricardo/mcp-training/dicemerge/game/scores"
)

// OutcomeNewGame is reported by NewGame; the engine itself only knows
// select, merge and spawn outcomes.
const OutcomeNewGame engine.Outcome = "new_game"

// Rejection reason codes reported in ActionResult.Reason
const (
	ReasonGameOver      = "game_over"
	ReasonOutOfRange    = "out_of_range"
	ReasonEmptyCell     = "empty_cell"
	ReasonSameCell      = "same_cell"
	ReasonValueMismatch = "value_mismatch"
	ReasonBoardFull     = "board_full"
)

var (
	// ErrSessionNotFound wraps lookup failures from the session manager
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnknownConfig is returned when a session names a missing config
	ErrUnknownConfig = errors.New("config not found")
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	recorder *scores.Recorder
	mu       sync.RWMutex
}

// Option configures a game service
type Option func(*gameServiceImpl)

// WithRecorder feeds score snapshots from every session into r
func WithRecorder(r *scores.Recorder) Option {
	return func(s *gameServiceImpl) {
		s.recorder = r
	}
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

func (s *gameServiceImpl) sessionInfo(sess *Session, configID string) *SessionInfo {
	if configID == "" {
		configID = s.getConfigID(sess.Config.Name)
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.Snapshot(),
		GameConfig:     sess.Config,
	}
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.GameConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if strings.Contains(err.Error(), "configuration not found") {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrUnknownConfig, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrUnknownConfig, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	session, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Printf("[SESSION] created session=%s config=%s run=%s", session.ID, config.Name, session.Engine.GetState().RunID)
	return s.sessionInfo(session, configName), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	return s.sessionInfo(session, ""), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess, ""))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, err := s.sessions.Get(sessionID); err == nil {
		s.settleRun(ctx, sess.ID, sess.Engine.GetState().RunID)
	}
	return s.sessions.Delete(sessionID)
}

// Select forwards a click on index to the session's engine
func (s *gameServiceImpl) Select(ctx context.Context, sessionID string, index int) (*ActionResult, error) {
	return s.act(ctx, sessionID, func(eng *engine.GameEngine) (engine.Outcome, int, error) {
		outcome, err := eng.SelectOrMerge(index)
		return outcome, index, err
	})
}

// Merge merges source into target (the drag gesture)
func (s *gameServiceImpl) Merge(ctx context.Context, sessionID string, source, target int) (*ActionResult, error) {
	return s.act(ctx, sessionID, func(eng *engine.GameEngine) (engine.Outcome, int, error) {
		if err := eng.Merge(source, target); err != nil {
			return engine.OutcomeRejected, target, err
		}
		return engine.OutcomeMerged, target, nil
	})
}

// Spawn places a new die on a random empty cell
func (s *gameServiceImpl) Spawn(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.act(ctx, sessionID, func(eng *engine.GameEngine) (engine.Outcome, int, error) {
		index, err := eng.SpawnDie()
		if err != nil {
			return engine.OutcomeRejected, index, err
		}
		return engine.OutcomeSpawned, index, nil
	})
}

// NewGame discards the current run and deals a fresh board
func (s *gameServiceImpl) NewGame(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.act(ctx, sessionID, func(eng *engine.GameEngine) (engine.Outcome, int, error) {
		s.settleRun(ctx, sessionID, eng.GetState().RunID)
		eng.StartSession()
		return OutcomeNewGame, engine.NoSelection, nil
	})
}

// act runs fn against the session's engine under the service lock, collects
// the events it emits, forwards score snapshots and persists on success.
func (s *gameServiceImpl) act(ctx context.Context, sessionID string, fn func(*engine.GameEngine) (engine.Outcome, int, error)) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	events := &engine.EventRecorder{}
	unsubscribe := sess.Engine.Subscribe(events)
	outcome, index, actErr := fn(sess.Engine)
	unsubscribe()

	result := &ActionResult{
		Success: actErr == nil,
		Outcome: outcome,
		Index:   index,
		Events:  events.Events(),
	}
	if result.Events == nil {
		result.Events = []engine.Event{}
	}

	if actErr != nil {
		reason := rejectionReason(actErr)
		if reason == "" {
			return nil, actErr
		}
		result.Outcome = engine.OutcomeRejected
		result.Reason = reason
		result.Message = actErr.Error()
		if reason == ReasonBoardFull && sess.Config.Messages.BoardFull != "" {
			result.Message = sess.Config.Messages.BoardFull
		}
		result.GameState = sess.Engine.Snapshot()
		return result, nil
	}

	s.recordScores(ctx, sess, result.Events)

	state := sess.Engine.GetState()
	result.Message = state.Message
	result.GameState = sess.Engine.Snapshot()
	if state.GameOver && outcome != OutcomeNewGame {
		log.Printf("[GAME_OVER] session=%s run=%s score=%d highest=%d", sess.ID, state.RunID, state.Score, state.HighestDie)
	}

	if err := s.sessions.Save(sessionID); err != nil {
		log.Printf("Warning: Failed to persist session %s after %s: %v", sessionID, outcome, err)
	}

	return result, nil
}

// recordScores hands score_snapshot events to the recorder. Storage
// failures are logged and never fail the move.
func (s *gameServiceImpl) recordScores(ctx context.Context, sess *Session, events []engine.Event) {
	if s.recorder == nil {
		return
	}
	src := scores.Source{
		SessionID:  sess.ID,
		ConfigName: s.getConfigID(sess.Config.Name),
		Moves:      sess.Engine.GetState().TotalMoves,
	}
	for _, ev := range events {
		if ev.Type != engine.EventScoreSnapshot {
			continue
		}
		if _, err := s.recorder.Observe(ctx, src, ev); err != nil {
			log.Printf("Warning: Failed to record score for session %s: %v", sess.ID, err)
		}
	}
}

// settleRun writes the run's held score snapshot before the run is
// abandoned. Storage failures are logged.
func (s *gameServiceImpl) settleRun(ctx context.Context, sessionID, runID string) {
	if s.recorder == nil || runID == "" {
		return
	}
	if err := s.recorder.Flush(ctx, runID); err != nil {
		log.Printf("Warning: Failed to settle score for session %s: %v", sessionID, err)
	}
}

// rejectionReason maps an engine rejection to its reason code, or "" if err
// is not a rejection.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrGameOver):
		return ReasonGameOver
	case errors.Is(err, engine.ErrIndexOutOfRange):
		return ReasonOutOfRange
	case errors.Is(err, engine.ErrEmptyCell):
		return ReasonEmptyCell
	case errors.Is(err, engine.ErrSameCell):
		return ReasonSameCell
	case errors.Is(err, engine.ErrValueMismatch):
		return ReasonValueMismatch
	case errors.Is(err, engine.ErrBoardFull):
		return ReasonBoardFull
	}
	return ""
}

// GetGameState returns the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	return sess.Engine.Snapshot(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	history := sess.Engine.GetMoveHistory()
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Order != "desc" {
		opts.Order = "asc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	moves := []engine.MoveHistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			for i := total - 1 - start; i >= total-end; i-- {
				moves = append(moves, history[i])
			}
		} else {
			moves = append(moves, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available game configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific game configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a game configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// Leaderboard returns the best recorded runs, best first. Without a
// recorder the board is empty.
func (s *gameServiceImpl) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	entries := []LeaderboardEntry{}
	if s.recorder == nil {
		if _, err := scores.CheckLimit(limit); err != nil {
			return nil, err
		}
		return entries, nil
	}

	records, err := s.recorder.Top(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	for i, rec := range records {
		entries = append(entries, LeaderboardEntry{Rank: i + 1, Record: rec})
	}
	return entries, nil
}
