package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/dicemerge/game/config"
	"github.com/wricardo/mcp-training/dicemerge/game/engine"
	"github.com/wricardo/mcp-training/dicemerge/game/scores"
	"github.com/wricardo/mcp-training/dicemerge/game/service"
	"github.com/wricardo/mcp-training/dicemerge/game/session"
	"github.com/wricardo/mcp-training/dicemerge/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	CreateSessionFunc func(ctx context.Context, configName string) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	SelectFunc  func(ctx context.Context, sessionID string, index int) (*service.ActionResult, error)
	MergeFunc   func(ctx context.Context, sessionID string, source, target int) (*service.ActionResult, error)
	SpawnFunc   func(ctx context.Context, sessionID string) (*service.ActionResult, error)
	NewGameFunc func(ctx context.Context, sessionID string) (*service.ActionResult, error)

	GetGameStateFunc   func(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)

	ListConfigsFunc func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc  func(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfigFunc  func(ctx context.Context, configName string, config *engine.GameConfig) error

	LeaderboardFunc func(ctx context.Context, limit int) ([]service.LeaderboardEntry, error)
}

func (m *MockGameService) CreateSession(ctx context.Context, configName string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, configName)
	}
	return &service.SessionInfo{ID: "test-session", ConfigName: configName, CreatedAt: time.Now()}, nil
}

func (m *MockGameService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, ConfigName: "test-config", CreatedAt: time.Now()}, nil
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockGameService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

func okResult(outcome engine.Outcome, index int) *service.ActionResult {
	return &service.ActionResult{
		Success:   true,
		Outcome:   outcome,
		Index:     index,
		Events:    []engine.Event{},
		GameState: &engine.GameState{},
	}
}

func (m *MockGameService) Select(ctx context.Context, sessionID string, index int) (*service.ActionResult, error) {
	if m.SelectFunc != nil {
		return m.SelectFunc(ctx, sessionID, index)
	}
	return okResult(engine.OutcomeSelected, index), nil
}

func (m *MockGameService) Merge(ctx context.Context, sessionID string, source, target int) (*service.ActionResult, error) {
	if m.MergeFunc != nil {
		return m.MergeFunc(ctx, sessionID, source, target)
	}
	return okResult(engine.OutcomeMerged, target), nil
}

func (m *MockGameService) Spawn(ctx context.Context, sessionID string) (*service.ActionResult, error) {
	if m.SpawnFunc != nil {
		return m.SpawnFunc(ctx, sessionID)
	}
	return okResult(engine.OutcomeSpawned, 0), nil
}

func (m *MockGameService) NewGame(ctx context.Context, sessionID string) (*service.ActionResult, error) {
	if m.NewGameFunc != nil {
		return m.NewGameFunc(ctx, sessionID)
	}
	return okResult(service.OutcomeNewGame, engine.NoSelection), nil
}

func (m *MockGameService) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.GetGameStateFunc != nil {
		return m.GetGameStateFunc(ctx, sessionID)
	}
	return &engine.GameState{}, nil
}

func (m *MockGameService) GetMoveHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetMoveHistoryFunc != nil {
		return m.GetMoveHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{
		Moves:      []engine.MoveHistoryEntry{},
		Page:       opts.Page,
		PageSize:   opts.Limit,
		TotalPages: 1,
	}, nil
}

func (m *MockGameService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{}, nil
}

func (m *MockGameService) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, configName)
	}
	return &engine.GameConfig{Name: configName, Description: "Test config"}, nil
}

func (m *MockGameService) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, configName, config)
	}
	return nil
}

func (m *MockGameService) Leaderboard(ctx context.Context, limit int) ([]service.LeaderboardEntry, error) {
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc(ctx, limit)
	}
	return []service.LeaderboardEntry{}, nil
}

// Test helpers
func setupTestServer(t *testing.T, mockService *MockGameService) *Server {
	t.Helper()
	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Close)
	return NewServer(mockService, hub)
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v (%s)", err, w.Body.String())
	}
}

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    map[string]string
		setupMock      func(*MockGameService)
		expectedStatus int
		wantConfig     string
	}{
		{
			name:           "default config",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "config_id",
			requestBody:    map[string]string{"config_id": "small"},
			expectedStatus: http.StatusCreated,
			wantConfig:     "small",
		},
		{
			name:           "deprecated config_name",
			requestBody:    map[string]string{"config_name": "large"},
			expectedStatus: http.StatusCreated,
			wantConfig:     "large",
		},
		{
			name:        "unknown config",
			requestBody: map[string]string{"config_id": "nope"},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("%w: 'nope'", service.ErrUnknownConfig)
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "service error",
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("service error")
				}
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			var body interface{}
			if tt.requestBody != nil {
				body = tt.requestBody
			}
			server.ServeHTTP(w, makeRequest("POST", "/api/sessions", body))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if w.Code == http.StatusCreated {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ConfigName != tt.wantConfig {
					t.Errorf("Expected config %q, got %q", tt.wantConfig, resp.ConfigName)
				}
			} else {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if resp["error"] == "" {
					t.Error("Expected an error message")
				}
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	sessions := func() []*service.SessionInfo {
		return []*service.SessionInfo{
			{ID: "aaaa", CreatedAt: now.Add(-3 * time.Hour), LastAccessedAt: now.Add(-time.Minute), GameState: &engine.GameState{Score: 10}},
			{ID: "bbbb", CreatedAt: now.Add(-time.Hour), LastAccessedAt: now.Add(-time.Hour), GameState: &engine.GameState{Score: 40}},
			{ID: "cccc", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now, GameState: &engine.GameState{Score: 20}},
		}
	}

	tests := []struct {
		query     string
		wantOrder []string
		wantTotal int
	}{
		{"", []string{"cccc", "aaaa", "bbbb"}, 3},
		{"?sort=created&order=asc", []string{"aaaa", "cccc", "bbbb"}, 3},
		{"?sort=score", []string{"bbbb", "cccc", "aaaa"}, 3},
		{"?sort=score&limit=1", []string{"bbbb"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			mockService := &MockGameService{
				ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
					return sessions(), nil
				},
			}
			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/sessions"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)

			var order []string
			for _, s := range resp.Sessions {
				order = append(order, s.ID)
			}
			if strings.Join(order, ",") != strings.Join(tt.wantOrder, ",") {
				t.Errorf("Expected order %v, got %v", tt.wantOrder, order)
			}
			if resp.Total != tt.wantTotal || resp.Count != len(tt.wantOrder) {
				t.Errorf("Expected count %d / total %d, got %d / %d", len(tt.wantOrder), tt.wantTotal, resp.Count, resp.Total)
			}
		})
	}
}

func TestGetAndDeleteSession(t *testing.T) {
	mockService := &MockGameService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			if sessionID != "ab12" {
				return nil, fmt.Errorf("%w: %s", service.ErrSessionNotFound, sessionID)
			}
			return &service.SessionInfo{ID: sessionID}, nil
		},
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			if sessionID != "ab12" {
				return session.ErrSessionNotFound
			}
			return nil
		},
	}
	server := setupTestServer(t, mockService)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/sessions/ab12", http.StatusOK},
		{"GET", "/api/sessions/zzzz", http.StatusNotFound},
		{"DELETE", "/api/sessions/ab12", http.StatusOK},
		{"DELETE", "/api/sessions/zzzz", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest(tt.method, tt.path, nil))
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestActionEndpoints(t *testing.T) {
	var gotIndex, gotSource, gotTarget int
	mockService := &MockGameService{
		SelectFunc: func(ctx context.Context, sessionID string, index int) (*service.ActionResult, error) {
			gotIndex = index
			return okResult(engine.OutcomeSelected, index), nil
		},
		MergeFunc: func(ctx context.Context, sessionID string, source, target int) (*service.ActionResult, error) {
			gotSource, gotTarget = source, target
			return &service.ActionResult{
				Success:   false,
				Outcome:   engine.OutcomeRejected,
				Reason:    service.ReasonValueMismatch,
				Events:    []engine.Event{},
				GameState: &engine.GameState{},
			}, nil
		},
		SpawnFunc: func(ctx context.Context, sessionID string) (*service.ActionResult, error) {
			return nil, fmt.Errorf("%w: %s", service.ErrSessionNotFound, sessionID)
		},
	}
	server := setupTestServer(t, mockService)

	tests := []struct {
		name        string
		path        string
		body        interface{}
		status      int
		wantSuccess bool
		wantOutcome engine.Outcome
	}{
		{"select", "/api/sessions/ab12/select", map[string]int{"index": 0}, http.StatusOK, true, engine.OutcomeSelected},
		{"select without index", "/api/sessions/ab12/select", map[string]int{}, http.StatusBadRequest, false, ""},
		{"merge rejected", "/api/sessions/ab12/merge", map[string]int{"source": 3, "target": 4}, http.StatusOK, false, engine.OutcomeRejected},
		{"merge missing target", "/api/sessions/ab12/merge", map[string]int{"source": 3}, http.StatusBadRequest, false, ""},
		{"spawn unknown session", "/api/sessions/zzzz/spawn", nil, http.StatusNotFound, false, ""},
		{"new game", "/api/sessions/ab12/new-game", nil, http.StatusOK, true, service.OutcomeNewGame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", tt.path, tt.body))
			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d (%s)", tt.status, w.Code, w.Body.String())
			}
			if w.Code != http.StatusOK {
				return
			}
			var resp service.ActionResult
			parseResponse(t, w, &resp)
			if resp.Success != tt.wantSuccess || resp.Outcome != tt.wantOutcome {
				t.Errorf("Expected success=%v outcome=%s, got %+v", tt.wantSuccess, tt.wantOutcome, resp)
			}
		})
	}

	if gotIndex != 0 || gotSource != 3 || gotTarget != 4 {
		t.Errorf("arguments not forwarded: index=%d source=%d target=%d", gotIndex, gotSource, gotTarget)
	}
}

func TestGetHistory(t *testing.T) {
	var got service.HistoryOptions
	mockService := &MockGameService{
		GetMoveHistoryFunc: func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
			got = opts
			return &service.HistoryResponse{Moves: []engine.MoveHistoryEntry{}}, nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/ab12/history", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got.Page != 1 || got.Limit != 20 || got.Order != "desc" {
		t.Errorf("unexpected default options %+v", got)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/ab12/history?page=2&limit=5&order=asc", nil))
	if got.Page != 2 || got.Limit != 5 || got.Order != "asc" {
		t.Errorf("query not parsed: %+v", got)
	}
}

func TestConfigs(t *testing.T) {
	var saved string
	mockService := &MockGameService{
		ListConfigsFunc: func(ctx context.Context) ([]*service.ConfigInfo, error) {
			return []*service.ConfigInfo{{ConfigID: "classic", GridSize: 5, InitialDice: 3}}, nil
		},
		LoadConfigFunc: func(ctx context.Context, configName string) (*engine.GameConfig, error) {
			if configName != "classic" {
				return nil, config.ErrConfigNotFound
			}
			return engine.DefaultGameConfig(), nil
		},
		SaveConfigFunc: func(ctx context.Context, configName string, cfg *engine.GameConfig) error {
			if cfg.GridSize > engine.MaxGridSize {
				return fmt.Errorf("%w: grid too large", config.ErrInvalidConfig)
			}
			saved = configName
			return nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/configs", nil))
	var infos []service.ConfigInfo
	parseResponse(t, w, &infos)
	if len(infos) != 1 || infos[0].InitialDice != 3 {
		t.Errorf("unexpected configs %+v", infos)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/configs/classic.json", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for classic.json, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/configs/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/configs", map[string]interface{}{
		"config_id": "tiny", "name": "Tiny", "grid_size": 2, "initial_dice": 1,
	}))
	if w.Code != http.StatusCreated || saved != "tiny" {
		t.Errorf("Expected config saved as tiny, got %d %q", w.Code, saved)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/configs", map[string]interface{}{
		"name": "Huge", "grid_size": 40, "initial_dice": 1,
	}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid config, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/configs", map[string]interface{}{"grid_size": 3}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without name, got %d", w.Code)
	}
}

func TestLeaderboard(t *testing.T) {
	var gotLimit int
	mockService := &MockGameService{
		LeaderboardFunc: func(ctx context.Context, limit int) ([]service.LeaderboardEntry, error) {
			gotLimit = limit
			if limit < 0 {
				return nil, scores.ErrInvalidLimit
			}
			return []service.LeaderboardEntry{
				{Rank: 1, Record: scores.Record{RunID: "r1", Score: 90, HighestDie: 6, Final: true}},
			}, nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/leaderboard?limit=3", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Count   int                        `json:"count"`
		Entries []service.LeaderboardEntry `json:"entries"`
	}
	parseResponse(t, w, &resp)
	if gotLimit != 3 || resp.Count != 1 || resp.Entries[0].RunID != "r1" || resp.Entries[0].Rank != 1 {
		t.Errorf("unexpected leaderboard %+v (limit %d)", resp, gotLimit)
	}

	for _, query := range []string{"?limit=abc", "?limit=-1"} {
		w = httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", "/api/leaderboard"+query, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", query, w.Code)
		}
	}
}

func TestHealthAndIndex(t *testing.T) {
	server := setupTestServer(t, &MockGameService{})

	for _, path := range []string{"/api/health", "/api"} {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestWebSocket(t *testing.T) {
	tests := []struct {
		name           string
		queryParams    string
		setupMock      func(*MockGameService)
		expectedStatus int
	}{
		{"Missing session parameter", "", nil, http.StatusBadRequest},
		{
			name:        "Invalid session",
			queryParams: "?session=invalid",
			setupMock: func(m *MockGameService) {
				m.GetSessionFunc = func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
					return nil, service.ErrSessionNotFound
				}
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, httptest.NewRequest("GET", "/ws"+tt.queryParams, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}

	t.Run("no hub", func(t *testing.T) {
		server := NewServer(&MockGameService{}, nil)
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest("GET", "/ws?session=ab12", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", w.Code)
		}
	})
}

// TestEndToEnd wires the real service and checks that an accepted action
// reaches a WebSocket client as an ordered event batch.
func TestEndToEnd(t *testing.T) {
	configManager, err := config.NewManager("../configs")
	if err != nil {
		t.Fatalf("config manager: %v", err)
	}
	sessions := session.NewManager(engine.WithSeed(3))
	recorder := scores.NewRecorder(scores.NewMemoryStore(), 0)
	svc := service.NewGameService(sessions, configManager, service.WithRecorder(recorder))

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Close)

	ts := httptest.NewServer(NewServer(svc, hub))
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(`{"config_id":"small"}`))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	var info service.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	resp.Body.Close()
	if info.GameState.GridSize != 3 {
		t.Fatalf("expected the small 3x3 config, got %d", info.GameState.GridSize)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=" + info.ID
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	readMessage := func() websocket.Message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg websocket.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read websocket: %v", err)
		}
		return msg
	}

	if msg := readMessage(); msg.Event != websocket.EventStateUpdate {
		t.Fatalf("expected the initial state_update, got %s", msg.Event)
	}

	resp, err = http.Post(ts.URL+"/api/sessions/"+info.ID+"/spawn", "application/json", nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	var result service.ActionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode spawn: %v", err)
	}
	resp.Body.Close()
	if !result.Success || result.Outcome != engine.OutcomeSpawned {
		t.Fatalf("expected a spawn, got %+v", result)
	}

	msg := readMessage()
	if msg.Event != websocket.EventAction {
		t.Fatalf("expected an action message, got %s", msg.Event)
	}
	if len(msg.Events) == 0 || msg.Events[0].Type != engine.EventCellChanged || msg.Events[0].Index != result.Index {
		t.Errorf("expected cell_changed at %d first, got %+v", result.Index, msg.Events)
	}
	if msg.GameState == nil || msg.GameState.TotalMoves != 1 {
		t.Errorf("expected state after one move, got %+v", msg.GameState)
	}
}
