package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/dicemerge/game/engine"
)

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case data := <-client.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		return message
	case <-time.After(time.Second):
		t.Fatal("No message received within timeout")
	}
	return Message{}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels not initialised")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if hub.ClientCount("test-session") != 1 {
		t.Errorf("Expected 1 client in session, got %d", hub.ClientCount("test-session"))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed")
	}

	// Unregistering twice must not panic on the closed channel
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub()
	sessionID := "multi-client-session"
	client1 := newTestClient(hub, sessionID)
	client2 := newTestClient(hub, sessionID)

	hub.registerClient(client1)
	hub.registerClient(client2)
	if hub.ClientCount(sessionID) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", hub.ClientCount(sessionID))
	}

	hub.unregisterClient(client1)
	if hub.ClientCount(sessionID) != 1 {
		t.Errorf("Expected 1 client remaining in session, got %d", hub.ClientCount(sessionID))
	}
	if !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubBroadcastToSession(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	client := newTestClient(hub, "broadcast-test")
	other := newTestClient(hub, "other")
	hub.register <- client
	hub.register <- other

	gameState := &engine.GameState{Grid: []int{1, 0, 2, 0}, GridSize: 2, Score: 100}
	hub.BroadcastToSession("broadcast-test", gameState)

	message := receive(t, client)
	if message.SessionID != "broadcast-test" {
		t.Errorf("Expected sessionID broadcast-test, got %s", message.SessionID)
	}
	if message.Event != EventStateUpdate {
		t.Errorf("Expected event state_update, got %s", message.Event)
	}
	if message.GameState.Score != 100 || message.GameState.Grid[2] != 2 {
		t.Error("GameState not correctly transmitted")
	}

	select {
	case <-other.send:
		t.Error("client of another session received the broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastAction(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	client := newTestClient(hub, "action-test")
	hub.register <- client

	events := []engine.Event{
		{Type: engine.EventCellChanged, Index: 0, Value: 0},
		{Type: engine.EventCellChanged, Index: 1, Value: 3},
		{Type: engine.EventMergeAnimation, Source: 0, Index: 1, Value: 3},
	}
	hub.BroadcastAction("action-test", events, &engine.GameState{Score: 6})

	message := receive(t, client)
	if message.Event != EventAction {
		t.Errorf("Expected event action, got %s", message.Event)
	}
	if len(message.Events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(message.Events))
	}
	if message.Events[2].Type != engine.EventMergeAnimation || message.Events[1].Value != 3 {
		t.Errorf("events out of order: %+v", message.Events)
	}
	if message.GameState.Score != 6 {
		t.Errorf("Expected score 6, got %d", message.GameState.Score)
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub()

	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	select {
	case message := <-hub.broadcast:
		if message.SessionID != "event-test" {
			t.Errorf("Expected sessionID 'event-test', got %s", message.SessionID)
		}
		if message.Event != "custom-event" {
			t.Errorf("Expected event 'custom-event', got %s", message.Event)
		}
		if message.Data != "test-data" {
			t.Errorf("Expected data 'test-data', got %v", message.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No broadcast message received within timeout")
	}
}

func TestHubCloseDisconnects(t *testing.T) {
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run()
		close(stopped)
	}()

	client := newTestClient(hub, "closing")
	hub.register <- client
	hub.Close()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
	if _, ok := <-client.send; ok {
		t.Error("client channel should be closed")
	}

	// Broadcasting after Close must not block
	hub.Close()
	for i := 0; i < broadcastBuffer+1; i++ {
		hub.BroadcastEvent("closing", "late", i)
	}
}

func newWSServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			sessionID = "default"
		}
		hub.ServeWS(w, r, sessionID)
	}))
	t.Cleanup(server.Close)
	return server
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestWebSocketUpgrade(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	server := newWSServer(t, hub)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=ws-test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}

	waitFor(t, func() bool { return hub.ClientCount("ws-test") == 1 })

	conn.Close()

	waitFor(t, func() bool { return hub.ClientCount("ws-test") == 0 })
}

func TestWebSocketMessageReceive(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	server := newWSServer(t, hub)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=msg-test"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.ClientCount("msg-test") == 1 })

	hub.BroadcastToSession("msg-test", &engine.GameState{Grid: []int{2, 2, 0, 0}, GridSize: 2, Score: 200})
	hub.BroadcastAction("msg-test", []engine.Event{{Type: engine.EventSpawnAnimation, Index: 3, Value: 1}}, nil)

	for i, want := range []string{EventStateUpdate, EventAction} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, messageData, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read WebSocket message %d: %v", i, err)
		}

		var message Message
		if err := json.Unmarshal(messageData, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.Event != want {
			t.Errorf("message %d: expected %s, got %s", i, want, message.Event)
		}
		if message.SessionID != "msg-test" {
			t.Errorf("Expected sessionID 'msg-test', got %s", message.SessionID)
		}
	}
}
