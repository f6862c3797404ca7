package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wricardo/mcp-training/dicemerge/game/engine"
	"github.com/wricardo/mcp-training/dicemerge/game/service"
)

// Client plays one session over the REST API
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SessionID is the session the client is playing
func (c *Client) SessionID() string {
	return c.sessionID
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, configID string) (*engine.GameState, error) {
	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.do(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return nil, err
	}

	c.sessionID = session.ID
	return session.GameState, nil
}

// Resume attaches to an existing session
func (c *Client) Resume(ctx context.Context, sessionID string) (*engine.GameState, error) {
	c.sessionID = sessionID
	return c.GetState(ctx)
}

func (c *Client) GetState(ctx context.Context) (*engine.GameState, error) {
	var state engine.GameState
	if err := c.do(ctx, "GET", c.sessionPath("state"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) Select(ctx context.Context, index int) (*service.ActionResult, error) {
	return c.action(ctx, "select", map[string]int{"index": index})
}

func (c *Client) Merge(ctx context.Context, source, target int) (*service.ActionResult, error) {
	return c.action(ctx, "merge", map[string]int{"source": source, "target": target})
}

func (c *Client) Spawn(ctx context.Context) (*service.ActionResult, error) {
	return c.action(ctx, "spawn", nil)
}

func (c *Client) NewGame(ctx context.Context) (*service.ActionResult, error) {
	return c.action(ctx, "new-game", nil)
}

// Leaderboard returns the server's best runs
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]service.LeaderboardEntry, error) {
	var resp struct {
		Entries []service.LeaderboardEntry `json:"entries"`
	}
	if err := c.do(ctx, "GET", fmt.Sprintf("/api/leaderboard?limit=%d", limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) sessionPath(action string) string {
	return fmt.Sprintf("/api/sessions/%s/%s", c.sessionID, action)
}

func (c *Client) action(ctx context.Context, name string, body interface{}) (*service.ActionResult, error) {
	var result service.ActionResult
	if err := c.do(ctx, "POST", c.sessionPath(name), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
