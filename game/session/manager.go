package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/dicemerge/game/engine"
	"github.com/wricardo/mcp-training/dicemerge/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// maxIDAttempts bounds retries when a generated ID collides
const maxIDAttempts = 16

// Manager hosts one dice engine per session. Sessions are keyed by their
// lower-cased ID, so lookups ignore case. With persistence configured every
// board change is written through Save; access times are only marked and
// written in batches by SaveAccessTimes.
type Manager struct {
	sessions    map[string]*service.Session
	touched     map[string]bool
	persistence SessionPersistence
	engineOpts  []engine.Option
	mu          sync.RWMutex
}

// NewManager creates an in-memory session manager. opts are applied to
// every engine it creates.
func NewManager(opts ...engine.Option) *Manager {
	return NewManagerWithPersistence(nil, opts...)
}

// NewManagerWithPersistence creates a session manager backed by persistence
func NewManagerWithPersistence(persistence SessionPersistence, opts ...engine.Option) *Manager {
	return &Manager{
		sessions:    make(map[string]*service.Session),
		touched:     make(map[string]bool),
		persistence: persistence,
		engineOpts:  opts,
	}
}

func key(id string) string {
	return strings.ToLower(id)
}

// Create starts a new game on a fresh engine. An empty id draws a random
// 4-hex ID.
func (m *Manager) Create(id string, config *engine.GameConfig) (*service.Session, error) {
	if strings.ContainsAny(id, `/\. `) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		generated, err := m.uniqueSessionID()
		if err != nil {
			return nil, err
		}
		id = generated
	}
	if _, exists := m.sessions[key(id)]; exists {
		return nil, ErrSessionAlreadyExists
	}

	eng, err := engine.NewEngine(config, m.engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	eng.StartSession()

	now := time.Now()
	session := &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.sessions[key(id)] = session

	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			log.Printf("Warning: Failed to persist session %s: %v", id, err)
		}
	}
	return session, nil
}

// Get returns a session, loading it from persistence when it is not in memory
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[key(id)]
	m.mu.RUnlock()
	if exists {
		return session, nil
	}

	if m.persistence == nil || !m.persistence.Exists(id) {
		return nil, ErrSessionNotFound
	}
	loaded, err := m.persistence.Load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have loaded it meanwhile
	if session, exists := m.sessions[key(id)]; exists {
		return session, nil
	}
	m.sessions[key(id)] = loaded
	return loaded, nil
}

// List returns all sessions in memory
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

// Delete removes a session from memory and from persistence
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, inMemory := m.sessions[key(id)]
	delete(m.sessions, key(id))
	delete(m.touched, key(id))

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}
	if !inMemory {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory drops a session from memory and leaves its file alone
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[key(id)]; !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, key(id))
	delete(m.touched, key(id))
	return nil
}

// UpdateLastAccessed stamps the session as used now. The new time reaches
// disk with the next Save or SaveAccessTimes.
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[key(id)]
	if !exists {
		return ErrSessionNotFound
	}
	session.LastAccessedAt = time.Now()
	m.touched[key(id)] = true
	return nil
}

// Save writes one session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.Lock()
	session, exists := m.sessions[key(id)]
	delete(m.touched, key(id))
	m.mu.Unlock()
	if !exists {
		return ErrSessionNotFound
	}
	return m.persistence.Save(session)
}

// SaveAccessTimes writes every session whose access time changed since it
// was last saved, and reports how many were written.
func (m *Manager) SaveAccessTimes() int {
	if m.persistence == nil {
		return 0
	}

	m.mu.Lock()
	pending := make([]*service.Session, 0, len(m.touched))
	for k := range m.touched {
		if session, ok := m.sessions[k]; ok {
			pending = append(pending, session)
		}
	}
	m.touched = make(map[string]bool)
	m.mu.Unlock()

	saved := 0
	for _, session := range pending {
		if err := m.persistence.Save(session); err != nil {
			log.Printf("Warning: Failed to persist access time of session %s: %v", session.ID, err)
			continue
		}
		saved++
	}
	return saved
}

// ExpireSessions removes sessions idle for longer than maxAge from memory
// and returns them, so callers can settle their runs.
func (m *Manager) ExpireSessions(maxAge time.Duration) []*service.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var expired []*service.Session
	for k, session := range m.sessions {
		if session.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, k)
			delete(m.touched, k)
			expired = append(expired, session)
		}
	}
	return expired
}

// CleanupExpiredSessions is ExpireSessions reporting only the count
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	return len(m.ExpireSessions(maxAge))
}

// Count returns the number of sessions in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID returns 4 random hex characters
func generateSessionID() string {
	b := make([]byte, 2)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// uniqueSessionID draws IDs until one is free in memory and on disk.
// Callers hold m.mu.
func (m *Manager) uniqueSessionID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := generateSessionID()
		if _, exists := m.sessions[key(id)]; exists {
			continue
		}
		if m.persistence != nil && m.persistence.Exists(id) {
			continue
		}
		return id, nil
	}
	return "", fmt.Errorf("%w: no free ID after %d attempts", ErrSessionAlreadyExists, maxIDAttempts)
}

// LoadPersistedSessions loads every persisted session not already in memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if _, exists := m.sessions[key(id)]; exists {
			continue
		}
		session, err := m.persistence.Load(id)
		if err != nil {
			log.Printf("Warning: Failed to load persisted session %s: %v", id, err)
			continue
		}
		m.sessions[key(id)] = session
		loaded++
	}

	if loaded > 0 {
		log.Printf("Loaded %d persisted sessions from storage", loaded)
	}
	return nil
}

// SaveAllSessions writes every session in memory
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	m.mu.Lock()
	sessions := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.touched = make(map[string]bool)
	m.mu.Unlock()

	failed := 0
	for _, session := range sessions {
		if err := m.persistence.Save(session); err != nil {
			log.Printf("Warning: Failed to save session %s: %v", session.ID, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to save %d sessions", failed)
	}
	return nil
}
