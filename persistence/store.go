// Package persistence provides storage for conversation transcripts.
package persistence

import (
	"sync"
	"time"

	"github.com/arrg-project/arrg/chat"
)

// Record is one persisted conversation turn. Content is the flattened text
// form of the message: assistant text, tool output, or the user's prompt.
type Record struct {
	ID        int64     `json:"id"`
	Role      chat.Role `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists transcript records grouped by session id.
type Store interface {
	// AddRecord inserts a new record and returns its assigned ID.
	AddRecord(sessionID string, record Record) (int64, error)

	// GetAllRecords retrieves a session's records in chronological order.
	GetAllRecords(sessionID string) ([]Record, error)

	// ListSessions returns all session IDs in the store.
	ListSessions() ([]string, error)

	// Clear removes all records for a session.
	Clear(sessionID string) error

	// Close closes the store and releases resources.
	Close() error
}

// sessionData holds records for a single session.
type sessionData struct {
	records []Record
	nextID  int64
}

// MemoryStore provides an in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionData
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*sessionData),
	}
}

// AddRecord adds a new record to the in-memory store and returns its assigned ID.
func (m *MemoryStore) AddRecord(sessionID string, record Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.getOrCreateSessionLocked(sessionID)
	record.ID = sess.nextID
	sess.nextID++
	sess.records = append(sess.records, record)
	return record.ID, nil
}

// getOrCreateSessionLocked gets or creates a session (mutex must be held)
func (m *MemoryStore) getOrCreateSessionLocked(sessionID string) *sessionData {
	if sess, ok := m.sessions[sessionID]; ok {
		return sess
	}
	sess := &sessionData{
		records: make([]Record, 0),
		nextID:  1,
	}
	m.sessions[sessionID] = sess
	return sess
}

// GetAllRecords returns a copy of a session's records.
func (m *MemoryStore) GetAllRecords(sessionID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.getOrCreateSessionLocked(sessionID)
	result := make([]Record, len(sess.records))
	copy(result, sess.records)
	return result, nil
}

// ListSessions returns all session IDs in the store.
func (m *MemoryStore) ListSessions() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sessions []string
	for id := range m.sessions {
		sessions = append(sessions, id)
	}
	return sessions, nil
}

// Clear removes all records for a session.
func (m *MemoryStore) Clear(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		sess.records = sess.records[:0]
		sess.nextID = 1
	}
	return nil
}

// Close is a no-op for the in-memory store as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
