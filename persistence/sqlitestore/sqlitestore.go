// Package sqlitestore provides SQLite-based persistence for transcript records.
package sqlitestore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/arrg-project/arrg/chat"
	"github.com/arrg-project/arrg/persistence"
)

// SQLiteStore implements persistence.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ persistence.Store = (*SQLiteStore)(nil)

// New creates a new SQLite-based store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS records (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    timestamp  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_session ON records(session_id);
CREATE INDEX IF NOT EXISTS idx_records_timestamp ON records(session_id, timestamp);
`
	_, err := s.db.Exec(schema)
	return err
}

// AddRecord implements persistence.Store.
func (s *SQLiteStore) AddRecord(sessionID string, record persistence.Record) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO records (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
		sessionID, string(record.Role), record.Content, record.Timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get insert id: %w", err)
	}

	return id, nil
}

// GetAllRecords implements persistence.Store.
func (s *SQLiteStore) GetAllRecords(sessionID string) ([]persistence.Record, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, timestamp FROM records WHERE session_id = ? ORDER BY timestamp, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []persistence.Record
	for rows.Next() {
		var r persistence.Record
		var roleStr string
		if err := rows.Scan(&r.ID, &roleStr, &r.Content, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Role = chat.Role(roleStr)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// ListSessions implements persistence.Store.
func (s *SQLiteStore) ListSessions() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT session_id FROM records ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sessionID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Clear implements persistence.Store.
func (s *SQLiteStore) Clear(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM records WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

// Close implements persistence.Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
