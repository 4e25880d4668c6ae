package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/crisislog/internal/model"
)

// SQLiteStore keeps one row per incident. Rows are insert-only: saving a
// collection never rewrites an incident that is already stored.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS incidents (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	date TEXT NOT NULL,
	type TEXT NOT NULL,
	location TEXT NOT NULL,
	deaths INTEGER NOT NULL DEFAULT 0,
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_date ON incidents(date);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Load returns incidents in insertion order
func (s *SQLiteStore) Load(ctx context.Context) ([]model.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM incidents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []model.Incident
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var inc model.Incident
		if err := json.Unmarshal([]byte(data), &inc); err != nil {
			return nil, fmt.Errorf("decode incident: %w", err)
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// Save inserts incidents whose id is not stored yet
func (s *SQLiteStore) Save(ctx context.Context, incidents []model.Incident) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO incidents(id, date, type, location, deaths, data)
VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, inc := range incidents {
		data, err := json.Marshal(inc)
		if err != nil {
			return fmt.Errorf("encode %s: %w", inc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, inc.ID, inc.Date, inc.Type, inc.Location, inc.Casualties.Deaths, string(data)); err != nil {
			return fmt.Errorf("insert %s: %w", inc.ID, err)
		}
	}

	return tx.Commit()
}

// Count returns the number of stored incidents
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n)
	return n, err
}
