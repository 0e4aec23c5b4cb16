package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS command_log (
	id         TEXT PRIMARY KEY,
	command    TEXT NOT NULL,
	actor      TEXT NOT NULL,
	guild      TEXT NOT NULL DEFAULT '',
	params     TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_command_log_command_created ON command_log(command, created_at);
`

// SQLiteSink appends records to the command_log table. Rows are never updated.
type SQLiteSink struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (or creates) the database at path and migrates the schema.
func OpenSQLite(path string) (*SQLiteSink, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// an in-memory database exists per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Close() error { return s.db.Close() }

func (s *SQLiteSink) Write(ctx context.Context, r Record) error {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO command_log (id, command, actor, guild, params, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Command, r.Actor, r.Guild, string(params), r.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, actor, guild, params, created_at FROM command_log ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			id, params string
			at         time.Time
			r          Record
		)
		if err := rows.Scan(&id, &r.Command, &r.Actor, &r.Guild, &params, &at); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid audit id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return nil, fmt.Errorf("invalid audit params for %s: %w", id, err)
		}
		r.At = at
		out = append(out, r)
	}
	return out, rows.Err()
}
