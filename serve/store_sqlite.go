package serve

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path,
// creating its parent directory if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Init creates the schema tables.
func (s *SQLiteStore) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		script         TEXT NOT NULL,
		provider       TEXT NOT NULL DEFAULT '',
		model          TEXT NOT NULL DEFAULT '',
		succeeded      INTEGER NOT NULL DEFAULT 0,
		validated      INTEGER NOT NULL DEFAULT 0,
		artifact       TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		note           TEXT NOT NULL DEFAULT '',
		turns          INTEGER NOT NULL DEFAULT 0,
		tool_calls     TEXT NOT NULL DEFAULT '[]',
		input_tokens   INTEGER NOT NULL DEFAULT 0,
		output_tokens  INTEGER NOT NULL DEFAULT 0,
		cost_usd       REAL NOT NULL DEFAULT 0,
		started_at     DATETIME NOT NULL,
		completed_at   DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertRun records a finished run.
func (s *SQLiteStore) InsertRun(r RunRecord) error {
	toolCalls, err := json.Marshal(r.ToolCalls)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO runs
		 (id, script, provider, model, succeeded, validated, artifact, failure_reason, note,
		  turns, tool_calls, input_tokens, output_tokens, cost_usd, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Script, r.Provider, r.Model, r.Succeeded, r.Validated, r.Artifact, r.FailureReason, r.Note,
		r.Turns, string(toolCalls), r.InputTokens, r.OutputTokens, r.CostUSD, r.StartedAt, r.CompletedAt,
	)
	return err
}

const runColumns = `id, script, provider, model, succeeded, validated, artifact, failure_reason, note,
	turns, tool_calls, input_tokens, output_tokens, cost_usd, started_at, completed_at`

// GetRun returns one run by ID.
func (s *SQLiteStore) GetRun(id string) (*RunRecord, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*RunRecord, error) {
	var r RunRecord
	var toolCalls string
	if err := sc.Scan(
		&r.ID, &r.Script, &r.Provider, &r.Model, &r.Succeeded, &r.Validated, &r.Artifact, &r.FailureReason, &r.Note,
		&r.Turns, &toolCalls, &r.InputTokens, &r.OutputTokens, &r.CostUSD, &r.StartedAt, &r.CompletedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(toolCalls), &r.ToolCalls); err != nil {
		return nil, fmt.Errorf("decode tool calls for run %s: %w", r.ID, err)
	}
	return &r, nil
}
