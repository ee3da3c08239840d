// Package store handles SQLite persistence of the local action journal.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/presim/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for journal data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// The poller and the UI may journal concurrently; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY,
			action TEXT NOT NULL,
			issued_at TEXT NOT NULL,
			ok INTEGER NOT NULL,
			error TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_issued_at ON actions(issued_at);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_action ON actions(action);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertAction appends one record to the journal.
func (s *Store) InsertAction(ctx context.Context, rec model.ActionRecord) (int64, error) {
	ok := 0
	if rec.OK {
		ok = 1
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO actions (action, issued_at, ok, error, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		rec.Action,
		rec.IssuedAt.UTC().Format(time.RFC3339Nano),
		ok,
		rec.Error,
		rec.DurationMs,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func filterClauses(filter model.HistoryFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Since != nil {
		clauses = append(clauses, "issued_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	return strings.Join(clauses, " AND "), args
}

// ListActions returns journal records, oldest first. A positive Last keeps
// only the most recent records.
func (s *Store) ListActions(ctx context.Context, filter model.HistoryFilter) ([]model.ActionRecord, error) {
	where, args := filterClauses(filter)
	limit := -1
	if filter.Last > 0 {
		limit = filter.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT id, action, issued_at, ok, error, duration_ms FROM (
		SELECT * FROM actions
		WHERE %s
		ORDER BY issued_at DESC, id DESC
		LIMIT ?
	) ORDER BY issued_at ASC, id ASC`, where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.ActionRecord
	for rows.Next() {
		var rec model.ActionRecord
		var issuedAt string
		var ok int
		if err := rows.Scan(&rec.ID, &rec.Action, &issuedAt, &ok, &rec.Error, &rec.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, issuedAt)
		if err != nil {
			return nil, err
		}
		rec.IssuedAt = parsed
		rec.OK = ok != 0
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SummarizeActions aggregates the journal per action, ordered by action name.
func (s *Store) SummarizeActions(ctx context.Context, filter model.HistoryFilter) ([]model.ActionSummary, error) {
	where, args := filterClauses(filter)
	query := fmt.Sprintf(`SELECT action, COUNT(*) AS total, SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END) AS failures,
		MAX(issued_at) AS last_at
		FROM actions
		WHERE %s
		GROUP BY action
		ORDER BY action ASC`, where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.ActionSummary
	for rows.Next() {
		var sum model.ActionSummary
		var lastAt string
		if err := rows.Scan(&sum.Action, &sum.Total, &sum.Failures, &lastAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, lastAt)
		if err != nil {
			return nil, err
		}
		sum.LastAt = parsed
		result = append(result, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
