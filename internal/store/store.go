// Package store keeps the console's audit journal in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/importdesk/importdesk/internal/model"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a journal that lives only as long as the process.
const MemoryPath = ":memory:"

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == MemoryPath {
		// Each connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		target TEXT NOT NULL DEFAULT '',
		at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends an entry. A zero At is stamped with the current time.
func (s *Store) Record(ctx context.Context, e model.AuditEntry) error {
	if e.Action == "" {
		return fmt.Errorf("audit entry without action")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, target, at) VALUES (?, ?, ?)`,
		e.Action, e.Target, e.At.UTC(),
	)
	return err
}

// List returns up to limit entries, newest first. An empty action lists
// every action; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, action string, limit int) ([]model.AuditEntry, error) {
	query := `SELECT id, action, target, at FROM audit_log WHERE 1=1`
	var args []any
	if action != "" {
		query += ` AND action = ?`
		args = append(args, action)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Target, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of entries per action.
func (s *Store) Count(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT action, COUNT(*) FROM audit_log GROUP BY action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		counts[action] = n
	}
	return counts, rows.Err()
}

// Prune deletes entries recorded before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
