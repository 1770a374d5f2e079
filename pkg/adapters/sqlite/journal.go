// Package sqlite keeps the reconciliation journal in an SQLite database using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/vmtune/pkg/domain"
	_ "modernc.org/sqlite"
)

// Schema is applied on Open. Rows are never updated or deleted.
const Schema = `
CREATE TABLE IF NOT EXISTS reconciliations (
	tx_id       TEXT PRIMARY KEY,
	target      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	action      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT '',
	phase       TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	code        TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	backup_path TEXT NOT NULL DEFAULT '',
	edits       TEXT NOT NULL DEFAULT '[]',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reconciliations_target ON reconciliations(target, started_at);
`

// Journal implements ports.Journal.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path. ":memory:" is accepted for tests.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("journal: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	j, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// New wraps an open database and applies pragmas and the schema.
func New(db *sql.DB) (*Journal, error) {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("journal: exec schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts r.
func (j *Journal) Record(ctx context.Context, r *domain.Result) error {
	if r.TxID == "" {
		return errors.New("journal: result without transaction id")
	}
	edits, err := json.Marshal(r.Edits)
	if err != nil {
		return fmt.Errorf("journal: encode edits: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO reconciliations
			(tx_id, target, kind, action, status, phase, outcome, code, error, backup_path, edits, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TxID, r.Target, r.Kind, string(r.Action), string(r.Status), string(r.Phase), string(r.Outcome),
		string(r.Code), r.Error(), r.BackupPath, string(edits),
		r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("journal: insert %s: %w", r.TxID, err)
	}
	return nil
}

// History returns up to limit results for target (all when empty), newest first.
// limit <= 0 means no limit.
func (j *Journal) History(ctx context.Context, target string, limit int) ([]domain.Result, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT tx_id, target, kind, action, status, phase, outcome, code, error, backup_path, edits, started_at, finished_at
		FROM reconciliations
		WHERE ? = '' OR target = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, target, target, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Result
	for rows.Next() {
		var (
			r                                    domain.Result
			action, status, phase, outcome, code string
			msg, edits                           string
			started, finished                    int64
		)
		if err := rows.Scan(&r.TxID, &r.Target, &r.Kind, &action, &status, &phase, &outcome, &code,
			&msg, &r.BackupPath, &edits, &started, &finished); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		r.Action = domain.Action(action)
		r.Status = domain.Status(status)
		r.Phase = domain.Phase(phase)
		r.Outcome = domain.Outcome(outcome)
		r.Code = domain.Code(code)
		if msg != "" {
			r.Err = errors.New(msg)
		}
		if err := json.Unmarshal([]byte(edits), &r.Edits); err != nil {
			return nil, fmt.Errorf("journal: decode edits of %s: %w", r.TxID, err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
