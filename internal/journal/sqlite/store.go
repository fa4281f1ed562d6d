// Package sqlite provides a SQLite-backed journal store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/streamlogic/tslsim/internal/journal"
	"github.com/streamlogic/tslsim/internal/journal/filter"
	"github.com/streamlogic/tslsim/internal/journal/sqlite/migrations"
	sqlitemigrate "github.com/streamlogic/tslsim/internal/platform/storage/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists journal records in SQLite. Insertion order is the rowid
// order, so List returns records exactly as they were appended.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite journal store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append inserts one journal record.
func (s *Store) Append(ctx context.Context, rec journal.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("journal storage is not configured")
	}
	if rec.ID == "" || rec.SessionID == "" || rec.Scenario == "" {
		return journal.ErrRecordInvalid
	}

	takenAt := rec.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now().UTC()
	}

	violated := rec.Violated
	if violated == nil {
		violated = []string{}
	}
	violatedJSON, err := json.Marshal(violated)
	if err != nil {
		return fmt.Errorf("encode violated guarantees: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO journal_records (
		   id,
		   session_id,
		   scenario,
		   step_index,
		   option,
		   violated,
		   violated_count,
		   taken_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.SessionID,
		rec.Scenario,
		rec.StepIndex,
		rec.Option,
		string(violatedJSON),
		len(rec.Violated),
		toMillis(takenAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return journal.ErrDuplicateRecord
		}
		return fmt.Errorf("append journal record: %w", err)
	}
	return nil
}

// List returns matching records oldest first, up to the query limit.
func (s *Store) List(ctx context.Context, q journal.Query) ([]journal.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("journal storage is not configured")
	}

	cond, err := filter.ToSQL(q.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", journal.ErrFilterInvalid, err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = journal.DefaultLimit
	}

	query := `SELECT id, session_id, scenario, step_index, option, violated, taken_at
	   FROM journal_records`
	params := make([]any, 0, len(cond.Params)+1)
	if cond.Clause != "" {
		query += "\n	  WHERE " + cond.Clause
		params = append(params, cond.Params...)
	}
	query += "\n	  ORDER BY rowid ASC\n	  LIMIT ?"
	params = append(params, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list journal records: %w", err)
	}
	defer rows.Close()

	var out []journal.Record
	for rows.Next() {
		var rec journal.Record
		var violatedJSON string
		var takenAt int64
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Scenario,
			&rec.StepIndex,
			&rec.Option,
			&violatedJSON,
			&takenAt,
		); err != nil {
			return nil, fmt.Errorf("list journal records: %w", err)
		}
		var violated []string
		if err := json.Unmarshal([]byte(violatedJSON), &violated); err != nil {
			return nil, fmt.Errorf("decode violated guarantees: %w", err)
		}
		if len(violated) > 0 {
			rec.Violated = violated
		}
		rec.TakenAt = fromMillis(takenAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list journal records: %w", err)
	}

	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
