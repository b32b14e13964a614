package idempotency

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

//go:embed schema.sql
var sqliteSchema string

// SQLiteBackend stores records in a SQLite database file.
type SQLiteBackend struct {
	db *sql.DB
}

var _ Backend = (*SQLiteBackend)(nil)

// OpenSQLite creates or opens the database at path and applies the schema.
//
// The connection is configured with WAL journaling, NORMAL synchronous mode
// and a 5s busy timeout. The pool is limited to one connection since SQLite
// allows a single writer.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Get implements Backend.
func (s *SQLiteBackend) Get(ctx context.Context, activity, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT activity, idem_key, fingerprint, result, error_kind, error_message, created_at
		FROM idempotency_records
		WHERE activity = ? AND idem_key = ?`, activity, key)

	var (
		rec       Record
		fp        string
		result    []byte
		errKind   sql.NullString
		errMsg    sql.NullString
		createdAt int64
	)
	err := row.Scan(&rec.Activity, &rec.Key, &fp, &result, &errKind, &errMsg, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	rec.Fingerprint = Fingerprint(fp)
	rec.Result = result
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	if errKind.Valid {
		rec.Err = &ticket.OperationError{Kind: ticket.Kind(errKind.String), Message: errMsg.String}
	}
	return &rec, nil
}

// PutIfAbsent implements Backend using INSERT ... ON CONFLICT DO NOTHING.
func (s *SQLiteBackend) PutIfAbsent(ctx context.Context, rec *Record) (*Record, bool, error) {
	var errKind, errMsg sql.NullString
	if rec.Err != nil {
		errKind = sql.NullString{String: string(rec.Err.Kind), Valid: true}
		errMsg = sql.NullString{String: rec.Err.Message, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_records
			(activity, idem_key, fingerprint, result, error_kind, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (activity, idem_key) DO NOTHING`,
		rec.Activity, rec.Key, string(rec.Fingerprint), []byte(rec.Result), errKind, errMsg, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 1 {
		return rec, true, nil
	}

	stored, err := s.Get(ctx, rec.Activity, rec.Key)
	if err != nil {
		return nil, false, fmt.Errorf("reading conflicting record: %w", err)
	}
	return stored, false, nil
}

// Close implements Backend.
func (s *SQLiteBackend) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
