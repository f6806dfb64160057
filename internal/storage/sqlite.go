package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps documents in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load implements Documents.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", key, err)
	}
	return body, nil
}

// Save implements Documents.
func (s *SQLiteStore) Save(ctx context.Context, key string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, body, version, updated_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			body = excluded.body,
			version = documents.version + 1,
			updated_at = CURRENT_TIMESTAMP`, key, body)
	if err != nil {
		return fmt.Errorf("save document %s: %w", key, err)
	}

	slog.DebugContext(ctx, "Document saved to SQLite", "key", key, "bytes", len(body))
	return nil
}

// Version returns the number of times key has been written, 0 if never.
func (s *SQLiteStore) Version(ctx context.Context, key string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM documents WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("document version %s: %w", key, err)
	}
	return v, nil
}

// Quarantine implements Quarantiner.
func (s *SQLiteStore) Quarantine(ctx context.Context, key string, body []byte, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quarantined_documents (key, body, reason) VALUES (?, ?, ?)`, key, body, reason)
	if err != nil {
		return fmt.Errorf("quarantine document %s: %w", key, err)
	}
	slog.WarnContext(ctx, "Unreadable document quarantined", "key", key, "bytes", len(body), "reason", reason)
	return nil
}

// QuarantineCount returns how many copies of key have been quarantined.
func (s *SQLiteStore) QuarantineCount(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quarantined_documents WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count quarantined %s: %w", key, err)
	}
	return n, nil
}
