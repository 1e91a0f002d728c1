package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"PmcReader/internal/domain"
	"PmcReader/internal/ports"
)

const createCacheTable = `CREATE TABLE IF NOT EXISTS document_cache (
    key        TEXT    PRIMARY KEY,
    value      TEXT    NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_document_cache_expires ON document_cache (expires_at);`

// SQLiteStore persists parsed documents across processes. Entries carry
// their own expiry so a shorter-lived memory cache in front never
// resurrects stale rows.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

var _ ports.DocumentStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and initializes if needed) the database at path.
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SQLiteStore{db: db, ttl: ttl}, nil
}

// Get returns the stored document for key, or nil on miss/expiry.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*domain.Document, error) {
	query, args, err := sq.Select("value").
		From("document_cache").
		Where(sq.Eq{"key": key}).
		Where(sq.Gt{"expires_at": time.Now().Unix()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var raw string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query cache: %w", err)
	}

	var doc domain.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		// Treat undecodable rows as misses so a schema change does not
		// poison lookups forever.
		return nil, nil
	}
	return &doc, nil
}

// Put upserts the document under key with a fresh expiry.
func (s *SQLiteStore) Put(ctx context.Context, key string, doc *domain.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	query, args, err := sq.Replace("document_cache").
		Columns("key", "value", "expires_at").
		Values(key, string(raw), time.Now().Add(s.ttl).Unix()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert cache row: %w", err)
	}
	return nil
}

// Delete removes the row for key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete("document_cache").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete cache row: %w", err)
	}
	return nil
}

// Purge removes every row.
func (s *SQLiteStore) Purge(ctx context.Context) error {
	query, args, err := sq.Delete("document_cache").ToSql()
	if err != nil {
		return fmt.Errorf("build purge: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
