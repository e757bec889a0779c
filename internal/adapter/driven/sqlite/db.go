// Package sqlite implements the local profile journal on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MemoryPath selects a journal that lives only as long as the process.
const MemoryPath = ":memory:"

// journalPragmas apply to every connection. WAL is added for file journals
// only; SQLite ignores it for in-memory databases.
var journalPragmas = []string{"busy_timeout(5000)", "synchronous(NORMAL)", "foreign_keys(ON)"}

// DB holds the journal's connections: a single writer so appends never race
// for the lock, and a small reader pool for listings.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// OpenJournal opens the journal at path, creating its parent directory when
// needed. An empty path or MemoryPath opens a private in-memory journal.
// Call Migrate before use.
func OpenJournal(ctx context.Context, path string) (*DB, error) {
	if path == "" || path == MemoryPath {
		return openDSN(ctx, MemoryPath, memoryDSN("journal-"+uuid.NewString()))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	return openDSN(ctx, path, fileDSN(path))
}

func fileDSN(path string) string {
	q := url.Values{"_pragma": append([]string{"journal_mode(WAL)"}, journalPragmas...)}
	return "file:" + path + "?" + q.Encode()
}

// memoryDSN names a shared-cache in-memory database so the writer and the
// reader pool see the same data.
func memoryDSN(name string) string {
	q := url.Values{"_pragma": journalPragmas}
	q.Set("mode", "memory")
	q.Set("cache", "shared")
	return "file:" + url.PathEscape(name) + "?" + q.Encode()
}

func openDSN(ctx context.Context, path, dsn string) (*DB, error) {
	writer, err := openPool(ctx, dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("open journal writer: %w", err)
	}
	reader, err := openPool(ctx, dsn, 4)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open journal reader: %w", err)
	}
	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

func openPool(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

// Path returns the journal file path, or MemoryPath.
func (db *DB) Path() string { return db.path }

// Close closes both pools and returns the first error.
func (db *DB) Close() error {
	var firstErr error
	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}
	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}
	return firstErr
}
