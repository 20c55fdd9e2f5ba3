// Package db is the storefront's SQLCipher-encrypted store: accounts,
// login sessions, API tokens and shopping carts.
package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxOpenConns bounds file-backed stores. SQLite is single-writer, so high
	// connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the idle pool size for file-backed stores.
	MaxIdleConns = 2
)

var (
	// ErrNotFound is returned when a row does not exist or has expired.
	ErrNotFound = errors.New("db: not found")

	// ErrEmailTaken is returned by CreateUser for a duplicate email.
	ErrEmailTaken = errors.New("db: email already registered")
)

// Store wraps the encrypted database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the encrypted store at path. key is the
// 32-byte SQLCipher key.
func Open(path string, key []byte) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be exactly 32 bytes, got %d", len(key))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Format: file.db?_pragma_key=x'HEX_KEY'&_pragma_cipher_page_size=4096
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", path, hex.EncodeToString(key))
	dsn = appendSQLiteParams(dsn, sqliteCommonParams())

	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)

	return initStore(sqlDB)
}

// OpenInMemory opens an encrypted store that lives as long as the returned
// Store. Each call gets its own database.
func OpenInMemory() (*Store, error) {
	key := hex.EncodeToString(make([]byte, 32))
	dsn := fmt.Sprintf("file:stylehaven-%s?mode=memory&cache=shared&_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_foreign_keys=on",
		uuid.NewString(), key)

	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory store: %w", err)
	}
	// One connection keeps the database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(0)
	sqlDB.SetConnMaxLifetime(0)

	return initStore(sqlDB)
}

func initStore(sqlDB *sql.DB) (*Store, error) {
	// Reading sqlite_master is the first page read, so a wrong key fails here.
	var tables int
	if err := sqlDB.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to verify store connection: %w", err)
	}
	if _, err := sqlDB.Exec(Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: sqlDB, now: time.Now}, nil
}

// SetClock replaces the store's time source. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// DB returns the underlying sql.DB for direct access when needed.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Purge deletes expired sessions and API tokens and returns how many rows
// went away.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	now := s.now().Unix()
	var total int64
	for _, q := range []string{
		`DELETE FROM sessions WHERE expires_at <= ?`,
		`DELETE FROM api_tokens WHERE expires_at <= ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, now)
		if err != nil {
			return total, fmt.Errorf("purge expired: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func sqliteCommonParams() string {
	// WAL + NORMAL provides good throughput while preserving safety.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

func nullUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0)
}
