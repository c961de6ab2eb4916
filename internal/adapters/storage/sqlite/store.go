// Package sqlite implements ports.KeyValueStore on a single-file SQLite
// database using modernc.org/sqlite (pure Go, no CGO) in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// DefaultBusyTimeout is used when Config.BusyTimeout is zero.
const DefaultBusyTimeout = 5 * time.Second

// Compile-time interface guards.
var (
	_ ports.KeyValueStore = (*Store)(nil)
	_ ports.HealthChecker = (*Store)(nil)
)

// Config contains the settings for opening a Store.
type Config struct {
	// Path is the database file. Parent directories are created as needed.
	Path string

	// BusyTimeout is how long a writer waits for a lock before failing.
	BusyTimeout time.Duration

	// Logger for storage events. Defaults to slog.Default() if nil.
	Logger *slog.Logger
}

// Store is a durable key-value store backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the database at cfg.Path and migrates the
// schema. The caller must Close the returned store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = DefaultBusyTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}

	// One connection so the PRAGMAs below apply to every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds())); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite storage opened",
		slog.String("path", cfg.Path),
		slog.Duration("busy_timeout", cfg.BusyTimeout),
	)

	return &Store{db: db, path: cfg.Path, logger: logger}, nil
}

const upsertSQL = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("sqlite: get %q: %w", key, err)
	}

	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, upsertSQL, key, value, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite: set %q: %w", key, err)
	}

	return nil
}

// Update runs fn inside a BEGIN IMMEDIATE transaction, which takes the
// database write lock before the read. Writers in other processes wait up
// to the busy timeout for it.
func (s *Store) Update(ctx context.Context, key string, fn ports.UpdateFunc) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: update %q: %w", key, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("sqlite: update %q: begin: %w", key, err)
	}

	if err := s.updateInTx(ctx, conn, key, fn); err != nil {
		if _, rbErr := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); rbErr != nil {
			s.logger.Warn("sqlite rollback failed", slog.String("key", key), slog.Any("error", rbErr))
		}

		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return fmt.Errorf("sqlite: update %q: commit: %w", key, err)
	}

	return nil
}

func (s *Store) updateInTx(ctx context.Context, conn *sql.Conn, key string, fn ports.UpdateFunc) error {
	var current string

	found := true

	err := conn.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		found = false
	case err != nil:
		return fmt.Errorf("sqlite: update %q: read: %w", key, err)
	}

	next, write, err := fn(current, found)
	if err != nil || !write {
		return err
	}

	if _, err := conn.ExecContext(ctx, upsertSQL, key, next, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("sqlite: update %q: write: %w", key, err)
	}

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "storage"
}

// Check implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping %s: %w", s.path, err)
	}

	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close: %w", err)
	}

	return nil
}
