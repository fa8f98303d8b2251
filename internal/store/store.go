// Package store is the PostgreSQL persistence layer. A Store is constructed
// around an injected *sql.DB and passed to its consumers; there is no
// package-level connection.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/adpulse/adpulse/internal/logging"
)

// Store executes queries against the adpulse database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.L()
	}
	return &Store{db: db, logger: logger}
}

// Open connects to PostgreSQL through the pgx stdlib driver and verifies the
// connection.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }
