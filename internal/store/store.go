package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// migrations run after schema creation. Each must be idempotent; append only.
var migrations = []string{
	// Categories created before the policy column existed.
	`UPDATE exchange_categories SET policy = 'consumable' WHERE policy IS NULL AND name = 'Food & Produce'`,
	`UPDATE exchange_categories SET policy = 'service' WHERE policy IS NULL AND name = 'Services & Skills'`,
}

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleStatus is returned when a guarded status update matched no row
	// because the status changed since it was read.
	ErrStaleStatus = errors.New("transaction status changed concurrently")
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store. driver is "postgres" or "sqlite".
func NewStore(driver, databaseURL string) (*Store, error) {
	db, err := sqlx.Connect(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	switch driver {
	case "sqlite":
		// One connection keeps :memory: databases alive and serialises writers.
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		}
		for _, p := range pragmas {
			if _, err := db.Exec(p); err != nil {
				db.Close()
				return nil, fmt.Errorf("setting pragma %q: %w", p, err)
			}
		}
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate creates the schema and applies pending migrations
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	for i, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// q rebinds a query written with ? placeholders for the active driver.
func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}
