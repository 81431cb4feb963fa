package store

import (
	"context"
	"testing"
)

// NewTestStore creates a fresh in-memory SQLite store with the schema applied.
func NewTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		s.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { s.Close() })

	return s
}
