// Package storetest opens throwaway SQLite repositories for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/todobot/internal/domain"
	"github.com/ashureev/todobot/internal/store"
)

// New returns a migrated SQLite store in a per-test temp directory.
func New(t testing.TB) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close test store: %v", err)
		}
	})
	return s
}

// User registers a user and fails the test on error.
func User(t testing.TB, repo store.Repository, name string) *domain.User {
	t.Helper()

	u, err := repo.CreateUser(context.Background(), name, time.Now())
	if err != nil {
		t.Fatalf("create user %q: %v", name, err)
	}
	return u
}
