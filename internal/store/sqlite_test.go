package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/todobot/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "todobot.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func mustCreateUser(t *testing.T, s *SQLiteStore, name string) *domain.User {
	t.Helper()

	u, err := s.CreateUser(context.Background(), name, time.Now())
	if err != nil {
		t.Fatalf("CreateUser(%q) failed: %v", name, err)
	}
	return u
}

func TestUsers(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	bob := mustCreateUser(t, s, "bob")
	alice := mustCreateUser(t, s, "alice")

	_, err := s.CreateUser(ctx, "alice", time.Now())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for duplicate name, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].Name != "alice" || users[1].Name != "bob" {
		t.Fatalf("expected users ordered by name, got %+v", users)
	}

	got, err := s.GetUser(ctx, bob.ID)
	if err != nil || got == nil || got.Name != "bob" {
		t.Fatalf("GetUser returned %+v, %v", got, err)
	}

	byName, err := s.GetUserByName(ctx, "alice")
	if err != nil || byName == nil || byName.ID != alice.ID {
		t.Fatalf("GetUserByName returned %+v, %v", byName, err)
	}

	missing, err := s.GetUser(ctx, 9999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing user, got %+v, %v", missing, err)
	}

	later := time.Now().Add(time.Hour)
	if err := s.UpdateLastActive(ctx, bob.ID, later); err != nil {
		t.Fatalf("UpdateLastActive failed: %v", err)
	}
	got, _ = s.GetUser(ctx, bob.ID)
	if got.LastActive.UnixNano() != later.UnixNano() {
		t.Errorf("last_active not updated: got %v want %v", got.LastActive, later)
	}
}

func TestTodoLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "alice")
	base := time.Now()

	first, err := s.CreateTodo(ctx, alice.ID, "buy milk", base)
	if err != nil {
		t.Fatalf("CreateTodo failed: %v", err)
	}
	second, err := s.CreateTodo(ctx, alice.ID, "walk dog", base.Add(time.Second))
	if err != nil {
		t.Fatalf("CreateTodo failed: %v", err)
	}

	todos, err := s.ListTodos(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListTodos failed: %v", err)
	}
	if len(todos) != 2 || todos[0].ID != second.ID || todos[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", todos)
	}
	for _, td := range todos {
		if td.Completed || td.CompletedAt != nil {
			t.Fatalf("new todo should be pending without completed_at: %+v", td)
		}
	}

	ok, err := s.CompleteTodo(ctx, alice.ID, first.ID, base.Add(2*time.Second))
	if err != nil || !ok {
		t.Fatalf("CompleteTodo returned %v, %v", ok, err)
	}

	// Completing again is a reported no-op.
	ok, err = s.CompleteTodo(ctx, alice.ID, first.ID, base.Add(3*time.Second))
	if err != nil || ok {
		t.Fatalf("second CompleteTodo should report false, got %v, %v", ok, err)
	}

	todos, _ = s.ListTodos(ctx, alice.ID)
	for _, td := range todos {
		if td.Completed != (td.CompletedAt != nil) {
			t.Fatalf("completed_at invariant violated: %+v", td)
		}
		if td.ID == first.ID && td.CompletedAt.UnixNano() != base.Add(2*time.Second).UnixNano() {
			t.Errorf("completed_at changed by repeated complete: %v", td.CompletedAt)
		}
	}

	ok, err = s.DeleteTodo(ctx, alice.ID, second.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteTodo returned %v, %v", ok, err)
	}
	ok, err = s.DeleteTodo(ctx, alice.ID, second.ID)
	if err != nil || ok {
		t.Fatalf("second DeleteTodo should report false, got %v, %v", ok, err)
	}

	ok, err = s.CompleteTodo(ctx, alice.ID, 424242, time.Now())
	if err != nil || ok {
		t.Fatalf("completing missing todo should report false, got %v, %v", ok, err)
	}
}

func TestTodosAreScopedByOwner(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "alice")
	mallory := mustCreateUser(t, s, "mallory")

	todo, err := s.CreateTodo(ctx, alice.ID, "secret plan", time.Now())
	if err != nil {
		t.Fatalf("CreateTodo failed: %v", err)
	}

	if ok, err := s.CompleteTodo(ctx, mallory.ID, todo.ID, time.Now()); err != nil || ok {
		t.Fatalf("cross-user complete must fail, got %v, %v", ok, err)
	}
	if ok, err := s.DeleteTodo(ctx, mallory.ID, todo.ID); err != nil || ok {
		t.Fatalf("cross-user delete must fail, got %v, %v", ok, err)
	}

	list, err := s.ListTodos(ctx, mallory.ID)
	if err != nil || len(list) != 0 {
		t.Fatalf("mallory should see no todos, got %+v, %v", list, err)
	}

	list, _ = s.ListTodos(ctx, alice.ID)
	if len(list) != 1 || list[0].Completed {
		t.Fatalf("alice's todo should be untouched, got %+v", list)
	}
}

func TestCreateTodoRejectsUnknownUser(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if _, err := s.CreateTodo(context.Background(), 777, "orphan", time.Now()); err == nil {
		t.Fatal("expected foreign key failure for unknown user")
	}
}

func TestRecentConversationOrder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, s, "alice")
	base := time.Now()

	for i, content := range []string{"one", "two", "three"} {
		entry := &domain.ConversationEntry{
			UserID:    alice.ID,
			Role:      domain.RoleUser,
			Content:   content,
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		}
		if err := s.AppendConversation(ctx, entry); err != nil {
			t.Fatalf("AppendConversation failed: %v", err)
		}
		if entry.ID == 0 {
			t.Fatal("expected ID to be assigned")
		}
	}

	recent, err := s.RecentConversation(ctx, alice.ID, 2)
	if err != nil {
		t.Fatalf("RecentConversation failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "three" || recent[1].Content != "two" {
		t.Fatalf("expected newest first, got %+v", recent)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "migrate.db")

	if err := Migrate(path, Up); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if err := Migrate(path, Up); err != nil {
		t.Fatalf("repeated migrate up should be a no-op: %v", err)
	}
	if err := Migrate(path, Down); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	if err := Migrate(path, Direction("sideways")); err == nil {
		t.Fatal("expected error for unknown direction")
	}
}
