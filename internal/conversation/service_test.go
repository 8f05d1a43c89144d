package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ashureev/todobot/internal/domain"
	"github.com/ashureev/todobot/internal/store/storetest"
)

func TestHistoryIsChronological(t *testing.T) {
	t.Parallel()
	repo := storetest.New(t)
	alice := storetest.User(t, repo, "alice")
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		if _, err := svc.Append(ctx, alice.ID, role, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	history, err := svc.History(ctx, alice.ID, 4)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	want := []string{"msg-2", "msg-3", "msg-4", "msg-5"}
	if len(history) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(history))
	}
	for i, e := range history {
		if e.Content != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, e.Content, want[i])
		}
		if i > 0 && !e.Timestamp.After(history[i-1].Timestamp) {
			t.Errorf("timestamps not increasing at %d", i)
		}
	}
}

func TestTimestampsStrictlyIncreaseWithFrozenClock(t *testing.T) {
	t.Parallel()
	repo := storetest.New(t)
	alice := storetest.User(t, repo, "alice")
	svc := NewService(repo)
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return frozen }
	ctx := context.Background()

	first, err := svc.Append(ctx, alice.ID, domain.RoleUser, "hi")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	second, err := svc.Append(ctx, alice.ID, domain.RoleAssistant, "hello")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !second.Timestamp.After(first.Timestamp) {
		t.Fatalf("expected %v after %v", second.Timestamp, first.Timestamp)
	}
}

func TestHistoryDefaultsAndIsolation(t *testing.T) {
	t.Parallel()
	repo := storetest.New(t)
	alice := storetest.User(t, repo, "alice")
	bob := storetest.User(t, repo, "bob")
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < DefaultLimit+5; i++ {
		if _, err := svc.Append(ctx, alice.ID, domain.RoleUser, "x"); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	history, err := svc.History(ctx, alice.ID, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, len(history))
	}

	other, err := svc.History(ctx, bob.ID, 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("bob should have no history, got %d entries", len(other))
	}
}
