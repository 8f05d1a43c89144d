package shared

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConflictErrorDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", errors.New("exec: SQLITE_BUSY"), true},
		{"locked", errors.New("database is locked (5)"), true},
		{"other", errors.New("no such table: todos"), false},
	}
	for _, tt := range tests {
		if got := IsSQLiteConflictError(tt.err); got != tt.want {
			t.Errorf("%s: IsSQLiteConflictError = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsUniqueViolationFallback(t *testing.T) {
	t.Parallel()

	if !IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.name (2067)")) {
		t.Error("expected unique violation")
	}
	if IsUniqueViolation(errors.New("FOREIGN KEY constraint failed")) {
		t.Error("foreign key failure is not a unique violation")
	}
}

func TestRetryOnConflict(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := RetryOnConflict(context.Background(), policy, "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	calls = 0
	permanent := errors.New("syntax error")
	err = RetryOnConflict(context.Background(), policy, "test", func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("non-conflict error should not retry: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = RetryOnConflict(context.Background(), policy, "test", func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected exhaustion after 3 calls, err=%v calls=%d", err, calls)
	}
}
