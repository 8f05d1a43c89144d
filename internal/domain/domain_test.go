package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatsOf(t *testing.T) {
	t.Parallel()

	todos := []*Todo{
		{ID: 1, Completed: true},
		{ID: 2},
		{ID: 3},
	}
	stats := StatsOf(todos)
	if stats.Total != 3 || stats.Completed != 1 || stats.Pending != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Total != stats.Completed+stats.Pending {
		t.Fatalf("total %d != completed %d + pending %d", stats.Total, stats.Completed, stats.Pending)
	}

	empty := StatsOf(nil)
	if empty != (TodoStats{}) {
		t.Fatalf("expected zero stats, got %+v", empty)
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"user", "assistant"} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q) returned error: %v", s, err)
		}
	}
	if _, err := ParseRole("tool"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	t.Parallel()

	nf := fmt.Errorf("lookup: %w", &NotFoundError{Resource: "user", ID: 7})
	if !errors.Is(nf, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if errors.Is(nf, ErrConflict) {
		t.Error("NotFoundError should not match ErrConflict")
	}

	var target *NotFoundError
	if !errors.As(nf, &target) || target.ID != 7 {
		t.Errorf("errors.As failed, got %+v", target)
	}

	conflict := &ConflictError{Resource: "user", Field: "name", Value: "alice"}
	if !errors.Is(conflict, ErrConflict) {
		t.Error("ConflictError should match ErrConflict")
	}
	if got := conflict.Error(); got != `user with name "alice" already exists` {
		t.Errorf("unexpected message %q", got)
	}
}
