// Package conversation stores and replays the per-user chat log.
package conversation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/todobot/internal/domain"
	"github.com/ashureev/todobot/internal/store"
)

// DefaultLimit is the number of entries returned when no limit is given.
const DefaultLimit = 20

// MaxLimit caps a single history read.
const MaxLimit = 500

// Service appends and reads conversation entries.
type Service struct {
	repo store.Repository
	now  func() time.Time

	mu   sync.Mutex
	last int64 // last issued timestamp, unix nanos
}

// NewService creates a conversation service.
func NewService(repo store.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Append writes an entry. Timestamps issued by one Service strictly increase,
// so a USER entry always sorts before the ASSISTANT reply that follows it.
func (s *Service) Append(ctx context.Context, userID int64, role domain.Role, content string) (*domain.ConversationEntry, error) {
	entry := &domain.ConversationEntry{
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: s.nextTimestamp(),
	}
	if err := s.repo.AppendConversation(ctx, entry); err != nil {
		return nil, fmt.Errorf("append %s entry: %w", role, err)
	}
	return entry, nil
}

// History returns up to limit of the most recent entries, oldest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*domain.ConversationEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	entries, err := s.repo.RecentConversation(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	slices.Reverse(entries)
	return entries, nil
}

func (s *Service) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixNano()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return time.Unix(0, ts).UTC()
}
