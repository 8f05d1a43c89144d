package domain

import (
	"time"
)

// Todo is a single task owned by a user.
// CompletedAt is non-nil if and only if Completed is true.
type Todo struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"-"`
	Task        string     `json:"task"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TodoStats summarises a user's todo list.
type TodoStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// StatsOf counts todos by completion state.
func StatsOf(todos []*Todo) TodoStats {
	stats := TodoStats{Total: len(todos)}
	for _, t := range todos {
		if t.Completed {
			stats.Completed++
		}
	}
	stats.Pending = stats.Total - stats.Completed
	return stats
}
