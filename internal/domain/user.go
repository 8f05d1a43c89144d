// Package domain contains core domain types for the TodoBot application.
package domain

import (
	"time"
)

// User represents a registered chat participant who owns todos and a conversation log.
type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}
