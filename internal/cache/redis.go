// Package cache provides a Redis read-through cache for todo listings.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ashureev/todobot/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "todobot:todos:"

// TodoCache stores each user's todo list as one JSON value.
type TodoCache struct {
	client *redis.Client
	ttl    time.Duration
}

// cachedTodo carries the owner ID, which domain.Todo omits from JSON.
type cachedTodo struct {
	domain.Todo
	UserID int64 `json:"user_id"`
}

// NewTodoCache connects to the Redis URL and verifies the connection.
func NewTodoCache(ctx context.Context, url string, ttl time.Duration) (*TodoCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &TodoCache{client: client, ttl: ttl}, nil
}

func key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

// Get returns the cached list. The bool is false on a miss.
func (c *TodoCache) Get(ctx context.Context, userID int64) ([]*domain.Todo, bool, error) {
	raw, err := c.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var cached []cachedTodo
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false, fmt.Errorf("decode cached todos: %w", err)
	}
	todos := make([]*domain.Todo, len(cached))
	for i := range cached {
		t := cached[i].Todo
		t.UserID = cached[i].UserID
		todos[i] = &t
	}
	return todos, true, nil
}

// Set stores the list with the configured TTL.
func (c *TodoCache) Set(ctx context.Context, userID int64, todos []*domain.Todo) error {
	cached := make([]cachedTodo, len(todos))
	for i, t := range todos {
		cached[i] = cachedTodo{Todo: *t, UserID: t.UserID}
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("encode todos: %w", err)
	}
	if err := c.client.Set(ctx, key(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate drops the user's cached list.
func (c *TodoCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the client.
func (c *TodoCache) Close() error {
	return c.client.Close()
}
