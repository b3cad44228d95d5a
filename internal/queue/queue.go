package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Queue accepts JSON jobs for the generation and mailing workers
type Queue interface {
	Push(ctx context.Context, name string, payload any) error
}

// GenerateJob asks the generation worker for a new or refined cover letter
type GenerateJob struct {
	Recipient      string `json:"recipient"`
	ConversationID string `json:"conversation_id,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
}

// EmailJob asks the mailer to send a cover letter
type EmailJob struct {
	Recipient   string `json:"recipient"`
	CoverLetter string `json:"cover_letter"`
}

// Redis pushes jobs onto Redis lists, consumed with BLPOP by the workers
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to the Redis server at addr
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &Redis{rdb: rdb}, nil
}

// NewRedisFromClient wraps an existing client
func NewRedisFromClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Push appends payload, JSON encoded, to the named list
func (q *Redis) Push(ctx context.Context, name string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.rdb.RPush(ctx, name, body).Err(); err != nil {
		return fmt.Errorf("push %s: %w", name, err)
	}
	return nil
}

// Close closes the Redis connection
func (q *Redis) Close() error {
	return q.rdb.Close()
}
