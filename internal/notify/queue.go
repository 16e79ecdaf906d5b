package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

// Queue pushes notifications onto a Redis list for the notification worker.
type Queue struct {
	rdb *redis.Client
	key string
}

// NewQueue returns a queue notifier writing to key.
func NewQueue(rdb *redis.Client, key string) *Queue {
	return &Queue{rdb: rdb, key: key}
}

func (q *Queue) Notify(ctx context.Context, n domain.Notification) error {
	msg, err := NewMessage(n)
	if err != nil {
		return err
	}
	msg.ID = uuid.NewString()
	return q.Push(ctx, msg)
}

// Push appends msg to the tail of the queue.
func (q *Queue) Push(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Key returns the Redis list key.
func (q *Queue) Key() string {
	return q.key
}
