package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned when a queue has nothing to pop.
var ErrEmpty = errors.New("queue empty")

// Queue is a Redis list used as a FIFO between the API and the workers.
type Queue struct {
	rdb  *redis.Client
	name string
}

// NewQueue returns the queue stored under name.
func NewQueue(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

// Name returns the Redis key of the queue.
func (q *Queue) Name() string {
	return q.name
}

// Pop blocks for up to timeout waiting for an item.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("pop %s: %w", q.name, err)
	}
	if len(res) < 2 {
		return "", ErrEmpty
	}
	return res[1], nil
}

// TryPop returns the next item without blocking.
func (q *Queue) TryPop(ctx context.Context) (string, error) {
	item, err := q.rdb.LPop(ctx, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("pop %s: %w", q.name, err)
	}
	return item, nil
}

// Push appends items to the tail of the queue.
func (q *Queue) Push(ctx context.Context, items ...string) error {
	if len(items) == 0 {
		return nil
	}
	vals := make([]any, len(items))
	for i, it := range items {
		vals[i] = it
	}
	return q.rdb.RPush(ctx, q.name, vals...).Err()
}
