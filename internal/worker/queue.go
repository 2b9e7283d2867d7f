package worker

import (
	"context"
	"time"
)

// Queue is the persist queue a worker drains. cache.Queue is the Redis implementation.
type Queue interface {
	Name() string
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	TryPop(ctx context.Context) (string, error)
	Push(ctx context.Context, items ...string) error
}

const (
	pollTimeout = time.Second
	retryDelay  = 5 * time.Second
)

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
