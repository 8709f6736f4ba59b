// Package store persists task records. A Redis-backed store is the durable
// backend; Resilient wraps it with a permanent fail-over to an in-process
// store so task tracking survives a broken Redis.
package store

import (
	"context"
	"time"

	"github.com/saveleva/disasterai/internal/task"
)

// TaskStore is the persistence contract shared by the durable and volatile
// backends. Get returns (nil, nil) when the task does not exist. Update
// reports whether the mutation was applied: false means the task is unknown
// or the transition was refused by the record's terminal-state guard.
type TaskStore interface {
	Create(ctx context.Context, t *task.Task) error
	Get(ctx context.Context, id string) (*task.Task, error)
	Update(ctx context.Context, id string, u task.Update) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, limit int) ([]*task.Task, error)
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
}
