package store

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/saveleva/disasterai/internal/task"
)

// Resilient fronts a durable TaskStore with a volatile fallback. The first
// durable failure permanently switches every subsequent operation, reads
// included, to the in-memory store; the durable backend is never probed again
// for the lifetime of the process. Availability over flapping.
//
// Storage-engine errors never escape this type: callers only ever see
// success or not-found.
type Resilient struct {
	durable  TaskStore
	fallback *MemoryStore
	switched atomic.Bool
	logger   *slog.Logger
}

// NewResilient wraps the durable store. A nil durable store starts the
// process directly on the in-memory fallback, for when the backend is
// unreachable at boot.
func NewResilient(durable TaskStore, logger *slog.Logger) *Resilient {
	s := &Resilient{
		durable:  durable,
		fallback: NewMemoryStore(),
		logger:   logger.With("component", "task_store"),
	}
	if durable == nil {
		s.switched.Store(true)
	}
	return s
}

// UsingFallback reports whether the permanent switch has happened.
func (s *Resilient) UsingFallback() bool {
	return s.switched.Load()
}

// trip records a durable failure and flips the sticky switch.
func (s *Resilient) trip(op string, err error) {
	if s.switched.CompareAndSwap(false, true) {
		s.logger.Error("durable store failed, switching to in-memory fallback",
			"op", op, "error", err)
		return
	}
	s.logger.Warn("durable store error after fallback switch", "op", op, "error", err)
}

// Create stores a new pending task built from the serialized request and
// returns it. Creation cannot fail; at worst the record lives only in memory.
func (s *Resilient) Create(ctx context.Context, requestData string) *task.Task {
	t := task.New(requestData)

	if !s.switched.Load() {
		err := s.durable.Create(ctx, t)
		if err == nil {
			return t
		}
		s.trip("create", err)
	}

	_ = s.fallback.Create(ctx, t)
	return t
}

// Get returns the task or nil when absent.
func (s *Resilient) Get(ctx context.Context, id string) *task.Task {
	if !s.switched.Load() {
		t, err := s.durable.Get(ctx, id)
		if err == nil {
			return t
		}
		s.trip("get", err)
	}

	t, _ := s.fallback.Get(ctx, id)
	return t
}

// Update applies a partial mutation; unspecified fields are untouched and
// updated_at advances with every accepted write. Returns false when the task
// is unknown or the transition was refused, so a caller racing against
// another terminal write can tell whether its own write landed.
func (s *Resilient) Update(ctx context.Context, id string, u task.Update) bool {
	if !s.switched.Load() {
		found, err := s.durable.Update(ctx, id, u)
		if err == nil {
			return found
		}
		s.trip("update", err)
	}

	found, _ := s.fallback.Update(ctx, id, u)
	return found
}

func (s *Resilient) Delete(ctx context.Context, id string) bool {
	if !s.switched.Load() {
		found, err := s.durable.Delete(ctx, id)
		if err == nil {
			return found
		}
		s.trip("delete", err)
	}

	found, _ := s.fallback.Delete(ctx, id)
	return found
}

// List returns up to limit tasks, most recent first.
func (s *Resilient) List(ctx context.Context, limit int) []*task.Task {
	if !s.switched.Load() {
		tasks, err := s.durable.List(ctx, limit)
		if err == nil {
			return tasks
		}
		s.trip("list", err)
	}

	tasks, _ := s.fallback.List(ctx, limit)
	return tasks
}

// Cleanup removes tasks older than maxAge and reports how many went away.
func (s *Resilient) Cleanup(ctx context.Context, maxAge time.Duration) int {
	if !s.switched.Load() {
		removed, err := s.durable.Cleanup(ctx, maxAge)
		if err == nil {
			return removed
		}
		s.trip("cleanup", err)
	}

	removed, _ := s.fallback.Cleanup(ctx, maxAge)
	return removed
}
