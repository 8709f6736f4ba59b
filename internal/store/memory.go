package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/saveleva/disasterai/internal/task"
)

// MemoryStore is the volatile backend used once Redis has failed. Operations
// never error; state is lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*task.Task)}
}

func (s *MemoryStore) Create(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.TaskID] = t.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

// Update holds the lock across the read-modify-write so concurrent writers
// cannot interleave on the same record.
func (s *MemoryStore) Update(_ context.Context, id string, u task.Update) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false, nil
	}
	return t.Apply(u), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t.Clone())
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (s *MemoryStore) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for id, t := range s.tasks {
		if t.CreatedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed, nil
}
