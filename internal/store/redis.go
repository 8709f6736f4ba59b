package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saveleva/disasterai/internal/task"
)

const taskPrefix = "disasterai:task:"

// RedisStore keeps one JSON record per task. The key TTL is a retention
// backstop; explicit Cleanup handles the age-based sweep.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Create(ctx context.Context, t *task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	if err := s.client.Set(ctx, taskPrefix+t.TaskID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*task.Task, error) {
	data, err := s.client.Get(ctx, taskPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &t, nil
}

// Update performs a read-modify-write on a single record. The process is the
// sole writer of task state, so no optimistic locking is needed here. Returns
// false when the task is unknown or the transition was refused; callers use
// that to tell whether their write actually landed.
func (s *RedisStore) Update(ctx context.Context, id string, u task.Update) (bool, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if t == nil {
		return false, nil
	}

	if !t.Apply(u) {
		// Refused transition out of a terminal state; the record stands.
		return false, nil
	}

	data, err := json.Marshal(t)
	if err != nil {
		return false, fmt.Errorf("marshal task: %w", err)
	}
	if err := s.client.Set(ctx, taskPrefix+id, data, s.ttl).Err(); err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	return true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, taskPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) List(ctx context.Context, limit int) ([]*task.Task, error) {
	keys, err := s.client.Keys(ctx, taskPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	if len(keys) == 0 {
		return []*task.Task{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}

	tasks := make([]*task.Task, 0, len(keys))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var t task.Task
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		tasks = append(tasks, &t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (s *RedisStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	tasks, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for _, t := range tasks {
		if t.CreatedAt.Before(cutoff) {
			if err := s.client.Del(ctx, taskPrefix+t.TaskID).Err(); err != nil {
				return removed, fmt.Errorf("cleanup task: %w", err)
			}
			removed++
		}
	}
	return removed, nil
}
