package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveleva/disasterai/internal/task"
)

func setupTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	s, err := NewRedisStore(mr.Addr(), "", 0, 24*time.Hour)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	return s, mr
}

func TestRedisStore_CreateAndGet(t *testing.T) {
	s, mr := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	created := task.New(`{"mime_type":"application/pdf"}`)
	require.NoError(t, s.Create(ctx, created))

	got, err := s.Get(ctx, created.TaskID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, created.TaskID, got.TaskID)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, `{"mime_type":"application/pdf"}`, got.RequestData)
}

func TestRedisStore_GetMissing(t *testing.T) {
	s, mr := setupTestStore(t)
	defer mr.Close()

	got, err := s.Get(context.Background(), "task_nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_PartialUpdate(t *testing.T) {
	s, mr := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	created := task.New(`{}`)
	require.NoError(t, s.Create(ctx, created))

	status := task.StatusProcessing
	progress := 10
	found, err := s.Update(ctx, created.TaskID, task.Update{Status: &status, Progress: &progress})
	require.NoError(t, err)
	require.True(t, found)

	got, err := s.Get(ctx, created.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusProcessing, got.Status)
	assert.Equal(t, 10, got.Progress)
	// Unspecified fields stay put.
	assert.Equal(t, `{}`, got.RequestData)
	assert.Empty(t, got.ResultData)
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt) || got.UpdatedAt.Equal(created.UpdatedAt))
}

func TestRedisStore_UpdateMissing(t *testing.T) {
	s, mr := setupTestStore(t)
	defer mr.Close()

	status := task.StatusFailed
	found, err := s.Update(context.Background(), "task_nope", task.Update{Status: &status})
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_TerminalStateSticks(t *testing.T) {
	s, mr := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	created := task.New(`{}`)
	require.NoError(t, s.Create(ctx, created))

	completed := task.StatusCompleted
	progress := 100
	result := `{"summary":"ok"}`
	_, err := s.Update(ctx, created.TaskID, task.Update{Status: &completed, Progress: &progress, ResultData: &result})
	require.NoError(t, err)

	// A late cancellation write must not flip a terminal status, and the
	// caller is told its write did not land.
	failed := task.StatusFailed
	errMsg := "task cancelled by user"
	applied, err := s.Update(ctx, created.TaskID, task.Update{Status: &failed, ErrorMessage: &errMsg})
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.Get(ctx, created.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, `{"summary":"ok"}`, got.ResultData)
	assert.Empty(t, got.ErrorMessage)
}

func TestRedisStore_ListMostRecentFirst(t *testing.T) {
	s, mr := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	first := task.New(`{"n":1}`)
	first.CreatedAt = time.Now().UTC().Add(-2 * time.Minute)
	second := task.New(`{"n":2}`)
	second.CreatedAt = time.Now().UTC().Add(-1 * time.Minute)
	third := task.New(`{"n":3}`)

	for _, tk := range []*task.Task{first, second, third} {
		require.NoError(t, s.Create(ctx, tk))
	}

	tasks, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, third.TaskID, tasks[0].TaskID)
	assert.Equal(t, second.TaskID, tasks[1].TaskID)
}

func TestRedisStore_Cleanup(t *testing.T) {
	s, mr := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	old := task.New(`{}`)
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	fresh := task.New(`{}`)

	require.NoError(t, s.Create(ctx, old))
	require.NoError(t, s.Create(ctx, fresh))

	removed, err := s.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := s.Get(ctx, old.TaskID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Get(ctx, fresh.TaskID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRedisStore_Delete(t *testing.T) {
	s, mr := setupTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	created := task.New(`{}`)
	require.NoError(t, s.Create(ctx, created))

	found, err := s.Delete(ctx, created.TaskID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Delete(ctx, created.TaskID)
	require.NoError(t, err)
	assert.False(t, found)
}
