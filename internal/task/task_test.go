package task

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	created := New(`{"mime_type":"application/pdf"}`)

	assert.True(t, strings.HasPrefix(created.TaskID, "task_"))
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, 0, created.Progress)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
}

func TestApply_PartialUpdate(t *testing.T) {
	created := New("{}")

	status := StatusProcessing
	progress := 30
	require.True(t, created.Apply(Update{Status: &status, Progress: &progress}))

	assert.Equal(t, StatusProcessing, created.Status)
	assert.Equal(t, 30, created.Progress)
	assert.Empty(t, created.ResultData, "unspecified fields stay untouched")
	assert.False(t, created.UpdatedAt.Before(created.CreatedAt))
}

func TestApply_TerminalStateWins(t *testing.T) {
	created := New("{}")

	completed := StatusCompleted
	progress := 100
	require.True(t, created.Apply(Update{Status: &completed, Progress: &progress}))

	failed := StatusFailed
	msg := "too late"
	assert.False(t, created.Apply(Update{Status: &failed, ErrorMessage: &msg}))
	assert.Equal(t, StatusCompleted, created.Status)
	assert.Empty(t, created.ErrorMessage, "refused update drops all its fields")

	// Re-asserting the same terminal status is allowed.
	assert.True(t, created.Apply(Update{Status: &completed}))
}

func TestInfo(t *testing.T) {
	created := New("{}")
	created.ResultData = `{"riskScore":42}`

	info := created.Info()
	assert.Equal(t, created.TaskID, info.TaskID)
	assert.JSONEq(t, `{"riskScore":42}`, string(info.Result))

	created.ResultData = "not json"
	assert.Empty(t, created.Info().Result)
}

func TestClone(t *testing.T) {
	created := New("{}")
	copied := created.Clone()
	copied.Progress = 99

	assert.Equal(t, 0, created.Progress)
}
