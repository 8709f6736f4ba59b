package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is the durable record of one submitted analysis job. RequestData and
// ResultData are opaque JSON blobs; the store never interprets them.
type Task struct {
	TaskID       string    `json:"task_id"`
	Status       Status    `json:"status"`
	Progress     int       `json:"progress"`
	RequestData  string    `json:"request_data"`
	ResultData   string    `json:"result_data,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// New builds a pending task wrapping the serialized request.
func New(requestData string) *Task {
	now := time.Now().UTC()
	return &Task{
		TaskID:      fmt.Sprintf("task_%s", uuid.New().String()),
		Status:      StatusPending,
		Progress:    0,
		RequestData: requestData,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Update carries a partial mutation. Nil fields are left untouched.
type Update struct {
	Status       *Status
	Progress     *int
	ResultData   *string
	ErrorMessage *string
}

// Apply merges the update into t and advances UpdatedAt. A status change out
// of a terminal state is refused so the first terminal write wins; the
// update's other fields are dropped with it in that case.
func (t *Task) Apply(u Update) bool {
	if u.Status != nil && t.Status.Terminal() && *u.Status != t.Status {
		return false
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Progress != nil {
		t.Progress = *u.Progress
	}
	if u.ResultData != nil {
		t.ResultData = *u.ResultData
	}
	if u.ErrorMessage != nil {
		t.ErrorMessage = *u.ErrorMessage
	}
	t.UpdatedAt = time.Now().UTC()
	return true
}

// Info is the API view of a task. The result blob is surfaced as raw JSON so
// clients get the full analysis without the store decoding it.
type Info struct {
	TaskID    string          `json:"task_id"`
	Status    Status          `json:"status"`
	Progress  int             `json:"progress"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Info converts the record into its API view.
func (t *Task) Info() Info {
	info := Info{
		TaskID:    t.TaskID,
		Status:    t.Status,
		Progress:  t.Progress,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		Error:     t.ErrorMessage,
	}
	if t.ResultData != "" && json.Valid([]byte(t.ResultData)) {
		info.Result = json.RawMessage(t.ResultData)
	}
	return info
}

// Clone returns a copy so callers can't mutate stored state in place.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
