// Package processor drives submitted tasks through their lifecycle:
// pending -> processing -> completed|failed. Each submission runs as its own
// goroutine with a cancel handle tracked until the task reaches a terminal
// state.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/saveleva/disasterai/internal/analysis"
	"github.com/saveleva/disasterai/internal/store"
	"github.com/saveleva/disasterai/internal/task"
)

// CancelMessage is the sentinel error recorded on a cancelled task.
const CancelMessage = "task cancelled by user"

// ErrAlreadyRunning is returned when the same task id is submitted while a
// previous execution is still in flight.
var ErrAlreadyRunning = errors.New("task is already running")

// CompletionHandler is invoked after a task completes successfully, outside
// the store write path. Downstream event detection hangs off this hook.
type CompletionHandler func(taskID string, result *analysis.Result)

type Processor struct {
	store    *store.Resilient
	analyzer analysis.Analyzer
	logger   *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	running map[string]context.CancelFunc

	onCompleted CompletionHandler
}

func New(st *store.Resilient, analyzer analysis.Analyzer, logger *slog.Logger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		store:      st,
		analyzer:   analyzer,
		logger:     logger.With("component", "task_processor"),
		ctx:        ctx,
		cancelFunc: cancel,
		running:    make(map[string]context.CancelFunc),
	}
}

// SetCompletionHandler registers the hook called on successful completion.
// It must be set before the first Submit.
func (p *Processor) SetCompletionHandler(h CompletionHandler) {
	p.onCompleted = h
}

// Submit schedules the task for background execution and returns without
// waiting. Submitting an id that is still running is rejected.
func (p *Processor) Submit(taskID string) error {
	p.mu.Lock()
	if _, ok := p.running[taskID]; ok {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(p.ctx)
	p.running[taskID] = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(runCtx, taskID)
	return nil
}

// Cancel requests cooperative cancellation of a running task and records the
// failure immediately. It returns true only when a running execution was
// found; a task that already reached a terminal state is too late to cancel.
func (p *Processor) Cancel(ctx context.Context, taskID string) bool {
	p.mu.Lock()
	cancel, ok := p.running[taskID]
	if ok {
		delete(p.running, taskID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}

	cancel()

	failed := task.StatusFailed
	msg := CancelMessage
	p.store.Update(ctx, taskID, task.Update{Status: &failed, ErrorMessage: &msg})

	p.logger.Info("task cancelled", "task_id", taskID)
	return true
}

// Running reports whether an execution for the task id is still tracked.
func (p *Processor) Running(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.running[taskID]
	return ok
}

// Stop cancels all in-flight work and waits for the goroutines to drain.
func (p *Processor) Stop() {
	p.cancelFunc()
	p.wg.Wait()
	p.logger.Info("task processor stopped")
}

func (p *Processor) run(ctx context.Context, taskID string) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		delete(p.running, taskID)
		p.mu.Unlock()
	}()

	// Store writes survive cancellation of the execution itself; a cancelled
	// context must not poison the terminal write or trip the store fallback.
	storeCtx := context.WithoutCancel(ctx)

	t := p.store.Get(storeCtx, taskID)
	if t == nil || t.RequestData == "" {
		p.logger.Warn("submitted task not found, skipping", "task_id", taskID)
		return
	}

	var req analysis.Request
	if err := json.Unmarshal([]byte(t.RequestData), &req); err != nil {
		p.fail(storeCtx, taskID, "invalid request payload: "+err.Error())
		return
	}

	processing := task.StatusProcessing
	progress := 10
	p.store.Update(storeCtx, taskID, task.Update{Status: &processing, Progress: &progress})

	// Advisory checkpoint before the long external call.
	progress = 30
	p.store.Update(storeCtx, taskID, task.Update{Progress: &progress})

	result, err := p.analyzer.Analyze(ctx, req, taskID)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			// Cancel already recorded the failure; don't overwrite it.
			p.logger.Info("task execution aborted", "task_id", taskID)
			return
		}
		p.logger.Error("task execution failed", "task_id", taskID, "error", err)
		p.fail(storeCtx, taskID, err.Error())
		return
	}

	blob, err := result.Marshal()
	if err != nil {
		p.fail(storeCtx, taskID, "encode result: "+err.Error())
		return
	}

	completed := task.StatusCompleted
	progress = 100
	applied := p.store.Update(storeCtx, taskID, task.Update{
		Status:     &completed,
		Progress:   &progress,
		ResultData: &blob,
	})
	if !applied {
		// A cancellation won the race to the terminal state; the result is
		// discarded and downstream consumers never hear about it.
		p.logger.Info("task result discarded, record already terminal", "task_id", taskID)
		return
	}

	p.logger.Info("task completed", "task_id", taskID)

	if p.onCompleted != nil {
		p.onCompleted(taskID, result)
	}
}

func (p *Processor) fail(ctx context.Context, taskID, msg string) {
	failed := task.StatusFailed
	p.store.Update(ctx, taskID, task.Update{Status: &failed, ErrorMessage: &msg})
}
