package realtime

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_AlertMessageTruncated(t *testing.T) {
	hub := NewHub(slog.Default())
	sink := &recordingSink{}
	hub.Connect("c1", sink, TopicAlerts)

	notifier := NewNotifier(hub, slog.Default())
	notifier.NotifyNewAlert(AlertPayload{
		AlertID: "alert_1",
		Level:   "red",
		Message: strings.Repeat("x", 500),
	})

	require.Len(t, sink.messages, 1)
	payload, ok := sink.messages[0].Data.(AlertPayload)
	require.True(t, ok)
	assert.Len(t, payload.Message, alertMessageLimit+len("..."))
	assert.Equal(t, strings.Repeat("x", alertMessageLimit)+"...", payload.Message)
}

func TestNotifier_ShortAlertMessageUntouched(t *testing.T) {
	hub := NewHub(slog.Default())
	sink := &recordingSink{}
	hub.Connect("c1", sink, TopicAlerts)

	NewNotifier(hub, slog.Default()).NotifyNewAlert(AlertPayload{
		AlertID: "alert_2",
		Message: "evacuate now",
	})

	require.Len(t, sink.messages, 1)
	payload := sink.messages[0].Data.(AlertPayload)
	assert.Equal(t, "evacuate now", payload.Message)
}

func TestNotifier_DisasterActions(t *testing.T) {
	hub := NewHub(slog.Default())
	sink := &recordingSink{}
	hub.Connect("c1", sink, TopicDisasters)

	notifier := NewNotifier(hub, slog.Default())
	notifier.NotifyNewDisaster("event")
	notifier.NotifyDisasterUpdate("event")

	require.Len(t, sink.messages, 2)
	assert.Equal(t, "new", sink.messages[0].Action)
	assert.Equal(t, "update", sink.messages[1].Action)
	assert.NotEmpty(t, sink.messages[0].Timestamp)
}

func TestStatsPublisher_SurvivesCollectionErrors(t *testing.T) {
	hub := NewHub(slog.Default())
	sink := &recordingSink{}
	hub.Connect("c1", sink, TopicSystem)

	var calls atomic.Int32
	source := func(context.Context) (any, error) {
		if calls.Add(1)%2 == 1 {
			return nil, errors.New("collection failed")
		}
		return map[string]int{"active": 1}, nil
	}

	publisher := NewStatsPublisher(NewNotifier(hub, slog.Default()), source, 10*time.Millisecond, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		publisher.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	// Odd cycles failed, even cycles published anyway.
	assert.GreaterOrEqual(t, calls.Load(), int32(4))
	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.NotEmpty(t, sink.messages)
	assert.Equal(t, "stats", sink.messages[0].Type)
}
