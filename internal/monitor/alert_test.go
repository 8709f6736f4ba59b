package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func testEvent(level AlertLevel) *Event {
	return &Event{
		EventID:      "evt_test",
		DisasterType: TypeWildfire,
		Location:     "Sonoma County",
		Coordinates:  Coordinates{Lon: -122.5, Lat: 38.5},
		Timestamp:    time.Now().UTC(),
		AlertLevel:   level,
		Description:  "Fast-moving wildfire near residential areas",
		Status:       StatusActive,
	}
}

type failingChannel struct{ name string }

func (c *failingChannel) Name() string { return c.name }
func (c *failingChannel) Deliver(context.Context, *Alert) error {
	return errors.New("provider unreachable")
}

func TestAlertService_ChannelsByLevel(t *testing.T) {
	assert.Equal(t, []string{"webhook", "email", "sms", "mobile_push"}, channelsForLevel(LevelRed))
	assert.Equal(t, []string{"webhook", "email", "mobile_push"}, channelsForLevel(LevelOrange))
	assert.Equal(t, []string{"webhook", "email"}, channelsForLevel(LevelYellow))
	assert.Equal(t, []string{"webhook"}, channelsForLevel(LevelGreen))
}

func TestAlertService_PriorityByLevel(t *testing.T) {
	assert.Equal(t, PriorityCritical, PriorityForLevel(LevelRed))
	assert.Equal(t, PriorityCritical, PriorityForLevel(LevelBlack))
	assert.Equal(t, PriorityHigh, PriorityForLevel(LevelOrange))
	assert.Equal(t, PriorityMedium, PriorityForLevel(LevelYellow))
	assert.Equal(t, PriorityLow, PriorityForLevel(LevelGreen))
}

func TestAlertService_CreateAlert(t *testing.T) {
	svc := NewAlertService(nil, slog.Default())
	event := testEvent(LevelRed)

	alert := svc.CreateAlert(event)
	assert.Equal(t, "alert_evt_test", alert.AlertID)
	assert.Equal(t, event.EventID, alert.EventID)
	assert.Equal(t, PriorityCritical, alert.Priority)
	assert.Contains(t, alert.Message, "Wildfire")
	assert.Contains(t, alert.Message, "Sonoma County")
	assert.Contains(t, alert.Message, "RED")

	active := svc.ActiveAlerts(0)
	require.Len(t, active, 1)
}

func TestAlertService_WebhookDelivery(t *testing.T) {
	var received []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = append(received, string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channels := []Channel{
		NewWebhookChannel([]string{server.URL}, slog.Default()),
		NewEmailChannel(slog.Default()),
		NewSMSChannel(slog.Default()),
		NewPushChannel(slog.Default()),
	}
	svc := NewAlertService(channels, slog.Default())

	alert := svc.ProcessEvent(context.Background(), testEvent(LevelRed))
	require.NotNil(t, alert)

	require.Len(t, received, 1)
	assert.Equal(t, alert.AlertID, gjson.Get(received[0], "alert_id").String())
	assert.Equal(t, string(LevelRed), gjson.Get(received[0], "alert_level").String())

	// Delivered alerts leave the active set.
	assert.Empty(t, svc.ActiveAlerts(0))
	sent := svc.SentAlerts(0)
	require.Len(t, sent, 1)
	assert.Equal(t, alert.AlertID, sent[0].AlertID)
}

func TestAlertService_FailingChannelDoesNotStopOthers(t *testing.T) {
	var delivered bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		delivered = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channels := []Channel{
		&failingChannel{name: "email"},
		NewWebhookChannel([]string{server.URL}, slog.Default()),
	}
	svc := NewAlertService(channels, slog.Default())

	alert := svc.CreateAlert(testEvent(LevelYellow))
	ok := svc.Send(context.Background(), alert)

	assert.False(t, ok)
	assert.True(t, delivered, "webhook should still fire when email fails")
	assert.Len(t, svc.SentAlerts(0), 1)
}

func TestAlertService_Acknowledge(t *testing.T) {
	svc := NewAlertService(nil, slog.Default())
	alert := svc.CreateAlert(testEvent(LevelGreen))

	assert.True(t, svc.Acknowledge(alert.AlertID))
	assert.False(t, svc.Acknowledge("alert_unknown"))

	// Still acknowledgeable after delivery.
	svc.Send(context.Background(), alert)
	assert.True(t, svc.Acknowledge(alert.AlertID))

	sent := svc.SentAlerts(1)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Acknowledged)
	assert.NotNil(t, sent[0].AcknowledgedAt)
}

func TestAlertService_HistoryBounded(t *testing.T) {
	svc := NewAlertService(nil, slog.Default())
	for i := 0; i < maxAlertHistory+10; i++ {
		event := testEvent(LevelGreen)
		event.EventID = fmt.Sprintf("evt_%d", i)
		alert := svc.CreateAlert(event)
		svc.Send(context.Background(), alert)
	}
	assert.Len(t, svc.SentAlerts(0), maxAlertHistory)
}