package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// AlertPriority orders alerts for delivery and display.
type AlertPriority int

const (
	PriorityLow AlertPriority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

const maxAlertHistory = 1000

// Alert is a notification issued for a disaster event.
type Alert struct {
	AlertID        string        `json:"alert_id"`
	EventID        string        `json:"event_id"`
	DisasterType   DisasterType  `json:"disaster_type"`
	Location       string        `json:"location"`
	Coordinates    Coordinates   `json:"coordinates"`
	AlertLevel     AlertLevel    `json:"alert_level"`
	Priority       AlertPriority `json:"priority"`
	Message        string        `json:"message"`
	Timestamp      time.Time     `json:"timestamp"`
	Channels       []string      `json:"channels"`
	Acknowledged   bool          `json:"acknowledged"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
}

// AlertService issues alerts for disaster events and delivers them over
// severity-appropriate channels.
type AlertService struct {
	mu       sync.Mutex
	active   map[string]*Alert
	sent     []*Alert
	channels map[string]Channel
	logger   *slog.Logger
}

func NewAlertService(channels []Channel, logger *slog.Logger) *AlertService {
	byName := make(map[string]Channel, len(channels))
	for _, channel := range channels {
		byName[channel.Name()] = channel
	}
	return &AlertService{
		active:   make(map[string]*Alert),
		channels: byName,
		logger:   logger,
	}
}

// PriorityForLevel maps alert levels to delivery priorities.
func PriorityForLevel(level AlertLevel) AlertPriority {
	switch level {
	case LevelBlack, LevelRed:
		return PriorityCritical
	case LevelOrange:
		return PriorityHigh
	case LevelYellow:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// channelsForLevel picks delivery media by severity. Webhook always
// fires so downstream systems stay in sync.
func channelsForLevel(level AlertLevel) []string {
	switch level {
	case LevelBlack, LevelRed:
		return []string{"webhook", "email", "sms", "mobile_push"}
	case LevelOrange:
		return []string{"webhook", "email", "mobile_push"}
	case LevelYellow:
		return []string{"webhook", "email"}
	default:
		return []string{"webhook"}
	}
}

// CreateAlert builds an alert for the event and registers it as active.
func (s *AlertService) CreateAlert(event *Event) *Alert {
	alert := &Alert{
		AlertID:      "alert_" + event.EventID,
		EventID:      event.EventID,
		DisasterType: event.DisasterType,
		Location:     event.Location,
		Coordinates:  event.Coordinates,
		AlertLevel:   event.AlertLevel,
		Priority:     PriorityForLevel(event.AlertLevel),
		Message:      formatAlertMessage(event),
		Timestamp:    time.Now().UTC(),
		Channels:     channelsForLevel(event.AlertLevel),
	}

	s.mu.Lock()
	s.active[alert.AlertID] = alert
	s.mu.Unlock()

	s.logger.Info("alert created",
		"alert_id", alert.AlertID,
		"disaster_type", alert.DisasterType,
		"location", alert.Location,
		"priority", alert.Priority)
	return alert
}

func formatAlertMessage(event *Event) string {
	var b strings.Builder
	b.WriteString("DISASTER ALERT\n")
	fmt.Fprintf(&b, "Type: %s\n", titleCase(string(event.DisasterType)))
	fmt.Fprintf(&b, "Location: %s\n", event.Location)
	fmt.Fprintf(&b, "Time: %s\n", event.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Severity: %s\n", strings.ToUpper(string(event.AlertLevel)))
	if event.Magnitude != 0 {
		fmt.Fprintf(&b, "Magnitude: %g\n", event.Magnitude)
	}
	if event.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", event.Description)
	}
	b.WriteString("\nStay safe and follow local emergency instructions.")
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Send delivers the alert over each of its channels. A failing channel
// is logged and does not stop the others. The alert moves from active
// to sent history regardless of outcome; returns false when any
// channel failed.
func (s *AlertService) Send(ctx context.Context, alert *Alert) bool {
	success := true
	for _, name := range alert.Channels {
		channel, ok := s.channels[name]
		if !ok {
			s.logger.Warn("no delivery channel registered", "channel", name, "alert_id", alert.AlertID)
			continue
		}
		if err := channel.Deliver(ctx, alert); err != nil {
			s.logger.Error("failed to send alert",
				"alert_id", alert.AlertID,
				"channel", name,
				"error", err)
			success = false
		}
	}

	s.mu.Lock()
	delete(s.active, alert.AlertID)
	s.sent = append(s.sent, alert)
	if len(s.sent) > maxAlertHistory {
		s.sent = s.sent[len(s.sent)-maxAlertHistory:]
	}
	s.mu.Unlock()

	return success
}

// ProcessEvent creates and sends an alert for a freshly detected event.
func (s *AlertService) ProcessEvent(ctx context.Context, event *Event) *Alert {
	alert := s.CreateAlert(event)
	s.Send(ctx, alert)
	return alert
}

// Acknowledge marks an alert as acknowledged, whether still active or
// already sent. Returns false for unknown IDs.
func (s *AlertService) Acknowledge(alertID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if alert, ok := s.active[alertID]; ok {
		alert.Acknowledged = true
		alert.AcknowledgedAt = &now
		return true
	}
	for _, alert := range s.sent {
		if alert.AlertID == alertID {
			alert.Acknowledged = true
			alert.AcknowledgedAt = &now
			return true
		}
	}
	return false
}

// ActiveAlerts returns active alerts, highest priority first.
func (s *AlertService) ActiveAlerts(limit int) []*Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts := make([]*Alert, 0, len(s.active))
	for _, alert := range s.active {
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Priority > alerts[j].Priority
	})
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts
}

// SentAlerts returns delivered alerts, most recent first.
func (s *AlertService) SentAlerts(limit int) []*Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if limit > 0 && len(s.sent) > limit {
		start = len(s.sent) - limit
	}
	recent := s.sent[start:]

	alerts := make([]*Alert, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		alerts = append(alerts, recent[i])
	}
	return alerts
}
