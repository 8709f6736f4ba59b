package realtime

import "log/slog"

const alertMessageLimit = 200

// Notifier translates domain events into topic publications.
type Notifier struct {
	hub    *Hub
	logger *slog.Logger
}

func NewNotifier(hub *Hub, logger *slog.Logger) *Notifier {
	return &Notifier{hub: hub, logger: logger}
}

// NotifyNewDisaster publishes a newly detected disaster event on the
// disasters topic.
func (n *Notifier) NotifyNewDisaster(event any) {
	sent := n.hub.Publish(TopicDisasters, newMessage("disaster", "new", event))
	n.logger.Debug("disaster notification sent", "action", "new", "recipients", sent)
}

// NotifyDisasterUpdate publishes a status change for an existing event.
func (n *Notifier) NotifyDisasterUpdate(event any) {
	sent := n.hub.Publish(TopicDisasters, newMessage("disaster", "update", event))
	n.logger.Debug("disaster notification sent", "action", "update", "recipients", sent)
}

// AlertPayload is the wire shape of an alert notification. Message is
// truncated so oversized model output cannot bloat the fan-out.
type AlertPayload struct {
	AlertID  string `json:"alert_id"`
	EventID  string `json:"event_id"`
	Level    string `json:"level"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// NotifyNewAlert publishes an issued alert on the alerts topic.
func (n *Notifier) NotifyNewAlert(alert AlertPayload) {
	if len(alert.Message) > alertMessageLimit {
		alert.Message = alert.Message[:alertMessageLimit] + "..."
	}
	sent := n.hub.Publish(TopicAlerts, newMessage("alert", "new", alert))
	n.logger.Debug("alert notification sent", "alert_id", alert.AlertID, "recipients", sent)
}

// NotifySystemStats publishes aggregate statistics on the system topic.
func (n *Notifier) NotifySystemStats(stats any) {
	n.hub.Publish(TopicSystem, newMessage("stats", "", stats))
}
