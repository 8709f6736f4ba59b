package realtime

import "time"

// Topics a client can subscribe to.
const (
	TopicDisasters = "disasters"
	TopicAlerts    = "alerts"
	TopicSystem    = "system"
)

// ValidTopic reports whether name is one of the known topics.
func ValidTopic(name string) bool {
	switch name {
	case TopicDisasters, TopicAlerts, TopicSystem:
		return true
	}
	return false
}

// Message is the envelope delivered to subscribed clients. Timestamp is
// stamped at publish time, not at send time, so every recipient of one
// publication sees the same value.
type Message struct {
	Type      string `json:"type"`
	Action    string `json:"action,omitempty"`
	Data      any    `json:"data,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Timestamp string `json:"timestamp"`
}

func newMessage(msgType, action string, data any) Message {
	return Message{
		Type:      msgType,
		Action:    action,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
