package realtime

import (
	"log/slog"
	"sync"
)

// Sink receives messages for a single client. Implementations must not
// block; a returned error marks the connection as dead.
type Sink interface {
	Send(msg Message) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(msg Message) error

func (f SinkFunc) Send(msg Message) error { return f(msg) }

type connection struct {
	sink   Sink
	topics map[string]struct{}
}

// Hub tracks connected clients and their topic subscriptions and fans
// published messages out to them. A client whose sink fails is dropped
// from the registry as if it had disconnected.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*connection
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*connection),
		logger:  logger,
	}
}

// Connect registers a client with its initial topic subscriptions.
// Unknown topics are ignored. Reconnecting under an existing client ID
// replaces the previous registration.
func (h *Hub) Connect(clientID string, sink Sink, topics ...string) {
	subs := make(map[string]struct{})
	for _, topic := range topics {
		if ValidTopic(topic) {
			subs[topic] = struct{}{}
		}
	}

	h.mu.Lock()
	h.clients[clientID] = &connection{sink: sink, topics: subs}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected", "client_id", clientID, "topics", topics, "total_clients", total)
}

// Disconnect removes the client. Unknown client IDs are a no-op.
func (h *Hub) Disconnect(clientID string) {
	h.mu.Lock()
	_, found := h.clients[clientID]
	delete(h.clients, clientID)
	total := len(h.clients)
	h.mu.Unlock()

	if found {
		h.logger.Info("client disconnected", "client_id", clientID, "total_clients", total)
	}
}

// DisconnectSink removes the client only while sink is still its registered
// sink. A connection replaced by a reconnect under the same client ID uses
// this during teardown so it cannot deregister its successor.
func (h *Hub) DisconnectSink(clientID string, sink Sink) {
	h.mu.Lock()
	conn, found := h.clients[clientID]
	owned := found && conn.sink == sink
	if owned {
		delete(h.clients, clientID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if owned {
		h.logger.Info("client disconnected", "client_id", clientID, "total_clients", total)
	}
}

// Subscribe adds the client to a topic. Returns false when the client
// is unknown or the topic invalid.
func (h *Hub) Subscribe(clientID, topic string) bool {
	if !ValidTopic(topic) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.clients[clientID]
	if !ok {
		return false
	}
	conn.topics[topic] = struct{}{}
	return true
}

// Unsubscribe removes the client from a topic. Unknown clients or
// topics are a no-op.
func (h *Hub) Unsubscribe(clientID, topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.clients[clientID]
	if !ok {
		return false
	}
	if _, subscribed := conn.topics[topic]; !subscribed {
		return false
	}
	delete(conn.topics, topic)
	return true
}

// Publish stamps the topic onto msg and delivers it to every subscriber.
// A failed send drops that client without affecting delivery to the
// rest. Returns the number of successful deliveries.
func (h *Hub) Publish(topic string, msg Message) int {
	msg.Topic = topic
	return h.deliver(msg, func(conn *connection) bool {
		_, subscribed := conn.topics[topic]
		return subscribed
	})
}

// PublishAll delivers msg to every connected client regardless of
// subscriptions.
func (h *Hub) PublishAll(msg Message) int {
	return h.deliver(msg, func(*connection) bool { return true })
}

func (h *Hub) deliver(msg Message, match func(*connection) bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for clientID, conn := range h.clients {
		if !match(conn) {
			continue
		}
		if err := conn.sink.Send(msg); err != nil {
			h.logger.Warn("send failed, dropping client", "client_id", clientID, "error", err)
			delete(h.clients, clientID)
			continue
		}
		sent++
	}
	return sent
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// TopicCounts returns the number of subscribers per known topic.
func (h *Hub) TopicCounts() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := map[string]int{TopicDisasters: 0, TopicAlerts: 0, TopicSystem: 0}
	for _, conn := range h.clients {
		for topic := range conn.topics {
			counts[topic]++
		}
	}
	return counts
}
