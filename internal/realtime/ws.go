package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

var errSendBufferFull = errors.New("send buffer full")

// WSHandler upgrades HTTP requests to websocket connections and bridges
// them into the hub.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(hub *Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// wsClient pushes hub messages through a buffered channel so one slow
// reader cannot stall the publisher. The writer goroutine owns all
// writes to the underlying connection.
type wsClient struct {
	conn *websocket.Conn
	send chan Message
}

func (c *wsClient) Send(msg Message) error {
	select {
	case c.send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsClient) writeLoop() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// controlMessage is what clients may send over the socket.
type controlMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = "client_" + uuid.New().String()
	}

	topics := []string{TopicDisasters, TopicAlerts, TopicSystem}
	if raw := r.URL.Query().Get("topics"); raw != "" {
		topics = topics[:0]
		for _, topic := range strings.Split(raw, ",") {
			topics = append(topics, strings.TrimSpace(topic))
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan Message, sendBufferSize)}
	go client.writeLoop()

	h.hub.Connect(clientID, client, topics...)
	client.Send(newMessage("connection", "connected", map[string]any{
		"client_id": clientID,
		"topics":    topics,
	}))

	h.readLoop(clientID, client)
}

func (h *WSHandler) readLoop(clientID string, client *wsClient) {
	defer func() {
		h.hub.DisconnectSink(clientID, client)
		close(client.send)
		client.conn.Close()
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "client_id", clientID, "error", err)
			}
			return
		}

		var ctrl controlMessage
		if err := json.Unmarshal(raw, &ctrl); err != nil {
			h.logger.Debug("ignoring malformed client message", "client_id", clientID)
			continue
		}

		switch ctrl.Action {
		case "subscribe":
			if h.hub.Subscribe(clientID, ctrl.Topic) {
				client.Send(newMessage("subscription", "subscribed", map[string]string{"topic": ctrl.Topic}))
			}
		case "unsubscribe":
			if h.hub.Unsubscribe(clientID, ctrl.Topic) {
				client.Send(newMessage("subscription", "unsubscribed", map[string]string{"topic": ctrl.Topic}))
			}
		case "ping":
			client.Send(newMessage("pong", "", nil))
		default:
			h.logger.Debug("ignoring unknown client action", "client_id", clientID, "action", ctrl.Action)
		}
	}
}
