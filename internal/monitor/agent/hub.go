package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/metrics"
	"hyperwatch/internal/monitor/alerts"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Stream message types pushed to dashboard clients
const (
	MessageNotification = "notification"
	MessageDismiss      = "dismiss"
	MessageSound        = "sound"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 32
)

// ErrNoListeners is returned by Play when nobody is watching the container
var ErrNoListeners = errors.New("no clients connected to container")

// StreamMessage is one frame on the notification stream
type StreamMessage struct {
	Type         string               `json:"type"`
	Container    string               `json:"container"`
	Notification *alerts.Notification `json:"notification,omitempty"`
	ID           string               `json:"id,omitempty"`
	Asset        string               `json:"asset,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn      *websocket.Conn
	container string
	send      chan []byte
}

// Hub fans notification frames out to the websocket clients of each container
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *logging.Logger
}

// NewHub creates an empty hub
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// Sink returns the alerts.Sink that delivers to the clients of container
func (h *Hub) Sink(container string) alerts.Sink {
	return &containerSink{hub: h, container: container}
}

type containerSink struct {
	hub       *Hub
	container string
}

func (s *containerSink) Show(notification *alerts.Notification) error {
	return s.hub.publish(StreamMessage{
		Type:         MessageNotification,
		Container:    s.container,
		Notification: notification,
	})
}

func (s *containerSink) Dismiss(id string) {
	if err := s.hub.publish(StreamMessage{Type: MessageDismiss, Container: s.container, ID: id}); err != nil {
		s.hub.logger.Warn("Failed to publish dismiss", "container", s.container, "error", err)
	}
}

// Play asks the clients of container to play asset. It fails when no client
// is connected, the way a browser rejects playback without a page to play on.
func (h *Hub) Play(container, asset string) error {
	if h.ClientCount(container) == 0 {
		return ErrNoListeners
	}
	return h.publish(StreamMessage{Type: MessageSound, Container: container, Asset: asset})
}

// ClientCount returns the clients subscribed to container, or all clients
// when container is empty
func (h *Hub) ClientCount(container string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if container == "" {
		return len(h.clients)
	}
	count := 0
	for c := range h.clients {
		if c.container == container {
			count++
		}
	}
	return count
}

func (h *Hub) publish(msg StreamMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msg.Type, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.container != msg.Container {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("WebSocket client too slow, disconnecting", "container", c.container)
			h.removeLocked(c)
		}
	}
	return nil
}

// subscribe registers a client for container with the backlog queued ahead of
// any live frame. backlog runs under the hub lock, so every notification is
// either in it or published to the new client afterwards.
func (h *Hub) subscribe(conn *websocket.Conn, container string, backlog func() []alerts.Notification) *client {
	h.mu.Lock()
	var pending []alerts.Notification
	if backlog != nil {
		pending = backlog()
	}
	c := &client{conn: conn, container: container, send: make(chan []byte, clientSendSize+len(pending))}
	for i := range pending {
		payload, err := json.Marshal(StreamMessage{
			Type:         MessageNotification,
			Container:    container,
			Notification: &pending[i],
		})
		if err != nil {
			continue
		}
		c.send <- payload
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	metrics.WebSocketClients.Inc()
	h.logger.Debug("WebSocket client connected", "container", container, "backlog", len(pending))
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	h.mu.Unlock()
	if removed {
		h.logger.Debug("WebSocket client disconnected", "container", c.container)
	}
}

func (h *Hub) removeLocked(c *client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	metrics.WebSocketClients.Dec()
	return true
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// HandleWebSocket upgrades the request and streams frames for one container.
// backlog lists the notifications still up so late joiners see them.
func (h *Hub) HandleWebSocket(container string, backlog func() []alerts.Notification) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warn("WebSocket upgrade error", "error", err)
			return
		}

		cl := h.subscribe(conn, container, backlog)
		go h.writePump(cl)
		h.readPump(cl)
	}
}

// readPump drains client frames so pongs and close messages are processed
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("WebSocket write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
