package services

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"guardians/internal/imetrics"
	"guardians/internal/logging"
	"guardians/internal/models"
)

var wsLog = logging.L("websocket")

const clientSendBuffer = 64

// WebSocket message types
const (
	MsgProjection     = models.EventProjection
	MsgActionResult   = models.EventActionResult
	MsgActionAccepted = "action_accepted"
	MsgPong           = "pong"
	MsgError          = "error"
)

// WebSocketMessage is what the server sends to clients
type WebSocketMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ClientConnection is one connected websocket client
type ClientConnection struct {
	ID   string
	Conn *websocket.Conn
	Send chan WebSocketMessage
}

func NewClientConnection(id string, conn *websocket.Conn) *ClientConnection {
	return &ClientConnection{ID: id, Conn: conn, Send: make(chan WebSocketMessage, clientSendBuffer)}
}

// WebSocketHub fans monitor events out to every connected client
type WebSocketHub struct {
	monitor *Monitor
	metrics imetrics.Reporter

	clients    map[string]*ClientConnection
	register   chan *ClientConnection
	unregister chan string
	mu         sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
}

func NewWebSocketHub(monitor *Monitor, metrics imetrics.Reporter) *WebSocketHub {
	if metrics == nil {
		metrics = imetrics.NoopReporter{}
	}
	return &WebSocketHub{
		monitor:    monitor,
		metrics:    metrics,
		clients:    make(map[string]*ClientConnection),
		register:   make(chan *ClientConnection),
		unregister: make(chan string),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop; it returns when ctx ends or Stop is called
func (h *WebSocketHub) Run(ctx context.Context) {
	sub := h.monitor.Subscribe()
	defer h.monitor.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan models.Event)
	go func() {
		defer close(events)
		for {
			ev, err := sub.Next(ctx)
			if err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.metrics.ClientConnect()
			h.deliver(client, ProjectionMessage(h.monitor.Latest()))
			wsLog.Info("client connected", "client", client.ID, "total", total)

		case id := <-h.unregister:
			h.mu.Lock()
			client, exists := h.clients[id]
			if exists {
				delete(h.clients, id)
				close(client.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			if exists {
				h.metrics.ClientDisconnect()
				wsLog.Info("client disconnected", "client", id, "total", total)
			}

		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(EventMessage(ev))
		}
	}
}

func (h *WebSocketHub) broadcast(msg WebSocketMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.deliver(client, msg)
	}
}

// deliver never blocks the hub; a full client buffer drops the message
func (h *WebSocketHub) deliver(client *ClientConnection, msg WebSocketMessage) {
	select {
	case client.Send <- msg:
	default:
		wsLog.Debug("client send buffer full, skipping message", "client", client.ID, "type", msg.Type)
	}
}

// Register adds a client; false when the hub has stopped
func (h *WebSocketHub) Register(client *ClientConnection) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its Send channel
func (h *WebSocketHub) Unregister(clientID string) {
	select {
	case h.unregister <- clientID:
	case <-h.done:
	}
}

// SendMessage queues msg for one client
func (h *WebSocketHub) SendMessage(clientID string, msg WebSocketMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, exists := h.clients[clientID]
	if !exists {
		return false
	}
	select {
	case client.Send <- msg:
		return true
	default:
		return false
	}
}

// ClientCount is the number of registered clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop ends Run and disconnects every client
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *WebSocketHub) closeAll() {
	h.Stop()
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
		h.metrics.ClientDisconnect()
	}
}

// ProjectionMessage wraps a projection for the wire
func ProjectionMessage(p models.Projection) WebSocketMessage {
	return WebSocketMessage{Type: MsgProjection, Timestamp: time.Now(), Data: p}
}

// EventMessage wraps a monitor event for the wire
func EventMessage(ev models.Event) WebSocketMessage {
	msg := WebSocketMessage{Type: ev.Type, Timestamp: time.Now()}
	switch {
	case ev.Projection != nil:
		msg.Data = ev.Projection
	case ev.Action != nil:
		msg.Data = ev.Action
		msg.Error = ev.Action.Error
	}
	return msg
}
