package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"guardians/internal/logging"
	"guardians/internal/middleware"
	"guardians/internal/models"
	"guardians/internal/services"
)

var wsLog = logging.L("ws")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client intent message types
const (
	IntentSetSearch      = "set_search"
	IntentSetClass       = "set_class"
	IntentSetSort        = "set_sort"
	IntentSelect         = "select"
	IntentClearSelection = "clear_selection"
	IntentAction         = "action"
	IntentPing           = "ping"
)

// ClientMessage is an intent sent by a websocket client
type ClientMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Filter    string `json:"filter,omitempty"`
	Column    string `json:"column,omitempty"`
	Direction string `json:"direction,omitempty"`
	PID       *int32 `json:"pid,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Level     string `json:"level,omitempty"`
}

var clientSeq atomic.Uint64

// HandleWebSocket upgrades the connection and registers it with the hub
func (ctl *Controller) HandleWebSocket(c *gin.Context) {
	serverName := "anonymous"
	if ctl.auth != nil {
		token := middleware.BearerToken(c)
		if token == "" {
			ctl.security.LogFailedAuth(c.ClientIP(), "missing token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := ctl.auth.ValidateToken(token)
		if err != nil {
			ctl.security.LogFailedAuth(c.ClientIP(), err.Error())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		serverName = claims.ServerName
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wsLog.Warn("upgrade failed", "ip", c.ClientIP(), logging.KeyError, err)
		return
	}
	ctl.security.LogWebSocketConnected(c.ClientIP(), serverName)

	clientID := c.ClientIP() + "-" + strconv.FormatUint(clientSeq.Add(1), 10)
	client := services.NewClientConnection(clientID, ws)
	if !ctl.hub.Register(client) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	go ctl.readPump(client, c.ClientIP())
	go writePump(client)
}

// readPump applies client intents until the connection closes
func (ctl *Controller) readPump(client *services.ClientConnection, ip string) {
	defer func() {
		ctl.hub.Unregister(client.ID)
		_ = client.Conn.Close()
		ctl.security.LogWebSocketDisconnected(ip, client.ID)
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn("read failed", "client", client.ID, logging.KeyError, err)
			}
			return
		}
		_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))

		if reply, ok := ctl.handleIntent(ip, msg); ok {
			ctl.hub.SendMessage(client.ID, reply)
		}
	}
}

// handleIntent applies msg and returns the reply to send, if any. View
// changes need no reply: the next projection reflects them.
func (ctl *Controller) handleIntent(ip string, msg ClientMessage) (services.WebSocketMessage, bool) {
	var err error
	switch msg.Type {
	case IntentSetSearch:
		err = ctl.applySearch(msg.Text)
	case IntentSetClass:
		err = ctl.applyClass(msg.Filter)
	case IntentSetSort:
		err = ctl.applySort(msg.Column, msg.Direction)
	case IntentSelect:
		var pid int32
		if pid, err = requirePID(msg); err == nil {
			err = ctl.applySelect(pid)
		}
	case IntentClearSelection:
		ctl.monitor.View().ClearSelection()
	case IntentAction:
		pid, err := requirePID(msg)
		if err != nil {
			return errorMessage(err), true
		}
		ctl.security.LogActionRequested(ip, msg.Kind, pid)
		req, err := ctl.monitor.InvokeAction(models.ActionRequest{
			Kind:  models.ActionKind(msg.Kind),
			PID:   pid,
			Level: models.PriorityLevel(msg.Level),
		})
		if err != nil {
			return errorMessage(err), true
		}
		return services.WebSocketMessage{Type: services.MsgActionAccepted, Timestamp: time.Now(), Data: req}, true
	case IntentPing:
		return services.WebSocketMessage{Type: services.MsgPong, Timestamp: time.Now()}, true
	default:
		wsLog.Debug("unknown message type", "type", msg.Type)
		return errorMessage(errUnknownIntent(msg.Type)), true
	}
	if err != nil {
		return errorMessage(err), true
	}
	return services.WebSocketMessage{}, false
}

// requirePID tells a missing pid apart from pid 0
func requirePID(msg ClientMessage) (int32, error) {
	if msg.PID == nil {
		return 0, fmt.Errorf("%w: %s requires a pid", models.ErrInvalidArgument, msg.Type)
	}
	return *msg.PID, nil
}

func errorMessage(err error) services.WebSocketMessage {
	kind, retryable := services.ErrorKindOf(err)
	return services.WebSocketMessage{
		Type:      services.MsgError,
		Timestamp: time.Now(),
		Error:     err.Error(),
		Data:      gin.H{"error_kind": kind, "retryable": retryable, "status": StatusFor(err)},
	}
}

// writePump writes hub messages to the client and keeps the connection alive
func writePump(client *services.ClientConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					wsLog.Warn("write failed", "client", client.ID, logging.KeyError, err)
				}
				return
			}

		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleTokenStatus reports the claims of the presented token
func (ctl *Controller) HandleTokenStatus(c *gin.Context) {
	if ctl.auth == nil {
		c.JSON(http.StatusOK, gin.H{"valid": true, "auth_enabled": false})
		return
	}
	token := middleware.BearerToken(c)
	if token == "" {
		ctl.security.LogFailedAuth(c.ClientIP(), "missing token in header or query")
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required in Authorization header or query parameter"})
		return
	}
	claims, err := ctl.auth.ValidateToken(token)
	if err != nil {
		ctl.security.LogFailedAuth(c.ClientIP(), err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":        true,
		"auth_enabled": true,
		"server":       claims.ServerName,
		"expires_at":   claims.ExpiresAt.Time,
		"issued_at":    claims.IssuedAt.Time,
	})
}
