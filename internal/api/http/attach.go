package http

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Yahook/mcp-terminal/internal/api/middleware"
	"github.com/Yahook/mcp-terminal/internal/shared/id"
	"github.com/Yahook/mcp-terminal/internal/terminal"
)

const (
	attachPollInterval = 100 * time.Millisecond
	attachWriteWait    = 5 * time.Second
	attachMaxMessage   = 64 << 10
)

func newUpgrader(origins middleware.CORSConfig) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     origins.AllowedRequest,
	}
}

// attachMessage is the frame format in both directions.
type attachMessage struct {
	Type    string `json:"type"`
	Data    string `json:"data,omitempty"`
	Alive   *bool  `json:"alive,omitempty"`
	Message string `json:"message,omitempty"`
}

// Attach streams a session over a WebSocket. Inbound {"type":"input"}
// frames are written to the shell; new output is pushed as {"type":"output"}
// frames. Attaching consumes output the same way read_output does.
func (h *Handlers) Attach(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	if _, err := h.manager.Info(sessionID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := id.NewConnectionID()
	logger := h.logger.With(zap.String("session_id", sessionID), zap.String("conn_id", connID.String()))
	logger.Info("attach opened")
	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	replies := make(chan attachMessage, 8)
	go h.readFrames(ctx, cancel, conn, sessionID, replies, logger)

	reason := h.pushOutput(ctx, conn, sessionID, replies)
	logger.Info("attach closed", zap.String("reason", reason))

	_ = conn.SetWriteDeadline(time.Now().Add(attachWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
}

// readFrames forwards client input until the connection fails. It never
// writes to conn; anything to tell the client goes through replies.
func (h *Handlers) readFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sessionID string, replies chan<- attachMessage, logger *zap.Logger) {
	defer cancel()
	conn.SetReadLimit(attachMaxMessage)

	for {
		var msg attachMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("attach read ended", zap.Error(err))
			}
			return
		}
		var reply *attachMessage
		switch msg.Type {
		case "input":
			h.recordWS("in", msg.Type)
			if err := h.manager.SendInput(sessionID, msg.Data); err != nil {
				reply = &attachMessage{Type: "error", Message: err.Error()}
			}
		case "ping":
			h.recordWS("in", msg.Type)
			reply = &attachMessage{Type: "pong"}
		default:
			h.recordWS("in", "unknown")
			reply = &attachMessage{Type: "error", Message: "unknown message type: " + msg.Type}
		}

		if reply != nil {
			select {
			case replies <- *reply:
			case <-ctx.Done():
				return
			}
		}
	}
}

// pushOutput polls the session and is the only writer on conn. It returns
// the reason the stream ended.
func (h *Handlers) pushOutput(ctx context.Context, conn *websocket.Conn, sessionID string, replies <-chan attachMessage) string {
	ticker := time.NewTicker(attachPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "client gone"
		case reply := <-replies:
			if err := h.writeFrame(conn, reply); err != nil {
				return "write failed"
			}
		case <-ticker.C:
			text, alive, err := h.manager.ReadOutput(sessionID, -1)
			if errors.Is(err, terminal.ErrNotFound) {
				_ = h.writeFrame(conn, attachMessage{Type: "exit", Message: "session closed"})
				return "session closed"
			}
			if err != nil {
				_ = h.writeFrame(conn, attachMessage{Type: "error", Message: err.Error()})
				return "read failed"
			}

			if text != "" {
				if err := h.writeFrame(conn, attachMessage{Type: "output", Data: text, Alive: &alive}); err != nil {
					return "write failed"
				}
			}
			if !alive {
				_ = h.writeFrame(conn, attachMessage{Type: "exit", Message: "shell exited"})
				return "shell exited"
			}
		}
	}
}

func (h *Handlers) writeFrame(conn *websocket.Conn, msg attachMessage) error {
	h.recordWS("out", msg.Type)
	_ = conn.SetWriteDeadline(time.Now().Add(attachWriteWait))
	return conn.WriteJSON(msg)
}

func (h *Handlers) recordWS(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}
