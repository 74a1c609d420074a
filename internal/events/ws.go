package events

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/recallcontext/backend/pkg/response"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
)

// StatusLookup returns the current status event of a meeting.
type StatusLookup func(ctx context.Context, meetingID int64) (StatusEvent, error)

// Subscriber delivers status events for one meeting.
type Subscriber interface {
	Subscribe(meetingID int64, handler func(StatusEvent)) (cancel func(), err error)
}

// StreamHandler serves GET /meetings/:id/events as a websocket stream of status events.
type StreamHandler struct {
	upgrader websocket.Upgrader
	lookup   StatusLookup
	sub      Subscriber
	logger   *zap.Logger
}

// NewStreamHandler creates a status stream handler. allowOrigin decides websocket origins.
func NewStreamHandler(lookup StatusLookup, sub Subscriber, allowOrigin func(origin string) bool, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin == nil || allowOrigin(origin)
			},
		},
		lookup: lookup,
		sub:    sub,
		logger: logger,
	}
}

// Stream sends the current status, then every transition until a terminal status or disconnect.
// The subscription is opened before the status is read so a transition in between is not lost.
func (h *StreamHandler) Stream(c *gin.Context) {
	meetingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}

	updates := make(chan StatusEvent, 16)
	cancel, err := h.sub.Subscribe(meetingID, func(ev StatusEvent) {
		select {
		case updates <- ev:
		default:
			h.logger.Warn("status stream slow consumer, dropping event", zap.Int64("meeting_id", meetingID))
		}
	})
	if err != nil {
		h.logger.Error("subscribe status events failed", zap.Int64("meeting_id", meetingID), zap.Error(err))
		response.ServiceUnavailable(c, "status events unavailable")
		return
	}
	defer cancel()

	current, err := h.lookup(c.Request.Context(), meetingID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	clientID := uuid.New().String()
	log := h.logger.With(zap.String("client_id", clientID), zap.Int64("meeting_id", meetingID))
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if done, err := writeEvent(conn, current); done || err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case ev := <-updates:
			// Events already reflected by the looked-up status.
			if ev.Status == current.Status {
				continue
			}
			done, err := writeEvent(conn, ev)
			if err != nil {
				log.Debug("status stream write failed", zap.Error(err))
				return
			}
			if done {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeEvent sends ev and closes the stream normally when ev is terminal. done reports that the stream is finished.
func writeEvent(conn *websocket.Conn, ev StatusEvent) (done bool, err error) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		return true, err
	}
	if !ev.Status.IsTerminal() {
		return false, nil
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.Status)), time.Now().Add(writeWait))
	return true, nil
}
