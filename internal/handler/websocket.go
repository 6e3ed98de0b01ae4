package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"screenlink/internal/coordinator"
	"screenlink/internal/hub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024

	DefaultSendQueueSize = 256
)

// SignalingHandler upgrades /ws requests and pumps frames between the
// socket and the coordinator. Clients are anonymous.
type SignalingHandler struct {
	Coordinator *coordinator.Coordinator
	QueueSize   int
	Logger      *slog.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *SignalingHandler) Serve(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger().Debug("websocket upgrade failed", "remote", c.ClientIP(), "err", err)
		return
	}

	size := h.QueueSize
	if size <= 0 {
		size = DefaultSendQueueSize
	}
	// Closing the queue (including when the hub drops a slow consumer)
	// closes the socket, which ends the read loop below.
	queue := hub.NewQueue(size, func() { _ = ws.Close() })
	peer := h.Coordinator.Connect(queue)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writePump(ws, queue)
	}()

	defer func() {
		h.Coordinator.Disconnect(peer)
		_ = queue.Close()
		<-writerDone
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger().Debug("websocket read error", "session", peer.ID, "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.Coordinator.Handle(peer, data)
	}
}

func (h *SignalingHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// writePump is the only goroutine that writes to ws.
func writePump(ws *websocket.Conn, queue *hub.Queue) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-queue.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case message := <-queue.Messages():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				_ = queue.Close()
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = queue.Close()
				return
			}
		}
	}
}
