package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"screenlink/internal/bridge"
	"screenlink/internal/input"
	"screenlink/internal/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// The agent trusts the local machine; any origin may connect.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Server struct {
	host   *bridge.Host
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
}

func NewServer(host *bridge.Host, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{host: host, logger: logger, conns: make(map[*conn]struct{})}
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.host.Info())
	})
	r.GET("/ws", func(c *gin.Context) {
		s.serveWS(c.Writer, c.Request)
	})
	return r
}

// Listen binds addr. Callers treat an error as fatal: a port already in
// use means another agent is running.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("agent listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve runs on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	s.closeAll()
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Connections reports open dashboard connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.close()
	}
}

type conn struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// enqueue never blocks; a dashboard that stops reading is dropped.
func (c *conn) enqueue(msg []byte) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.close()
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("agent upgrade failed", "err", err)
		return
	}

	c := &conn{ws: ws, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("dashboard connected", "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.close()
		<-writerDone
		s.logger.Info("dashboard disconnected", "remote", r.RemoteAddr)
	}()

	c.enqueue(encode(TypeReady, "", s.host.Ready()))

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("agent read error", "err", err)
			}
			return
		}
		s.handle(r.Context(), c, data)
	}
}

func (s *Server) handle(ctx context.Context, c *conn, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("agent: malformed frame", "err", err)
		return
	}

	switch msg.Type {
	case TypeSimulateInput:
		var ev input.Event
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			c.enqueue(encode(TypeInputResult, msg.ID, input.Result{Success: false, Error: "invalid input payload: " + err.Error()}))
			return
		}
		res := s.host.Forward(ev)
		if res.Success && ev.HighFrequency() {
			return
		}
		c.enqueue(encode(TypeInputResult, msg.ID, res))

	case TypeVirtualDisplayToggle:
		enabled, err := msg.toggleTarget()
		if err != nil {
			c.enqueue(encode(TypeVirtualDisplayResult, msg.ID, map[string]any{"success": false, "message": err.Error()}))
			return
		}
		c.enqueue(encode(TypeVirtualDisplayResult, msg.ID, s.host.ToggleVirtualDisplay(ctx, enabled)))

	case TypePing:
		c.enqueue(encode(TypePong, msg.ID, nil))

	case TypeGetInfo:
		c.enqueue(encode(TypeInfo, msg.ID, s.host.Info()))

	default:
		s.logger.Debug("agent: unknown message type", "type", msg.Type)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}
