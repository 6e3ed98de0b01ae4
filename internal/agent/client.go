package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"screenlink/internal/bridge"
	"screenlink/internal/input"
	"screenlink/internal/vdisplay"
)

type ClientOptions struct {
	// Backoff between reconnection attempts; bridge.DefaultBackoff if zero.
	Backoff time.Duration
	Logger  *slog.Logger

	OnReady          func(bridge.ReadyInfo)
	OnResult         func(id string, res input.Result)
	OnInfo           func(bridge.Info)
	OnVirtualDisplay func(vdisplay.Result)
	OnStateChange    func(bridge.State)
}

// Client is the dashboard side of the loopback agent. The agent may start
// after the dashboard, so Run keeps reconnecting until its context ends.
type Client struct {
	url  string
	opts ClientOptions
	sm   *bridge.StateMachine

	mu   sync.Mutex
	link *link
}

// link is the outbound side of one live connection. stopped closes once
// its writer has exited or the session is ending.
type link struct {
	send    chan []byte
	stopped chan struct{}
}

// NewClient targets the agent at host:port (typically 127.0.0.1:9988).
func NewClient(addr string, opts ClientOptions) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	return &Client{
		url:  u.String(),
		opts: opts,
		sm:   bridge.NewStateMachine(opts.OnStateChange),
	}
}

// LocalAddr is the agent's loopback address on port.
func LocalAddr(port int) string {
	return "127.0.0.1:" + strconv.Itoa(port)
}

func (c *Client) State() bridge.State { return c.sm.State() }

// Run blocks until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	bridge.Reconnect(ctx, c.sm, c.opts.Backoff, c.opts.Logger, c.session)
}

// Forward queues ev and returns the id its input-result will carry.
func (c *Client) Forward(ev input.Event) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	return id, c.enqueue(Message{Type: TypeSimulateInput, ID: id, Payload: payload})
}

func (c *Client) ToggleVirtualDisplay(enabled bool) error {
	return c.enqueue(Message{Type: TypeVirtualDisplayToggle, Enabled: &enabled})
}

func (c *Client) RequestInfo() error {
	return c.enqueue(Message{Type: TypeGetInfo})
}

func (c *Client) Ping() error {
	return c.enqueue(Message{Type: TypePing})
}

func (c *Client) enqueue(msg Message) error {
	if c.sm.State() != bridge.Ready {
		return bridge.ErrNotReady
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return bridge.ErrNotReady
	}
	select {
	case <-c.link.stopped:
		return bridge.ErrNotReady
	default:
	}
	select {
	case c.link.send <- data:
		return nil
	default:
		return fmt.Errorf("agent send buffer full")
	}
}

func (c *Client) session(ctx context.Context, ready func()) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	l := &link{send: make(chan []byte, sendBuffer), stopped: make(chan struct{})}
	done := make(chan struct{})
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(l.stopped) }) }

	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-done:
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer func() {
			c.mu.Lock()
			stop()
			c.mu.Unlock()
		}()
		for {
			select {
			case <-done:
				return
			case data := <-l.send:
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()
	defer func() {
		c.mu.Lock()
		c.link = nil
		stop()
		c.mu.Unlock()
		close(done)
		<-writerDone
	}()

	ws.SetReadLimit(maxMessageSize)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.opts.Logger.Debug("agent client: malformed frame", "err", err)
			continue
		}
		if msg.Type == TypeReady {
			c.mu.Lock()
			c.link = l
			c.mu.Unlock()
			ready()
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	switch msg.Type {
	case TypeReady:
		var r bridge.ReadyInfo
		if json.Unmarshal(msg.Payload, &r) == nil && c.opts.OnReady != nil {
			c.opts.OnReady(r)
		}
	case TypeInputResult:
		var res input.Result
		if json.Unmarshal(msg.Payload, &res) == nil && c.opts.OnResult != nil {
			c.opts.OnResult(msg.ID, res)
		}
	case TypeInfo:
		var info bridge.Info
		if json.Unmarshal(msg.Payload, &info) == nil && c.opts.OnInfo != nil {
			c.opts.OnInfo(info)
		}
	case TypeVirtualDisplayResult:
		var res vdisplay.Result
		if json.Unmarshal(msg.Payload, &res) == nil && c.opts.OnVirtualDisplay != nil {
			c.opts.OnVirtualDisplay(res)
		}
	}
}
