package nativemsg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"screenlink/internal/bridge"
	"screenlink/internal/input"
)

type ClientOptions struct {
	// Env is appended to the host's environment.
	Env []string
	// Stderr receives the host's logs; os.Stderr if nil.
	Stderr  io.Writer
	Backoff time.Duration
	Logger  *slog.Logger

	OnReady       func(bridge.ReadyInfo)
	OnResult      func(id string, res input.Result)
	OnStateChange func(bridge.State)
}

// Client plays the browser side: it launches the native host, speaks
// the framing on its stdio, and relaunches it when the pipe drops.
type Client struct {
	argv []string
	opts ClientOptions
	sm   *bridge.StateMachine

	mu    sync.Mutex
	stdin io.Writer
}

func NewClient(argv []string, opts ClientOptions) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Client{argv: argv, opts: opts, sm: bridge.NewStateMachine(opts.OnStateChange)}
}

func (c *Client) State() bridge.State { return c.sm.State() }

// Run blocks until ctx is cancelled; the host is killed on exit.
func (c *Client) Run(ctx context.Context) {
	bridge.Reconnect(ctx, c.sm, c.opts.Backoff, c.opts.Logger, c.session)
}

// Forward sends ev and returns the id its response will carry.
func (c *Client) Forward(ev input.Event) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	return id, c.write(Request{Type: TypeInput, ID: id, Payload: payload})
}

func (c *Client) Ping() error {
	return c.write(Request{Type: TypePing, ID: uuid.NewString()})
}

func (c *Client) write(req Request) error {
	if c.sm.State() != bridge.Ready {
		return bridge.ErrNotReady
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stdin == nil {
		return bridge.ErrNotReady
	}
	return WriteJSON(c.stdin, req, MaxBrowserMessage)
}

func (c *Client) session(ctx context.Context, ready func()) error {
	if len(c.argv) == 0 {
		return errors.New("nativemsg: no host command configured")
	}
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Env = append(os.Environ(), c.opts.Env...)
	cmd.Stderr = c.opts.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("nativemsg: start host: %w", err)
	}

	defer func() {
		c.mu.Lock()
		c.stdin = nil
		c.mu.Unlock()
		_ = stdin.Close()
		_ = cmd.Wait()
	}()

	for {
		data, err := ReadFrame(stdout, MaxHostMessage)
		if err != nil {
			return err
		}
		var reply Reply
		if err := json.Unmarshal(data, &reply); err != nil {
			c.opts.Logger.Debug("nativemsg client: malformed reply", "err", err)
			continue
		}
		c.dispatch(reply, stdin, ready)
	}
}

func (c *Client) dispatch(reply Reply, stdin io.Writer, ready func()) {
	switch reply.Type {
	case TypeReady:
		c.mu.Lock()
		c.stdin = stdin
		c.mu.Unlock()
		ready()
		if c.opts.OnReady != nil {
			r := bridge.ReadyInfo{Version: reply.Version, Platform: reply.Platform}
			if reply.RobotAvailable != nil {
				r.RobotAvailable = *reply.RobotAvailable
			}
			c.opts.OnReady(r)
		}
	case TypeResponse:
		if c.opts.OnResult != nil {
			res := input.Result{Error: reply.Error}
			if reply.Success != nil {
				res.Success = *reply.Success
			}
			c.opts.OnResult(reply.ID, res)
		}
	}
}
