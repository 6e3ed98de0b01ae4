// Package vdisplay is the virtual-display capability bridges expose to
// the controller. The actual display tooling is an external helper
// command; this package only runs it and tracks the last known state.
package vdisplay

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var ErrUnsupported = errors.New("virtual display not supported on this host")

const commandTimeout = 30 * time.Second

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type Controller interface {
	Supported() bool
	Enabled() bool
	Enable(ctx context.Context) Result
	Disable(ctx context.Context) Result
}

// Toggle calls Enable or Disable.
func Toggle(ctx context.Context, c Controller, enabled bool) Result {
	if enabled {
		return c.Enable(ctx)
	}
	return c.Disable(ctx)
}

// Unsupported is the controller for hosts without display tooling.
type Unsupported struct{}

func (Unsupported) Supported() bool { return false }
func (Unsupported) Enabled() bool   { return false }

func (Unsupported) Enable(context.Context) Result {
	return Result{Success: false, Message: ErrUnsupported.Error()}
}

func (Unsupported) Disable(context.Context) Result {
	return Result{Success: false, Message: ErrUnsupported.Error()}
}

type RunFunc func(ctx context.Context, argv []string) ([]byte, error)

func execRun(ctx context.Context, argv []string) ([]byte, error) {
	return exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
}

// Command runs operator-configured helper commands. Calls are
// serialized; a second Enable while enabled is a no-op success.
type Command struct {
	enable  []string
	disable []string
	run     RunFunc

	mu      sync.Mutex
	enabled bool
}

// New returns Unsupported unless both commands are configured.
func New(enable, disable []string) Controller {
	if len(enable) == 0 || len(disable) == 0 {
		return Unsupported{}
	}
	return NewCommand(enable, disable, nil)
}

func NewCommand(enable, disable []string, run RunFunc) *Command {
	if run == nil {
		run = execRun
	}
	return &Command{enable: enable, disable: disable, run: run}
}

func (c *Command) Supported() bool { return true }

func (c *Command) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Command) Enable(ctx context.Context) Result { return c.set(ctx, true) }

func (c *Command) Disable(ctx context.Context) Result { return c.set(ctx, false) }

func (c *Command) set(ctx context.Context, enabled bool) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enabled == enabled {
		return Result{Success: true, Message: stateMessage(enabled)}
	}

	argv := c.disable
	if enabled {
		argv = c.enable
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := c.run(ctx, argv)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return Result{Success: false, Message: fmt.Sprintf("%s failed: %s", argv[0], msg)}
	}
	c.enabled = enabled
	return Result{Success: true, Message: stateMessage(enabled)}
}

func stateMessage(enabled bool) string {
	if enabled {
		return "virtual display enabled"
	}
	return "virtual display disabled"
}
