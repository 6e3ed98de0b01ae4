// Package ipc is the embedded-app bridge: a UI layer in the same process
// invokes named commands with JSON arguments. There is no framing.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"screenlink/internal/bridge"
	"screenlink/internal/input"
)

const (
	CommandSimulateInput        = "simulate_input"
	CommandScreenSize           = "screen_size"
	CommandToggleVirtualDisplay = "toggle_virtual_display"
	CommandGetInfo              = "get_info"
	CommandPing                 = "ping"
)

var ErrUnknownCommand = errors.New("ipc: unknown command")

// Bridge is ready from construction until Close.
type Bridge struct {
	host *bridge.Host
	sm   *bridge.StateMachine
}

func New(host *bridge.Host) *Bridge {
	b := &Bridge{host: host, sm: bridge.NewStateMachine(nil)}
	b.sm.Set(bridge.Ready)
	return b
}

func (b *Bridge) State() bridge.State { return b.sm.State() }

func (b *Bridge) Close() { b.sm.Set(bridge.Disconnected) }

// Forward applies ev directly.
func (b *Bridge) Forward(ev input.Event) input.Result {
	if b.sm.State() != bridge.Ready {
		return input.Failed(bridge.ErrNotReady)
	}
	return b.host.Forward(ev)
}

// Invoke runs command with JSON args and returns a JSON-marshalable
// value. Sink failures are reported inside the returned input.Result;
// the error return is for unknown commands and bad arguments.
func (b *Bridge) Invoke(ctx context.Context, command string, args json.RawMessage) (any, error) {
	if b.sm.State() != bridge.Ready {
		return nil, bridge.ErrNotReady
	}

	switch command {
	case CommandSimulateInput:
		var ev input.Event
		if err := json.Unmarshal(args, &ev); err != nil {
			return nil, fmt.Errorf("ipc: %s: %w", command, err)
		}
		return b.host.Forward(ev), nil

	case CommandScreenSize:
		size, err := b.host.Dispatcher.ScreenSize()
		if err != nil {
			return nil, fmt.Errorf("ipc: %s: %w", command, err)
		}
		return size, nil

	case CommandToggleVirtualDisplay:
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("ipc: %s: %w", command, err)
		}
		if req.Enabled == nil {
			return nil, fmt.Errorf("ipc: %s: enabled is required", command)
		}
		return b.host.ToggleVirtualDisplay(ctx, *req.Enabled), nil

	case CommandGetInfo:
		return b.host.Info(), nil

	case CommandPing:
		return "pong", nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}
