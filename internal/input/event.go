// Package input is the canonical cross-transport input schema shared by
// every bridge: the wire event, the raw-UI normalizer, the key mapping
// table and the Dispatcher that applies events to a Sink.
package input

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type EventType string

const (
	TypeMouseMove EventType = "mousemove"
	TypeMouseDown EventType = "mousedown"
	TypeMouseUp   EventType = "mouseup"
	TypeScroll    EventType = "scroll"
	TypeKeyDown   EventType = "keydown"
)

// Event is one canonical input event. X and Y are fractions of the
// target's full display surface, not pixels.
type Event struct {
	Type      EventType `json:"type"`
	X         *float64  `json:"x,omitempty"`
	Y         *float64  `json:"y,omitempty"`
	DeltaX    float64   `json:"deltaX,omitempty"`
	DeltaY    float64   `json:"deltaY,omitempty"`
	Button    *int      `json:"button,omitempty"`
	Key       string    `json:"key,omitempty"`
	Modifiers Modifiers `json:"modifiers,omitempty"`
}

// HasPosition reports whether both coordinates are present.
func (e Event) HasPosition() bool { return e.X != nil && e.Y != nil }

// HighFrequency marks events whose results bridges don't report back.
func (e Event) HighFrequency() bool { return e.Type == TypeMouseMove }

// MoveTo builds a mousemove event.
func MoveTo(x, y float64) Event {
	return Event{Type: TypeMouseMove, X: &x, Y: &y}
}

// Modifiers is the set of held modifier keys. On the wire it is either
// an object of booleans ({"shift":true}) or an array of names
// (["shift","ctrl"]); "control" and "command" are accepted aliases.
type Modifiers struct {
	Shift bool
	Ctrl  bool
	Alt   bool
	Meta  bool
}

func (m Modifiers) Any() bool { return m.Shift || m.Ctrl || m.Alt || m.Meta }

// Names lists held modifiers in a fixed order using sink vocabulary.
func (m Modifiers) Names() []string {
	var names []string
	if m.Shift {
		names = append(names, "shift")
	}
	if m.Ctrl {
		names = append(names, "control")
	}
	if m.Alt {
		names = append(names, "alt")
	}
	if m.Meta {
		names = append(names, "command")
	}
	return names
}

// set ignores names it doesn't know (capsLock, fn, ...) so the key still
// goes through.
func (m *Modifiers) set(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "shift":
		m.Shift = true
	case "ctrl", "control":
		m.Ctrl = true
	case "alt", "option":
		m.Alt = true
	case "meta", "command", "cmd":
		m.Meta = true
	}
}

func (m *Modifiers) UnmarshalJSON(data []byte) error {
	*m = Modifiers{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '[' {
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return fmt.Errorf("modifiers: %w", err)
		}
		for _, name := range names {
			m.set(name)
		}
		return nil
	}

	var flags map[string]bool
	if err := json.Unmarshal(data, &flags); err != nil {
		return fmt.Errorf("modifiers: %w", err)
	}
	for name, held := range flags {
		if held {
			m.set(name)
		}
	}
	return nil
}

func (m Modifiers) MarshalJSON() ([]byte, error) {
	flags := map[string]bool{}
	if m.Shift {
		flags["shift"] = true
	}
	if m.Ctrl {
		flags["ctrl"] = true
	}
	if m.Alt {
		flags["alt"] = true
	}
	if m.Meta {
		flags["meta"] = true
	}
	return json.Marshal(flags)
}

// Result is what every bridge reports for a forwarded event.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func OK() Result { return Result{Success: true} }

func Failed(err error) Result { return Result{Success: false, Error: err.Error()} }
