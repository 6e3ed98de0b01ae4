// Package sink holds the platform input.Sink implementations.
package sink

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"screenlink/internal/input"
)

const (
	commandTimeout = 2 * time.Second

	// Browser wheel deltas are pixels; xdotool scrolls in notches.
	pixelsPerNotch = 100
	maxNotches     = 20
)

// RunFunc executes one command and returns its stdout.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// Xdotool drives an X11 session through the xdotool binary.
type Xdotool struct {
	bin       string
	run       RunFunc
	available bool
}

// NewXdotool probes the display once; a failed probe leaves the sink
// reporting unavailable rather than erroring.
func NewXdotool(bin string, run RunFunc) *Xdotool {
	if bin == "" {
		bin = "xdotool"
	}
	if run == nil {
		run = execRun
	}
	x := &Xdotool{bin: bin, run: run}
	_, err := x.ScreenSize()
	x.available = err == nil
	return x
}

func (x *Xdotool) exec(args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return x.run(ctx, x.bin, args...)
}

func (x *Xdotool) Available() bool { return x.available }

func (x *Xdotool) ScreenSize() (input.Size, error) {
	out, err := x.exec("getdisplaygeometry")
	if err != nil {
		return input.Size{}, err
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return input.Size{}, fmt.Errorf("unexpected display geometry %q", strings.TrimSpace(string(out)))
	}
	w, errW := strconv.Atoi(fields[0])
	h, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil {
		return input.Size{}, fmt.Errorf("unexpected display geometry %q", strings.TrimSpace(string(out)))
	}
	return input.Size{Width: w, Height: h}, nil
}

func (x *Xdotool) Move(px, py int) error {
	_, err := x.exec("mousemove", strconv.Itoa(px), strconv.Itoa(py))
	return err
}

func xButton(b input.Button) string {
	switch b {
	case input.ButtonMiddle:
		return "2"
	case input.ButtonRight:
		return "3"
	default:
		return "1"
	}
}

func (x *Xdotool) ButtonDown(b input.Button) error {
	_, err := x.exec("mousedown", xButton(b))
	return err
}

func (x *Xdotool) ButtonUp(b input.Button) error {
	_, err := x.exec("mouseup", xButton(b))
	return err
}

// Scroll maps positive dy to wheel-down and positive dx to wheel-right.
func (x *Xdotool) Scroll(dx, dy int) error {
	for _, axis := range []struct {
		delta              int
		negative, positive string
	}{
		{dy, "4", "5"},
		{dx, "6", "7"},
	} {
		if axis.delta == 0 {
			continue
		}
		button := axis.positive
		if axis.delta < 0 {
			button = axis.negative
		}
		if _, err := x.exec("click", "--repeat", strconv.Itoa(notches(axis.delta)), button); err != nil {
			return err
		}
	}
	return nil
}

func notches(delta int) int {
	if delta < 0 {
		delta = -delta
	}
	n := delta / pixelsPerNotch
	if n < 1 {
		n = 1
	}
	if n > maxNotches {
		n = maxNotches
	}
	return n
}

func (x *Xdotool) KeyTap(key string, modifiers []string) error {
	parts := make([]string, 0, len(modifiers)+1)
	for _, m := range modifiers {
		parts = append(parts, keysym(m))
	}
	parts = append(parts, keysym(key))
	_, err := x.exec("key", "--clearmodifiers", strings.Join(parts, "+"))
	return err
}

func (x *Xdotool) TypeText(text string) error {
	_, err := x.exec("type", "--clearmodifiers", "--", text)
	return err
}

var keysyms = map[string]string{
	"enter":       "Return",
	"tab":         "Tab",
	"backspace":   "BackSpace",
	"delete":      "Delete",
	"escape":      "Escape",
	"insert":      "Insert",
	"home":        "Home",
	"end":         "End",
	"pageup":      "Prior",
	"pagedown":    "Next",
	"up":          "Up",
	"down":        "Down",
	"left":        "Left",
	"right":       "Right",
	"capslock":    "Caps_Lock",
	"printscreen": "Print",
	"space":       "space",
	"shift":       "shift",
	"control":     "ctrl",
	"alt":         "alt",
	"command":     "super",
	" ":           "space",
	"+":           "plus",
	"-":           "minus",
	"=":           "equal",
	"/":           "slash",
	"\\":          "backslash",
	".":           "period",
	",":           "comma",
	";":           "semicolon",
	"'":           "apostrophe",
	"`":           "grave",
	"[":           "bracketleft",
	"]":           "bracketright",
}

func keysym(key string) string {
	if sym, ok := keysyms[key]; ok {
		return sym
	}
	if len(key) > 1 && key[0] == 'f' {
		if n, err := strconv.Atoi(key[1:]); err == nil && n >= 1 && n <= 24 {
			return "F" + key[1:]
		}
	}
	return key
}
