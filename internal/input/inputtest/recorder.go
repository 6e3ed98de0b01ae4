// Package inputtest provides a recording input.Sink for bridge tests.
package inputtest

import (
	"fmt"
	"strings"
	"sync"

	"screenlink/internal/input"
)

// Call is one recorded sink invocation, e.g. {"move", "960,540"}.
type Call struct {
	Op   string
	Args string
}

// Recorder records every call. Set Err to make every call fail.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	Size input.Size
	Err  error
}

func NewRecorder(width, height int) *Recorder {
	return &Recorder{Size: input.Size{Width: width, Height: height}}
}

func (r *Recorder) record(op string, format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Args: fmt.Sprintf(format, args...)})
	return r.Err
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *Recorder) Available() bool { return r.Err == nil }

func (r *Recorder) ScreenSize() (input.Size, error) {
	if r.Err != nil {
		return input.Size{}, r.Err
	}
	return r.Size, nil
}

func (r *Recorder) Move(x, y int) error { return r.record("move", "%d,%d", x, y) }

func (r *Recorder) ButtonDown(b input.Button) error { return r.record("down", "%s", b) }

func (r *Recorder) ButtonUp(b input.Button) error { return r.record("up", "%s", b) }

func (r *Recorder) Scroll(dx, dy int) error { return r.record("scroll", "%d,%d", dx, dy) }

func (r *Recorder) KeyTap(key string, modifiers []string) error {
	if len(modifiers) == 0 {
		return r.record("tap", "%s", key)
	}
	return r.record("tap", "%s+%s", strings.Join(modifiers, "+"), key)
}

func (r *Recorder) TypeText(text string) error { return r.record("type", "%s", text) }
