package input

import "errors"

// ErrSinkUnavailable is returned when the host has no input capability.
var ErrSinkUnavailable = errors.New("input sink unavailable")

type Button int

const (
	ButtonLeft   Button = 0
	ButtonMiddle Button = 1
	ButtonRight  Button = 2
)

// ButtonFromWire maps the wire integer; absent or unknown means left.
func ButtonFromWire(b *int) Button {
	if b == nil {
		return ButtonLeft
	}
	switch Button(*b) {
	case ButtonMiddle:
		return ButtonMiddle
	case ButtonRight:
		return ButtonRight
	default:
		return ButtonLeft
	}
}

func (b Button) String() string {
	switch b {
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return "left"
	}
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Sink is the OS-level input injection capability. Coordinates are
// absolute pixels; key names are the lowercase vocabulary produced by
// the key map (e.g. "enter", "up", "f5", "a").
type Sink interface {
	Available() bool
	ScreenSize() (Size, error)
	Move(x, y int) error
	ButtonDown(b Button) error
	ButtonUp(b Button) error
	Scroll(dx, dy int) error
	KeyTap(key string, modifiers []string) error
	TypeText(text string) error
}

// Unavailable is the sink used when no capability could be found. Every
// call fails with ErrSinkUnavailable.
type Unavailable struct{}

func (Unavailable) Available() bool               { return false }
func (Unavailable) ScreenSize() (Size, error)     { return Size{}, ErrSinkUnavailable }
func (Unavailable) Move(int, int) error           { return ErrSinkUnavailable }
func (Unavailable) ButtonDown(Button) error       { return ErrSinkUnavailable }
func (Unavailable) ButtonUp(Button) error         { return ErrSinkUnavailable }
func (Unavailable) Scroll(int, int) error         { return ErrSinkUnavailable }
func (Unavailable) KeyTap(string, []string) error { return ErrSinkUnavailable }
func (Unavailable) TypeText(string) error         { return ErrSinkUnavailable }
