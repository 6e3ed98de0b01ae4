package input

import "math"

// RawEvent is a browser-style UI event as captured on the controller,
// before normalization. Offsets are pixels within the rendered remote
// surface of SurfaceWidth x SurfaceHeight.
type RawEvent struct {
	Type          string  `json:"type"`
	OffsetX       float64 `json:"offsetX"`
	OffsetY       float64 `json:"offsetY"`
	SurfaceWidth  float64 `json:"surfaceWidth"`
	SurfaceHeight float64 `json:"surfaceHeight"`
	Button        *int    `json:"button,omitempty"`
	DeltaX        float64 `json:"deltaX"`
	DeltaY        float64 `json:"deltaY"`
	Key           string  `json:"key"`
	ShiftKey      bool    `json:"shiftKey"`
	CtrlKey       bool    `json:"ctrlKey"`
	AltKey        bool    `json:"altKey"`
	MetaKey       bool    `json:"metaKey"`
}

// Normalize maps a raw UI event to the canonical schema. ok is false for
// event types the schema does not carry; callers drop those.
func Normalize(raw RawEvent) (ev Event, ok bool) {
	switch raw.Type {
	case "mousemove":
		ev.Type = TypeMouseMove
	case "mousedown":
		ev.Type = TypeMouseDown
	case "mouseup":
		ev.Type = TypeMouseUp
	case "wheel", "scroll":
		ev.Type = TypeScroll
	case "keydown":
		ev.Type = TypeKeyDown
	default:
		return Event{}, false
	}

	switch ev.Type {
	case TypeKeyDown:
		ev.Key = raw.Key
		ev.Modifiers = Modifiers{Shift: raw.ShiftKey, Ctrl: raw.CtrlKey, Alt: raw.AltKey, Meta: raw.MetaKey}
		return ev, true
	case TypeMouseDown, TypeMouseUp:
		if raw.Button != nil {
			b := *raw.Button
			ev.Button = &b
		}
	case TypeScroll:
		ev.DeltaX = raw.DeltaX
		ev.DeltaY = raw.DeltaY
	}

	// A zero-sized surface has no meaningful fraction; leave the
	// position out so the bridge falls back to its cached one.
	if raw.SurfaceWidth > 0 && raw.SurfaceHeight > 0 {
		x := clampUnit(raw.OffsetX / raw.SurfaceWidth)
		y := clampUnit(raw.OffsetY / raw.SurfaceHeight)
		ev.X, ev.Y = &x, &y
	}
	return ev, true
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
