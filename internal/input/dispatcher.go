package input

import (
	"fmt"
	"math"
	"sync"
)

// Dispatcher applies canonical events to a Sink. Each bridge owns one,
// so the last-position cache is per bridge. Safe for concurrent use;
// events are applied one at a time in arrival order.
type Dispatcher struct {
	mu   sync.Mutex
	sink Sink
	last *point
}

type point struct{ x, y int }

func NewDispatcher(sink Sink) *Dispatcher {
	if sink == nil {
		sink = Unavailable{}
	}
	return &Dispatcher{sink: sink}
}

// Available reports whether the sink can inject input.
func (d *Dispatcher) Available() bool { return d.sink.Available() }

// ScreenSize asks the sink for the current target size.
func (d *Dispatcher) ScreenSize() (Size, error) { return d.sink.ScreenSize() }

// LastPosition returns the pixel position this dispatcher last moved to.
func (d *Dispatcher) LastPosition() (x, y int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return 0, 0, false
	}
	return d.last.x, d.last.y, true
}

// Forward applies ev. Unknown types succeed without touching the sink;
// sink failures come back as a failed Result.
func (d *Dispatcher) Forward(ev Event) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.apply(ev); err != nil {
		return Failed(err)
	}
	return OK()
}

func (d *Dispatcher) apply(ev Event) error {
	switch ev.Type {
	case TypeMouseMove:
		if !ev.HasPosition() {
			return fmt.Errorf("mousemove requires x and y")
		}
		return d.moveTo(*ev.X, *ev.Y)

	case TypeMouseDown, TypeMouseUp:
		if err := d.position(ev); err != nil {
			return err
		}
		button := ButtonFromWire(ev.Button)
		if ev.Type == TypeMouseDown {
			return d.sink.ButtonDown(button)
		}
		return d.sink.ButtonUp(button)

	case TypeScroll:
		if ev.HasPosition() {
			if err := d.moveTo(*ev.X, *ev.Y); err != nil {
				return err
			}
		}
		return d.sink.Scroll(roundInt(ev.DeltaX), roundInt(ev.DeltaY))

	case TypeKeyDown:
		return d.key(ev.Key, ev.Modifiers)

	default:
		return nil
	}
}

// position moves to the event's coordinates or, without them, back to
// the cached position. With neither, the click lands wherever the
// pointer already is.
func (d *Dispatcher) position(ev Event) error {
	if ev.HasPosition() {
		return d.moveTo(*ev.X, *ev.Y)
	}
	if d.last != nil {
		return d.sink.Move(d.last.x, d.last.y)
	}
	return nil
}

func (d *Dispatcher) moveTo(fx, fy float64) error {
	size, err := d.sink.ScreenSize()
	if err != nil {
		return err
	}
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("sink reported invalid screen size %dx%d", size.Width, size.Height)
	}
	x := roundInt(clampUnit(fx) * float64(size.Width))
	y := roundInt(clampUnit(fy) * float64(size.Height))
	if err := d.sink.Move(x, y); err != nil {
		return err
	}
	d.last = &point{x: x, y: y}
	return nil
}

func (d *Dispatcher) key(key string, mods Modifiers) error {
	if key == "" {
		return fmt.Errorf("keydown requires key")
	}
	mapped, known := MapKey(key)
	if mods.Any() {
		return d.sink.KeyTap(mapped, mods.Names())
	}
	if !known && isSingleChar(key) {
		return d.sink.TypeText(key)
	}
	return d.sink.KeyTap(mapped, nil)
}

func roundInt(v float64) int { return int(math.Round(v)) }
