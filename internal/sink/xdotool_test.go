package sink

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"screenlink/internal/config"
	"screenlink/internal/input"
	"screenlink/internal/logging"
)

type fakeRunner struct {
	mu       sync.Mutex
	argv     []string
	geometry string
	err      error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(args) > 0 && args[0] == "getdisplaygeometry" {
		return []byte(f.geometry), nil
	}
	f.argv = append(f.argv, name+" "+strings.Join(args, " "))
	return nil, nil
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.argv...)
}

func TestXdotool_Commands(t *testing.T) {
	r := &fakeRunner{geometry: "2560 1440\n"}
	x := NewXdotool("xdotool", r.run)
	require.True(t, x.Available())

	size, err := x.ScreenSize()
	require.NoError(t, err)
	assert.Equal(t, input.Size{Width: 2560, Height: 1440}, size)

	require.NoError(t, x.Move(10, 20))
	require.NoError(t, x.ButtonDown(input.ButtonRight))
	require.NoError(t, x.ButtonUp(input.ButtonMiddle))
	require.NoError(t, x.Scroll(0, 250))
	require.NoError(t, x.Scroll(-30, 0))
	require.NoError(t, x.KeyTap("a", []string{"shift", "command"}))
	require.NoError(t, x.KeyTap("enter", nil))
	require.NoError(t, x.KeyTap("f11", []string{"control"}))
	require.NoError(t, x.TypeText("héllo"))

	assert.Equal(t, []string{
		"xdotool mousemove 10 20",
		"xdotool mousedown 3",
		"xdotool mouseup 2",
		"xdotool click --repeat 2 5",
		"xdotool click --repeat 1 6",
		"xdotool key --clearmodifiers shift+super+a",
		"xdotool key --clearmodifiers Return",
		"xdotool key --clearmodifiers ctrl+F11",
		"xdotool type --clearmodifiers -- héllo",
	}, r.commands())
}

func TestXdotool_UnavailableWhenProbeFails(t *testing.T) {
	r := &fakeRunner{err: errors.New("cannot open display")}
	x := NewXdotool("", r.run)
	assert.False(t, x.Available())
	assert.Error(t, x.Move(1, 1))
}

func TestXdotool_BadGeometry(t *testing.T) {
	r := &fakeRunner{geometry: "garbage"}
	x := NewXdotool("", r.run)
	assert.False(t, x.Available())
}

func TestNew_None(t *testing.T) {
	s := New(config.SinkNone, logging.Discard())
	assert.False(t, s.Available())
	assert.ErrorIs(t, s.Move(0, 0), input.ErrSinkUnavailable)
}

func TestNotches(t *testing.T) {
	assert.Equal(t, 1, notches(3))
	assert.Equal(t, 1, notches(-120))
	assert.Equal(t, 2, notches(200))
	assert.Equal(t, maxNotches, notches(1_000_000))
}
