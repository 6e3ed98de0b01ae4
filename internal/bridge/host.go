package bridge

import (
	"context"
	"runtime"

	"screenlink/internal/input"
	"screenlink/internal/vdisplay"
	"screenlink/internal/version"
)

// Host is the sink side every bridge adapts to its wire format.
type Host struct {
	Dispatcher *input.Dispatcher
	Display    vdisplay.Controller
	Version    string
	Platform   string
}

func NewHost(sink input.Sink, display vdisplay.Controller) *Host {
	if display == nil {
		display = vdisplay.Unsupported{}
	}
	return &Host{
		Dispatcher: input.NewDispatcher(sink),
		Display:    display,
		Version:    version.Version,
		Platform:   runtime.GOOS,
	}
}

type VirtualDisplayInfo struct {
	Supported bool `json:"supported"`
	Enabled   bool `json:"enabled"`
}

// Info is the capability summary sent in ready and info messages.
type Info struct {
	Version        string             `json:"version"`
	Platform       string             `json:"platform"`
	RobotAvailable bool               `json:"robotAvailable"`
	Screen         *input.Size        `json:"screen,omitempty"`
	VirtualDisplay VirtualDisplayInfo `json:"virtualDisplay"`
}

// ReadyInfo is the short form announced on connect.
type ReadyInfo struct {
	Version        string `json:"version"`
	Platform       string `json:"platform"`
	RobotAvailable bool   `json:"robotAvailable"`
}

func (h *Host) Ready() ReadyInfo {
	return ReadyInfo{Version: h.Version, Platform: h.Platform, RobotAvailable: h.Dispatcher.Available()}
}

func (h *Host) Info() Info {
	info := Info{
		Version:        h.Version,
		Platform:       h.Platform,
		RobotAvailable: h.Dispatcher.Available(),
		VirtualDisplay: VirtualDisplayInfo{Supported: h.Display.Supported(), Enabled: h.Display.Enabled()},
	}
	if size, err := h.Dispatcher.ScreenSize(); err == nil {
		info.Screen = &size
	}
	return info
}

func (h *Host) Forward(ev input.Event) input.Result { return h.Dispatcher.Forward(ev) }

func (h *Host) ToggleVirtualDisplay(ctx context.Context, enabled bool) vdisplay.Result {
	return vdisplay.Toggle(ctx, h.Display, enabled)
}
