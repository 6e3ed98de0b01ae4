//go:build linux

package sink

import (
	"log/slog"
	"os"
	"os/exec"

	"screenlink/internal/input"
)

func detect(kind string, logger *slog.Logger) input.Sink {
	path, err := exec.LookPath("xdotool")
	if err != nil {
		logger.Warn("xdotool not found; input injection disabled", "sink", kind)
		return input.Unavailable{}
	}
	if os.Getenv("DISPLAY") == "" {
		logger.Warn("DISPLAY not set; input injection disabled", "sink", kind)
		return input.Unavailable{}
	}
	x := NewXdotool(path, nil)
	if !x.Available() {
		logger.Warn("xdotool cannot reach the display; input injection disabled", "sink", kind)
		return input.Unavailable{}
	}
	return x
}
