//go:build !linux

package sink

import (
	"log/slog"

	"screenlink/internal/input"
)

func detect(kind string, logger *slog.Logger) input.Sink {
	logger.Warn("no input sink for this platform; input injection disabled", "sink", kind)
	return input.Unavailable{}
}
