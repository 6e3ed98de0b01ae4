package sink

import (
	"log/slog"

	"screenlink/internal/config"
	"screenlink/internal/input"
)

// New picks the sink named by kind (see config.Sink*). A missing
// capability degrades to input.Unavailable; it never fails startup.
func New(kind string, logger *slog.Logger) input.Sink {
	if logger == nil {
		logger = slog.Default()
	}
	switch kind {
	case config.SinkNone:
		logger.Info("input injection disabled by config")
		return input.Unavailable{}
	default:
		return detect(kind, logger)
	}
}
