package bridge

import (
	"context"
	"log/slog"
	"time"
)

// DefaultBackoff is the fixed delay between reconnection attempts.
const DefaultBackoff = 3 * time.Second

// Session is one connection attempt. It calls ready once the link is
// usable and blocks until the link drops or ctx is cancelled.
type Session func(ctx context.Context, ready func()) error

// Reconnect runs session until ctx is cancelled, waiting backoff between
// attempts whatever the outcome.
func Reconnect(ctx context.Context, sm *StateMachine, backoff time.Duration, logger *slog.Logger, session Session) {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	for {
		sm.Set(Connecting)
		err := session(ctx, func() { sm.Set(Ready) })
		sm.Set(Disconnected)

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Debug("bridge connection ended", "err", err, "retry_in", backoff)
		} else {
			logger.Debug("bridge connection closed", "retry_in", backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
