package nativemsg

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"screenlink/internal/bridge"
	"screenlink/internal/input"
)

// Host serves one browser pipe. stdout belongs to the protocol; log to
// stderr only.
type Host struct {
	bridge *bridge.Host
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

func NewHost(b *bridge.Host, in io.Reader, out io.Writer, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{bridge: b, in: in, out: out, logger: logger}
}

type frame struct {
	data []byte
	err  error
}

// Run announces ready and serves requests until the browser closes the
// pipe (nil), the stream breaks (error) or ctx is cancelled (nil). A
// read blocked on the pipe does not delay cancellation.
func (h *Host) Run(ctx context.Context) error {
	if err := h.reply(readyReply(h.bridge.Ready())); err != nil {
		return err
	}

	frames := make(chan frame)
	stop := make(chan struct{})
	defer close(stop)
	go h.readLoop(frames, stop)

	for {
		var f frame
		select {
		case <-ctx.Done():
			h.logger.Info("native host stopping", "reason", ctx.Err())
			return nil
		case f = <-frames:
		}
		if errors.Is(f.err, io.EOF) {
			h.logger.Info("browser closed the pipe")
			return nil
		}
		if f.err != nil {
			return f.err
		}

		var req Request
		if err := json.Unmarshal(f.data, &req); err != nil {
			h.logger.Warn("native host: malformed message", "err", err)
			continue
		}
		if err := h.handle(req); err != nil {
			return err
		}
	}
}

// readLoop feeds frames to Run until a read fails or Run has returned.
func (h *Host) readLoop(frames chan<- frame, stop <-chan struct{}) {
	for {
		data, err := ReadFrame(h.in, MaxBrowserMessage)
		select {
		case frames <- frame{data: data, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (h *Host) handle(req Request) error {
	switch req.Type {
	case TypeInput:
		var ev input.Event
		if err := json.Unmarshal(req.Payload, &ev); err != nil {
			return h.reply(responseReply(req.ID, false, "invalid input payload: "+err.Error()))
		}
		res := h.bridge.Forward(ev)
		return h.reply(responseReply(req.ID, res.Success, res.Error))
	case TypePing:
		return h.reply(Reply{Type: TypePong, ID: req.ID})
	default:
		h.logger.Debug("native host: unknown message type", "type", req.Type)
		return nil
	}
}

func (h *Host) reply(r Reply) error {
	return WriteJSON(h.out, r, MaxHostMessage)
}
