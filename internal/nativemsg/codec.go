// Package nativemsg is the native-messaging bridge: length-prefixed JSON
// over stdio between a browser extension and a local helper process.
//
// Frame: [4-byte little-endian length][UTF-8 JSON body].
package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxHostMessage bounds frames the host writes to the browser.
	MaxHostMessage = 1 << 20
	// MaxBrowserMessage bounds frames the browser writes to the host.
	MaxBrowserMessage = 64 << 20

	headerSize = 4
)

var ErrMessageTooLarge = errors.New("nativemsg: message too large")

// WriteFrame writes data as one frame in a single Write call.
func WriteFrame(w io.Writer, data []byte, limit int) error {
	if len(data) > limit {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrMessageTooLarge, len(data), limit)
	}
	buf := make([]byte, headerSize+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data))) //nolint:gosec // bounded by limit above
	copy(buf[headerSize:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("nativemsg: write: %w", err)
	}
	return nil
}

func WriteJSON(w io.Writer, v any, limit int) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("nativemsg: marshal: %w", err)
	}
	return WriteFrame(w, data, limit)
}

// ReadFrame reads one frame. A stream that ends cleanly between frames
// returns io.EOF; one that ends mid-frame returns io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, limit int) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("nativemsg: read length: %w", err)
	}

	length := binary.LittleEndian.Uint32(header[:])
	if uint64(length) > uint64(limit) {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrMessageTooLarge, length, limit)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("nativemsg: read body: %w", err)
	}
	return data, nil
}
