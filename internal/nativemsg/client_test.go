package nativemsg

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"screenlink/internal/bridge"
	"screenlink/internal/input"
	"screenlink/internal/input/inputtest"
	"screenlink/internal/logging"
)

// TestHelperProcess is the native host launched by the client tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("NATIVEMSG_HELPER") != "1" {
		return
	}
	in := io.Reader(os.Stdin)
	if os.Getenv("NATIVEMSG_HELPER_ONESHOT") == "1" {
		// Serve exactly one request, then drop the pipe.
		pr, pw := io.Pipe()
		go func() {
			if data, err := ReadFrame(os.Stdin, MaxBrowserMessage); err == nil {
				_ = WriteFrame(pw, data, MaxBrowserMessage)
			}
			_ = pw.Close()
		}()
		in = pr
	}
	host := NewHost(bridge.NewHost(inputtest.NewRecorder(100, 100), nil), in, os.Stdout, logging.Discard())
	_ = host.Run(context.Background())
	os.Exit(0)
}

func helperArgv() []string {
	return []string{os.Args[0], "-test.run=^TestHelperProcess$"}
}

func TestClient_ForwardAndResult(t *testing.T) {
	var readies atomic.Int32
	results := make(chan struct {
		id  string
		res input.Result
	}, 4)
	c := NewClient(helperArgv(), ClientOptions{
		Env:     []string{"NATIVEMSG_HELPER=1"},
		Stderr:  io.Discard,
		Backoff: 20 * time.Millisecond,
		Logger:  logging.Discard(),
		OnReady: func(bridge.ReadyInfo) { readies.Add(1) },
		OnResult: func(id string, res input.Result) {
			results <- struct {
				id  string
				res input.Result
			}{id, res}
		},
	})

	_, err := c.Forward(input.MoveTo(0.5, 0.5))
	assert.ErrorIs(t, err, bridge.ErrNotReady)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool { return c.State() == bridge.Ready }, 5*time.Second, 10*time.Millisecond)

	id, err := c.Forward(input.MoveTo(0.5, 0.5))
	require.NoError(t, err)
	select {
	case r := <-results:
		assert.Equal(t, id, r.id)
		assert.True(t, r.res.Success, r.res.Error)
	case <-time.After(5 * time.Second):
		t.Fatalf("no response from host")
	}
	assert.Equal(t, int32(1), readies.Load())
}

func TestClient_RespawnsHost(t *testing.T) {
	var readies atomic.Int32
	c := NewClient(helperArgv(), ClientOptions{
		Env:     []string{"NATIVEMSG_HELPER=1", "NATIVEMSG_HELPER_ONESHOT=1"},
		Stderr:  io.Discard,
		Backoff: 20 * time.Millisecond,
		Logger:  logging.Discard(),
		OnReady: func(bridge.ReadyInfo) { readies.Add(1) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool { return c.State() == bridge.Ready }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Ping())

	require.Eventually(t, func() bool { return readies.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
}
