package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"screenlink/internal/bridge"
	"screenlink/internal/config"
	"screenlink/internal/logging"
	"screenlink/internal/nativemsg"
	"screenlink/internal/sink"
	"screenlink/internal/vdisplay"
	"screenlink/internal/version"
)

func main() {
	cfg, err := config.LoadBridgeConfig("native-host", browserArgsStripped(os.Args[1:]), config.DefaultBridgeConfig(1), config.DefaultBridgeConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}
	if cfg.ShowVersion {
		fmt.Println(version.Version)
		return
	}

	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		fmt.Fprintln(os.Stderr, "native-host is started by the browser; stdin must not be a terminal")
		os.Exit(2)
	}

	// stdout carries frames, so logs always go to stderr.
	logger, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(2)
	}

	host := bridge.NewHost(
		sink.New(cfg.Sink, logger),
		vdisplay.New(cfg.VirtualDisplay.Enable, cfg.VirtualDisplay.Disable),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("native host started", "robot", host.Dispatcher.Available(), "version", version.Version)
	if err := nativemsg.NewHost(host, os.Stdin, os.Stdout, logger).Run(ctx); err != nil {
		logger.Error("native host error", "err", err)
		os.Exit(1)
	}
}

// browserArgsStripped drops what the browser appends when it launches a
// host: the caller origin and, on Windows, --parent-window.
func browserArgsStripped(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if strings.HasPrefix(a, "chrome-extension://") || strings.HasPrefix(a, "--parent-window=") {
			continue
		}
		out = append(out, a)
	}
	return out
}
