package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"screenlink/internal/agent"
	"screenlink/internal/bridge"
	"screenlink/internal/config"
	"screenlink/internal/logging"
	"screenlink/internal/sink"
	"screenlink/internal/vdisplay"
	"screenlink/internal/version"
)

func main() {
	cfg, err := config.LoadBridgeConfig("agent", os.Args[1:], config.DefaultBridgeConfig(agent.DefaultPort), config.DefaultBridgeConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}
	if cfg.ShowVersion {
		fmt.Println(version.Version)
		return
	}

	logger, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(2)
	}
	gin.SetMode(gin.ReleaseMode)

	host := bridge.NewHost(
		sink.New(cfg.Sink, logger),
		vdisplay.New(cfg.VirtualDisplay.Enable, cfg.VirtualDisplay.Disable),
	)

	addr := net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port))
	ln, err := agent.Listen(addr)
	if err != nil {
		logger.Error("cannot start agent", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("agent listening",
		"addr", ln.Addr().String(),
		"robot", host.Dispatcher.Available(),
		"virtual_display", host.Display.Supported(),
		"version", version.Version,
	)
	if err := agent.NewServer(host, logger).Serve(ctx, ln); err != nil {
		logger.Error("agent error", "err", err)
		os.Exit(1)
	}
	logger.Info("agent stopped")
}
