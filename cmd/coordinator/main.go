package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"screenlink/internal/auth"
	"screenlink/internal/config"
	"screenlink/internal/coordinator"
	"screenlink/internal/logging"
	"screenlink/internal/metrics"
	"screenlink/internal/middleware"
	"screenlink/internal/server"
	"screenlink/internal/version"
)

func main() {
	mintFor := pflag.String("mint-admin-token", "", "print an admin token for the named operator and exit")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	tokenCfg := auth.TokenConfig{
		Secret: cfg.AdminSecret,
		Expiry: cfg.AdminTokenExpiry,
		Issuer: auth.DefaultIssuer,
	}

	if *mintFor != "" {
		tok, err := auth.CreateAdminToken(*mintFor, tokenCfg)
		if err != nil {
			slog.Error("mint admin token", "err", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	gin.SetMode(cfg.GinMode)

	verifyLimiter := middleware.NewRateLimiter(cfg.VerifyAttemptsPerMinute, time.Minute)
	defer verifyLimiter.Close()
	connectLimiter := middleware.NewRateLimiter(cfg.ConnectsPerMinute, time.Minute)
	defer connectLimiter.Close()

	coord := coordinator.New(coordinator.Options{
		CodeTTL:            cfg.PairingCodeTTL,
		MaxCodesPerSession: cfg.MaxCodesPerSession,
		VerifyLimiter:      verifyLimiter,
		Metrics:            metrics.New(),
		Logger:             logger,
	})

	router := server.NewRouter(server.Deps{
		Coordinator:    coord,
		TokenConfig:    tokenCfg,
		ConnectLimiter: connectLimiter,
		QueueSize:      cfg.SendQueueSize,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("coordinator listening",
		"addr", fmt.Sprintf(":%d", cfg.Port),
		"tls", cfg.TLSCertFile != "",
		"admin", cfg.AdminSecret != "",
		"version", version.Version,
	)
	if err := server.Run(ctx, cfg, router); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("coordinator stopped")
}
