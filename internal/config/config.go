package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"screenlink/internal/logging"
)

// Config is the coordinator's runtime configuration, read from the
// environment.
type Config struct {
	Port        int
	GinMode     string
	TLSCertFile string
	TLSKeyFile  string

	// AdminSecret enables /v1/admin/* when non-empty.
	AdminSecret      string
	AdminTokenExpiry time.Duration

	LogLevel  string
	LogFormat string

	PairingCodeTTL          time.Duration
	MaxCodesPerSession      int
	VerifyAttemptsPerMinute int
	ConnectsPerMinute       int
	SendQueueSize           int
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:                    8080,
		GinMode:                 "release",
		AdminTokenExpiry:        time.Hour,
		LogLevel:                "info",
		LogFormat:               "text",
		PairingCodeTTL:          10 * time.Minute,
		VerifyAttemptsPerMinute: 10,
		ConnectsPerMinute:       60,
		SendQueueSize:           256,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return Config{}, fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	cfg.AdminSecret = env.Getenv("ADMIN_SECRET")
	if raw := env.Getenv("ADMIN_TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid ADMIN_TOKEN_EXPIRY_SECONDS")
		}
		cfg.AdminTokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		if err := logging.Validate(raw); err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = raw
	}
	if raw := env.Getenv("LOG_FORMAT"); raw != "" {
		if raw != "text" && raw != "json" {
			return Config{}, fmt.Errorf("invalid LOG_FORMAT")
		}
		cfg.LogFormat = raw
	}

	if raw := env.Getenv("PAIRING_CODE_TTL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid PAIRING_CODE_TTL_SECONDS")
		}
		cfg.PairingCodeTTL = time.Duration(seconds) * time.Second
	}

	var err error
	if cfg.MaxCodesPerSession, err = nonNegative(env, "PAIRING_MAX_CODES_PER_SESSION", 0); err != nil {
		return Config{}, err
	}
	if cfg.VerifyAttemptsPerMinute, err = nonNegative(env, "VERIFY_ATTEMPTS_PER_MINUTE", cfg.VerifyAttemptsPerMinute); err != nil {
		return Config{}, err
	}
	if cfg.ConnectsPerMinute, err = nonNegative(env, "CONNECTS_PER_MINUTE", cfg.ConnectsPerMinute); err != nil {
		return Config{}, err
	}
	if cfg.SendQueueSize, err = nonNegative(env, "SEND_QUEUE_SIZE", cfg.SendQueueSize); err != nil {
		return Config{}, err
	}
	if cfg.SendQueueSize == 0 {
		return Config{}, fmt.Errorf("invalid SEND_QUEUE_SIZE")
	}

	return cfg, nil
}

func nonNegative(env Env, key string, def int) (int, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
