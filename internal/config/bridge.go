package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"screenlink/internal/logging"
)

// BridgeConfig configures the local bridge processes (loopback agent and
// native-messaging host). It comes from an optional YAML file overlaid
// with command-line flags.
type BridgeConfig struct {
	Port           int                  `yaml:"port" validate:"min=1,max=65535"`
	Bind           string               `yaml:"bind" validate:"required,ip|hostname"`
	LogLevel       string               `yaml:"log_level"`
	LogFormat      string               `yaml:"log_format" validate:"omitempty,oneof=text json"`
	Sink           string               `yaml:"sink" validate:"oneof=auto xdotool none"`
	VirtualDisplay VirtualDisplayConfig `yaml:"virtual_display"`

	ShowVersion bool `yaml:"-"`
}

// VirtualDisplayConfig holds the helper commands (argv) run to create and
// tear down a virtual display. Empty means unsupported.
type VirtualDisplayConfig struct {
	Enable  []string `yaml:"enable"`
	Disable []string `yaml:"disable"`
}

const (
	SinkAuto    = "auto"
	SinkXdotool = "xdotool"
	SinkNone    = "none"
)

func DefaultBridgeConfig(port int) BridgeConfig {
	return BridgeConfig{
		Port:      port,
		Bind:      "127.0.0.1",
		LogLevel:  "info",
		LogFormat: "text",
		Sink:      SinkAuto,
	}
}

// DefaultBridgeConfigPath is where bridges look when --config is not given.
func DefaultBridgeConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "screenlink", "bridge.yaml")
}

// LoadBridgeConfig parses args (without the program name). A file named
// with --config must exist; the default path is optional.
func LoadBridgeConfig(name string, args []string, defaults BridgeConfig, defaultPath string) (BridgeConfig, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	configPath := fs.String("config", defaultPath, "path to YAML config file")
	port := fs.Int("port", defaults.Port, "loopback port to listen on")
	bind := fs.String("bind", defaults.Bind, "address to bind")
	logLevel := fs.String("log-level", defaults.LogLevel, "log level: "+"debug, info, warn, error")
	logFormat := fs.String("log-format", defaults.LogFormat, "log format: text or json")
	sink := fs.String("sink", defaults.Sink, "input sink: auto, xdotool or none")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return BridgeConfig{}, err
	}

	cfg := defaults
	if *configPath != "" {
		err := LoadBridgeFile(*configPath, &cfg)
		switch {
		case errors.Is(err, os.ErrNotExist) && !fs.Changed("config"):
		case err != nil:
			return BridgeConfig{}, err
		}
	}

	if fs.Changed("port") {
		cfg.Port = *port
	}
	if fs.Changed("bind") {
		cfg.Bind = *bind
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = *logFormat
	}
	if fs.Changed("sink") {
		cfg.Sink = *sink
	}
	cfg.ShowVersion = *showVersion

	if err := cfg.Validate(); err != nil {
		return BridgeConfig{}, err
	}
	return cfg, nil
}

// LoadBridgeFile overlays the YAML file at path onto cfg.
func LoadBridgeFile(path string, cfg *BridgeConfig) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("read bridge config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse bridge config: %w", err)
	}
	return nil
}

var validate = validator.New()

func (c BridgeConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid bridge config: %s (%s=%v)", verrs[0].Field(), verrs[0].Tag(), verrs[0].Value())
		}
		return fmt.Errorf("invalid bridge config: %w", err)
	}
	if err := logging.Validate(c.LogLevel); err != nil {
		return err
	}
	if (len(c.VirtualDisplay.Enable) == 0) != (len(c.VirtualDisplay.Disable) == 0) {
		return fmt.Errorf("virtual_display needs both enable and disable commands")
	}
	return nil
}
