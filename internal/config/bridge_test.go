package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadBridgeConfig_Defaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	cfg, err := LoadBridgeConfig("agent", nil, DefaultBridgeConfig(9988), missing)
	if err != nil {
		t.Fatalf("missing default file should be fine: %v", err)
	}
	if diff := cmp.Diff(DefaultBridgeConfig(9988), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadBridgeConfig_FileThenFlags(t *testing.T) {
	path := writeFile(t, `
port: 7000
log_level: debug
sink: none
virtual_display:
  enable: ["vdisplay", "on"]
  disable: ["vdisplay", "off"]
`)
	cfg, err := LoadBridgeConfig("agent", []string{"--config", path, "--port", "7100"}, DefaultBridgeConfig(9988), "")
	if err != nil {
		t.Fatalf("LoadBridgeConfig: %v", err)
	}
	want := DefaultBridgeConfig(7100)
	want.LogLevel = "debug"
	want.Sink = SinkNone
	want.VirtualDisplay = VirtualDisplayConfig{Enable: []string{"vdisplay", "on"}, Disable: []string{"vdisplay", "off"}}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadBridgeConfig_ExplicitMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := LoadBridgeConfig("agent", []string{"--config", missing}, DefaultBridgeConfig(9988), ""); err == nil {
		t.Fatalf("expected error for explicit missing config")
	}
}

func TestLoadBridgeConfig_Invalid(t *testing.T) {
	cases := [][]string{
		{"--port", "70000"},
		{"--sink", "robot"},
		{"--log-level", "loud"},
		{"--bogus"},
	}
	for _, args := range cases {
		if _, err := LoadBridgeConfig("agent", args, DefaultBridgeConfig(9988), ""); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestLoadBridgeConfig_HalfVirtualDisplay(t *testing.T) {
	path := writeFile(t, "virtual_display:\n  enable: [\"on\"]\n")
	if _, err := LoadBridgeConfig("agent", []string{"--config", path}, DefaultBridgeConfig(9988), ""); err == nil {
		t.Fatalf("expected error when only enable is configured")
	}
}
