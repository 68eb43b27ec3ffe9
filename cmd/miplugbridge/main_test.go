package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/miplug-bridge/internal/accessory"
	"github.com/nerrad567/miplug-bridge/internal/auth"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/config"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/miplug-bridge/internal/outlet"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("MIPLUG_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_Standalone starts with every network surface disabled and stops on
// cancellation.
func TestRun_Standalone(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
accessory:
  accessory: MiSmartPlug
  id: desk-lamp
  name: Desk Lamp
  ip: 192.168.1.40
  token: 0123456789abcdef0123456789abcdef
database:
  path: ` + filepath.Join(tmpDir, "miplug.db") + `
mqtt:
  enabled: false
api:
  enabled: false
homekit:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MIPLUG_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "miplug.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("MIPLUG_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("MIPLUG_CONFIG", "/etc/miplug/config.yaml")
	if got := getConfigPath(); got != "/etc/miplug/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
}

func TestBuildAccessory(t *testing.T) {
	cfg := &config.Config{
		Accessory: config.AccessoryConfig{
			Type:           outlet.TypeName,
			ID:             "desk-lamp",
			Name:           "Desk Lamp",
			IP:             "192.168.1.40",
			Token:          "0123456789abcdef0123456789abcdef",
			RequestTimeout: 1,
		},
		MiIO: config.MiIOConfig{TopicPrefix: "miplug/miio"},
	}

	plug, err := buildAccessory(cfg, nil, testLogger())
	if err != nil {
		t.Fatalf("buildAccessory() error = %v", err)
	}
	if len(plug.Services()) != 2 {
		t.Errorf("services = %d, want 2", len(plug.Services()))
	}

	// Without MQTT the relay has no gateway, so device access fails.
	_, err = accessory.Write(context.Background(), plug, accessory.Switch, accessory.On, true)
	if !errors.Is(err, outlet.ErrDeviceCommunication) {
		t.Errorf("Write() error = %v, want ErrDeviceCommunication", err)
	}

	cfg.Accessory.Type = "Unknown"
	if _, err := buildAccessory(cfg, nil, testLogger()); !errors.Is(err, accessory.ErrUnknownType) {
		t.Errorf("unknown type error = %v, want ErrUnknownType", err)
	}
}

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	if err := hashPassword(strings.NewReader("s3cret pass\n"), &out); err != nil {
		t.Fatalf("hashPassword() error = %v", err)
	}

	hash := strings.TrimSpace(out.String())
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash = %q, want argon2id PHC string", hash)
	}
	ok, err := auth.VerifyPassword("s3cret pass", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword() = %v, %v; want true, nil", ok, err)
	}

	if err := hashPassword(strings.NewReader("\n"), &out); err == nil {
		t.Error("empty password should fail")
	}
}
