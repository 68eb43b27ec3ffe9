package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
accessory:
  accessory: "MiSmartPlug"
  name: "Desk Lamp"
  ip: "192.168.1.40"
  token: "0123456789abcdef0123456789abcdef"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
api:
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Accessory.Name != "Desk Lamp" {
		t.Errorf("Accessory.Name = %q, want %q", cfg.Accessory.Name, "Desk Lamp")
	}
	if cfg.Accessory.IP != "192.168.1.40" {
		t.Errorf("Accessory.IP = %q, want %q", cfg.Accessory.IP, "192.168.1.40")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}

	// Defaults survive a partial file.
	if cfg.Accessory.ID != "miplug" {
		t.Errorf("Accessory.ID = %q, want default %q", cfg.Accessory.ID, "miplug")
	}
	if cfg.GetRequestTimeout() != 5*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 5s", cfg.GetRequestTimeout())
	}
}

func TestLoad_MalformedIdentityStillLoads(t *testing.T) {
	content := `
accessory:
  name: "Broken"
  ip: "not-an-ip"
  token: "short"
api:
  enabled: false
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Accessory.IP != "not-an-ip" {
		t.Errorf("Accessory.IP = %q, want %q", cfg.Accessory.IP, "not-an-ip")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
accessory:
  id: ""
api:
  port: 8080
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty accessory.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing accessory type",
			mutate:  func(c *Config) { c.Accessory.Type = "" },
			wantErr: "accessory.accessory",
		},
		{
			name:    "topic wildcard in id",
			mutate:  func(c *Config) { c.Accessory.ID = "plug/#" },
			wantErr: "accessory.id",
		},
		{
			name:    "zero request timeout",
			mutate:  func(c *Config) { c.Accessory.RequestTimeout = 0 },
			wantErr: "request_timeout",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "managed gateway without binary",
			mutate:  func(c *Config) { c.MiIO.Gateway.Managed = true },
			wantErr: "miio.gateway.binary",
		},
		{
			name: "managed gateway without mqtt",
			mutate: func(c *Config) {
				c.MiIO.Gateway.Managed = true
				c.MiIO.Gateway.Binary = "/usr/local/bin/miio-gateway"
				c.MQTT.Enabled = false
			},
			wantErr: "mqtt must be enabled",
		},
		{
			name: "managed gateway",
			mutate: func(c *Config) {
				c.MiIO.Gateway.Managed = true
				c.MiIO.Gateway.Binary = "/usr/local/bin/miio-gateway"
			},
		},
		{
			name: "short homekit pin",
			mutate: func(c *Config) {
				c.HomeKit.Enabled = true
				c.HomeKit.Pin = "1234"
			},
			wantErr: "homekit.pin",
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "missing JWT secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "security.jwt.secret is required",
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name: "JWT secret not needed without API",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.Security.JWT.Secret = ""
			},
		},
		{
			name:    "unknown log output",
			mutate:  func(c *Config) { c.Logging.Output = "syslog" },
			wantErr: "logging.output",
		},
		{
			name: "file output without path",
			mutate: func(c *Config) {
				c.Logging.Output = "file"
				c.Logging.File.Path = ""
			},
			wantErr: "logging.file.path",
		},
		{
			name: "identity format is not checked",
			mutate: func(c *Config) {
				c.Accessory.IP = "999.1.1.1"
				c.Accessory.Token = "nope"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = testJWTSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Path = ""
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	for _, want := range []string{"database.path", "mqtt.qos", "security.jwt.secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %q", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Accessory: AccessoryConfig{RequestTimeout: 3},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		History: HistoryConfig{RetentionDays: 2, PruneInterval: 15},
	}

	if got := cfg.GetRequestTimeout(); got != 3*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 3s", got)
	}
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetPruneInterval(); got != 15*time.Minute {
		t.Errorf("GetPruneInterval() = %v, want 15m", got)
	}
	if got := cfg.GetRetention(); got != 48*time.Hour {
		t.Errorf("GetRetention() = %v, want 48h", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("MIPLUG_ACCESSORY_IP", "10.0.0.9")
	t.Setenv("MIPLUG_ACCESSORY_TOKEN", "ffffffffffffffffffffffffffffffff")
	t.Setenv("MIPLUG_DATABASE_PATH", "/custom/path.db")
	t.Setenv("MIPLUG_MQTT_HOST", "mqtt.example.com")
	t.Setenv("MIPLUG_MQTT_PORT", "8883")
	t.Setenv("MIPLUG_MQTT_USERNAME", "testuser")
	t.Setenv("MIPLUG_MQTT_PASSWORD", "testpass")
	t.Setenv("MIPLUG_HOMEKIT_PIN", "11122333")
	t.Setenv("MIPLUG_API_HOST", "192.168.1.1")
	t.Setenv("MIPLUG_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("MIPLUG_JWT_SECRET", "jwt-secret")
	t.Setenv("MIPLUG_ADMIN_PASSWORD_HASH", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Accessory.IP", cfg.Accessory.IP, "10.0.0.9"},
		{"Accessory.Token", cfg.Accessory.Token, "ffffffffffffffffffffffffffffffff"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"HomeKit.Pin", cfg.HomeKit.Pin, "11122333"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
		{"Security.Admin.PasswordHash", cfg.Security.Admin.PasswordHash, "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}

	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("MIPLUG_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Accessory.Type != "MiSmartPlug" {
		t.Errorf("defaultConfig Accessory.Type = %q, want MiSmartPlug", cfg.Accessory.Type)
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.HomeKit.Enabled {
		t.Error("defaultConfig should not enable HomeKit")
	}
}
