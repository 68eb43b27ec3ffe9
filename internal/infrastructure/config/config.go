package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole bridge configuration, read from one YAML file.
type Config struct {
	Accessory AccessoryConfig `yaml:"accessory"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	MiIO      MiIOConfig      `yaml:"miio"`
	HomeKit   HomeKitConfig   `yaml:"homekit"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// AccessoryConfig is the per-instance record handed to the accessory factory.
//
// Only one accessory is served per process.
type AccessoryConfig struct {
	// Type selects the registered accessory factory, e.g. "MiSmartPlug".
	Type         string `yaml:"accessory"`
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	IP           string `yaml:"ip"`
	Token        string `yaml:"token"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`

	// RequestTimeout bounds every device round trip, in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// MiIOConfig configures the relay to the external miIO gateway that owns the
// device wire protocol.
type MiIOConfig struct {
	// TopicPrefix is the root of the gateway request/response topics.
	TopicPrefix string `yaml:"topic_prefix"`

	// Gateway optionally runs the gateway as a supervised child process.
	Gateway GatewayConfig `yaml:"gateway"`
}

// GatewayConfig describes a gateway binary the bridge starts and restarts.
type GatewayConfig struct {
	Managed bool     `yaml:"managed"`
	Binary  string   `yaml:"binary"`
	Args    []string `yaml:"args"`
	// RestartDelay is the first restart backoff, in seconds.
	RestartDelay int `yaml:"restart_delay"`
	// MaxRestarts bounds consecutive failures. 0 means unlimited.
	MaxRestarts int `yaml:"max_restarts"`
}

// HomeKitConfig contains HomeKit accessory server settings.
type HomeKitConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Pin        string `yaml:"pin"`
	StorageDir string `yaml:"storage_dir"`
	Port       int    `yaml:"port"`
}

type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig values are seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig enables the optional time-series sink. FlushInterval is
// in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// HistoryConfig controls state history retention.
type HistoryConfig struct {
	// RetentionDays is how long state changes are kept. 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
	// PruneInterval is how often old rows are removed, in minutes.
	PruneInterval int `yaml:"prune_interval"`
}

type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig sizes are megabytes and ages are days.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

type SecurityConfig struct {
	JWT   JWTConfig   `yaml:"jwt"`
	Admin AdminConfig `yaml:"admin"`
}

type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// AdminConfig holds the single operator account allowed to switch the outlet
// over the HTTP API.
type AdminConfig struct {
	Username string `yaml:"username"`
	// PasswordHash is an argon2id PHC string produced by `miplugbridge hash-password`.
	PasswordHash string `yaml:"password_hash"`
}

// Load reads path over the built-in defaults, applies MIPLUG_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Accessory: AccessoryConfig{
			Type:           "MiSmartPlug",
			ID:             "miplug",
			RequestTimeout: 5,
		},
		Database: DatabaseConfig{
			Path:        "./data/miplug.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "miplug-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		MiIO: MiIOConfig{
			TopicPrefix: "miplug/miio",
			Gateway: GatewayConfig{
				RestartDelay: 1,
			},
		},
		HomeKit: HomeKitConfig{
			Pin:        "00102003",
			StorageDir: "./data/homekit",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		History: HistoryConfig{
			RetentionDays: 30,
			PruneInterval: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./data/miplug.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
			Admin: AdminConfig{
				Username: "admin",
			},
		},
	}
}

// envString and envInt bind MIPLUG_* variables to fields. Unset variables
// and unparsable integers leave the field alone.
func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if n, err := strconv.Atoi(os.Getenv(name)); err == nil {
		*dst = n
	}
}

// applyEnvOverrides layers secrets and deployment-specific addresses from
// the environment over the file.
func applyEnvOverrides(cfg *Config) {
	for name, dst := range map[string]*string{
		"MIPLUG_ACCESSORY_IP":        &cfg.Accessory.IP,
		"MIPLUG_ACCESSORY_TOKEN":     &cfg.Accessory.Token,
		"MIPLUG_DATABASE_PATH":       &cfg.Database.Path,
		"MIPLUG_MQTT_HOST":           &cfg.MQTT.Broker.Host,
		"MIPLUG_MQTT_USERNAME":       &cfg.MQTT.Auth.Username,
		"MIPLUG_MQTT_PASSWORD":       &cfg.MQTT.Auth.Password,
		"MIPLUG_HOMEKIT_PIN":         &cfg.HomeKit.Pin,
		"MIPLUG_API_HOST":            &cfg.API.Host,
		"MIPLUG_INFLUXDB_TOKEN":      &cfg.InfluxDB.Token,
		"MIPLUG_JWT_SECRET":          &cfg.Security.JWT.Secret,
		"MIPLUG_ADMIN_PASSWORD_HASH": &cfg.Security.Admin.PasswordHash,
	} {
		envString(name, dst)
	}
	envInt("MIPLUG_MQTT_PORT", &cfg.MQTT.Broker.Port)
}

// Validate reports every structural problem at once. The accessory ip and
// token are left to the accessory, which starts anyway and refuses device
// access when they are malformed.
func (c *Config) Validate() error {
	var errs []string

	if c.Accessory.Type == "" {
		errs = append(errs, "accessory.accessory is required")
	}
	if c.Accessory.ID == "" {
		errs = append(errs, "accessory.id is required")
	} else if strings.ContainsAny(c.Accessory.ID, "/+#") {
		errs = append(errs, "accessory.id must not contain MQTT topic characters")
	}
	if c.Accessory.RequestTimeout < 1 {
		errs = append(errs, "accessory.request_timeout must be at least 1 second")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.MiIO.Gateway.Managed {
		if c.MiIO.Gateway.Binary == "" {
			errs = append(errs, "miio.gateway.binary is required when the gateway is managed")
		}
		if !c.MQTT.Enabled {
			errs = append(errs, "mqtt must be enabled when the gateway is managed")
		}
	}

	if c.HomeKit.Enabled && len(c.HomeKit.Pin) != 8 {
		errs = append(errs, "homekit.pin must be 8 digits")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set MIPLUG_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if c.History.RetentionDays < 0 {
		errs = append(errs, "history.retention_days must not be negative")
	}

	switch strings.ToLower(c.Logging.Output) {
	case "", "stdout", "stderr":
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required when logging.output is file")
		}
	default:
		errs = append(errs, "logging.output must be stdout, stderr, or file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the device round-trip timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Accessory.RequestTimeout) * time.Second
}

func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetPruneInterval returns the history prune interval as a Duration.
func (c *Config) GetPruneInterval() time.Duration {
	return time.Duration(c.History.PruneInterval) * time.Minute
}

// GetRetention returns how long history rows are kept. Zero means forever.
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}
