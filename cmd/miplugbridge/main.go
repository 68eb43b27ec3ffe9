// miplug-bridge exposes one Xiaomi smart plug to a home-automation host.
//
// The plug is reachable as a HomeKit outlet, over MQTT command and state
// topics, and through a small HTTP API. Every power transition is recorded
// in SQLite and optionally mirrored to InfluxDB.
//
// Usage:
//
//	miplugbridge                 run the bridge
//	miplugbridge hash-password   read a password on stdin, print its argon2id hash
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/miplug-bridge/internal/accessory"
	"github.com/nerrad567/miplug-bridge/internal/api"
	"github.com/nerrad567/miplug-bridge/internal/auth"
	"github.com/nerrad567/miplug-bridge/internal/bridge"
	"github.com/nerrad567/miplug-bridge/internal/history"
	"github.com/nerrad567/miplug-bridge/internal/homekit"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/config"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/database"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/miplug-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/miplug-bridge/internal/miio"
	"github.com/nerrad567/miplug-bridge/internal/outlet"
	"github.com/nerrad567/miplug-bridge/internal/process"
	"github.com/nerrad567/miplug-bridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
// Deferred closes run in reverse order of construction.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup sequence
	log := logging.Default()
	log.Info("starting miplug-bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Best-effort flush on exit
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	checks := map[string]api.HealthCheck{"database": db.HealthCheck}

	// The gateway relay and the MQTT bridge both need a broker. Without one
	// the accessory still starts but every device call fails.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		checks["mqtt"] = mqttClient.HealthCheck
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Warn("MQTT disabled, device calls will fail")
	}

	if cfg.MiIO.Gateway.Managed {
		gateway := newGatewaySupervisor(cfg, log.With("component", "gateway"))
		gatewayCtx, stopGateway := context.WithCancel(ctx)
		gatewayDone := make(chan struct{})
		go func() {
			defer close(gatewayDone)
			if runErr := gateway.Run(gatewayCtx); runErr != nil {
				log.Error("miIO gateway stopped", "error", runErr)
			}
		}()
		// The child exits before the MQTT connection closes.
		defer func() {
			stopGateway()
			<-gatewayDone
		}()
		checks["gateway"] = gateway.HealthCheck
	}

	plug, err := buildAccessory(cfg, mqttClient, log)
	if err != nil {
		return err
	}

	metrics, err := accessory.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	accessory.Instrument(plug, metrics)

	recorder := history.NewRecorder(cfg.Accessory.ID, history.NewSQLiteRepository(db.DB), log.With("component", "history"))

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder.AddSink(influxClient)
		checks["influxdb"] = influxClient.HealthCheck
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	go recorder.RunPruner(ctx, cfg.GetPruneInterval(), cfg.GetRetention())

	if mqttClient != nil {
		b, bridgeErr := bridge.New(bridge.Options{
			AccessoryID: cfg.Accessory.ID,
			Accessory:   plug,
			MQTTClient:  mqttClient,
			Recorder:    recorder,
			Logger:      log.With("component", "bridge"),
			Version:     version,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := b.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			b.Stop()
		}()
	}

	homekitDone := make(chan error, 1)
	if cfg.HomeKit.Enabled {
		binding, hkErr := homekit.New(cfg.HomeKit, plug, recorder, log.With("component", "homekit"), version)
		if hkErr != nil {
			return fmt.Errorf("creating HomeKit binding: %w", hkErr)
		}
		go func() { homekitDone <- binding.Run(ctx) }()
	} else {
		log.Info("HomeKit disabled")
	}

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:        cfg.API,
			WS:            cfg.WebSocket,
			Logger:        log.With("component", "api"),
			Version:       version,
			Gatherer:      prometheus.DefaultGatherer,
			AccessoryID:   cfg.Accessory.ID,
			AccessoryType: cfg.Accessory.Type,
			Accessory:     plug,
			Recorder:      recorder,
			Auth:          auth.NewAuthenticator(cfg.Security),
			Checks:        checks,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
	case hkErr := <-homekitDone:
		if hkErr != nil {
			return hkErr
		}
		<-ctx.Done()
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// buildAccessory builds the configured accessory through the registry.
// A nil mqttClient leaves the relay without a gateway.
func buildAccessory(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (accessory.Accessory, error) {
	var relay miio.MQTTClient
	if mqttClient != nil {
		relay = mqttClient
	}

	registry := accessory.NewRegistry()
	if err := registry.Register(outlet.TypeName, outlet.Factory(miio.Dialer(relay, cfg.MiIO.TopicPrefix))); err != nil {
		return nil, fmt.Errorf("registering %s: %w", outlet.TypeName, err)
	}

	plug, err := registry.Build(cfg.Accessory.Type, log.With("accessory", cfg.Accessory.Name), cfg.Accessory)
	if err != nil {
		return nil, fmt.Errorf("building accessory: %w", err)
	}
	return plug, nil
}

// newGatewaySupervisor builds the supervisor for a managed miIO gateway.
// The child learns the broker and topic prefix from its environment.
func newGatewaySupervisor(cfg *config.Config, log *logging.Logger) *process.Supervisor {
	gw := cfg.MiIO.Gateway
	return process.New(process.Config{
		Name:   "miio-gateway",
		Binary: gw.Binary,
		Args:   gw.Args,
		Env: []string{
			"MIIO_TOPIC_PREFIX=" + cfg.MiIO.TopicPrefix,
			fmt.Sprintf("MIIO_MQTT_BROKER=tcp://%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		},
		RestartDelay: time.Duration(gw.RestartDelay) * time.Second,
		MaxRestarts:  gw.MaxRestarts,
	}, log)
}

// hashPassword reads one line from in and writes its PHC hash to out.
func hashPassword(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

// getConfigPath returns MIPLUG_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("MIPLUG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
