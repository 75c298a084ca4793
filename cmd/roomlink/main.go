// roomlink - Room Access Broker
//
// This is the main entry point for the roomlink service. It bridges a
// room's ESP device fleet (door lock, environment sensor, light) on the
// MQTT bus with a remote Firebase Realtime Database replica, making
// access-control decisions locally so the door keeps working when the
// internet does not.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roomlink-io/roomlink/internal/api"
	"github.com/roomlink-io/roomlink/internal/engine"
	"github.com/roomlink-io/roomlink/internal/infrastructure/config"
	"github.com/roomlink-io/roomlink/internal/infrastructure/firebase"
	"github.com/roomlink-io/roomlink/internal/infrastructure/influxdb"
	"github.com/roomlink-io/roomlink/internal/infrastructure/logging"
	"github.com/roomlink-io/roomlink/internal/infrastructure/mqtt"
	"github.com/roomlink-io/roomlink/internal/policy"
	"github.com/roomlink-io/roomlink/internal/state"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting roomlink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Build the access policy and seed the device mirror
	store := policy.New(cfg.Access.AllowedTags)
	log.Info("access policy loaded", "authorized_tags", store.Size())

	mirror := state.NewMirror(state.Seed{
		DoorStatus: state.LockStatus(cfg.Devices.DoorLock.Status),
		LightMode:  state.LightMode(cfg.Devices.RoomControl.LightMode),
	})

	// Connect to the remote document store
	remote, err := firebase.Connect(cfg.Firebase)
	if err != nil {
		return fmt.Errorf("connecting to Firebase: %w", err)
	}
	log.Info("Firebase client ready", "url", cfg.Firebase.DatabaseURL)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log.With("component", "mqtt"))

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the access engine
	opts := engine.Options{
		Policy: store,
		Mirror: mirror,
		Bus:    mqttClient,
		Remote: remote,
		Logger: log.With("component", "engine"),
		QoS:    byte(cfg.MQTT.QoS),
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	eng, err := engine.New(opts)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	// Seed the remote document tree if absent. Best-effort: the broker
	// keeps making local decisions while the remote store is down.
	if err := eng.Bootstrap(ctx); err != nil {
		log.Warn("remote bootstrap failed, continuing offline", "error", err)
	}

	// Subscribe device topic handlers
	if err := eng.Start(); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	// Start the HTTP API
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log.With("component", "api"),
		Core:    eng,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, log, mqttClient, remote, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT

	log.Info("roomlink stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ROOMLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ROOMLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - log: Logger for non-fatal findings
//   - mqttClient: MQTT client to check
//   - remote: Firebase client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - server: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, log *logging.Logger, mqttClient *mqtt.Client, remote *firebase.Client, influxClient *influxdb.Client, server *api.Server) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// The remote store is best-effort: an unreachable database is logged
	// but does not fail startup.
	if err := remote.HealthCheck(ctx); err != nil {
		log.Warn("firebase unreachable at startup", "error", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
