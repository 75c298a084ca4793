package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for roomlink.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Firebase FirebaseConfig `yaml:"firebase"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Access   AccessConfig   `yaml:"access"`
	Devices  DevicesConfig  `yaml:"devices"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// FirebaseConfig contains Realtime Database REST settings.
type FirebaseConfig struct {
	// DatabaseURL is the RTDB base URL, e.g. https://example.firebaseio.com
	DatabaseURL string `yaml:"database_url"`

	// AuthToken is an optional database secret appended as ?auth= on each
	// request. Empty means unauthenticated access (development databases).
	AuthToken string `yaml:"auth_token"`

	// Timeout bounds each REST call, in seconds.
	Timeout int `yaml:"timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// WSPushInterval is how often the WebSocket endpoint pushes a state
	// snapshot to connected clients, in seconds.
	WSPushInterval int `yaml:"ws_push_interval"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AccessConfig contains the identity-tag allow-list.
type AccessConfig struct {
	// AllowedTags are the identity tags authorized to unlock the door.
	// Comparison is case-insensitive; tags are normalised to upper-case.
	AllowedTags []string `yaml:"allowed_tags"`
}

// DevicesConfig seeds the in-memory device mirror at startup.
type DevicesConfig struct {
	DoorLock    DoorLockSeed    `yaml:"door_lock"`
	RoomControl RoomControlSeed `yaml:"room_control"`
}

// DoorLockSeed is the initial door lock state.
type DoorLockSeed struct {
	Status string `yaml:"status"`
}

// RoomControlSeed is the initial room control state.
type RoomControlSeed struct {
	LightMode string `yaml:"light_mode"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ROOMLINK_SECTION_KEY
// For example: ROOMLINK_MQTT_HOST, ROOMLINK_FIREBASE_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "room-001",
			Name: "roomlink",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "roomlink-broker",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Firebase: FirebaseConfig{
			Timeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WSPushInterval: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Devices: DevicesConfig{
			DoorLock:    DoorLockSeed{Status: "locked"},
			RoomControl: RoomControlSeed{LightMode: "off"},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ROOMLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("ROOMLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ROOMLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ROOMLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Firebase
	if v := os.Getenv("ROOMLINK_FIREBASE_URL"); v != "" {
		cfg.Firebase.DatabaseURL = v
	}
	if v := os.Getenv("ROOMLINK_FIREBASE_AUTH_TOKEN"); v != "" {
		cfg.Firebase.AuthToken = v
	}

	// API
	if v := os.Getenv("ROOMLINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("ROOMLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}

	// Firebase validation - the remote mirror is the only durable copy,
	// so a missing URL is a deployment mistake, not an optional feature.
	if c.Firebase.DatabaseURL == "" {
		errs = append(errs, "firebase.database_url is required (set ROOMLINK_FIREBASE_URL environment variable)")
	} else if !strings.HasPrefix(c.Firebase.DatabaseURL, "http://") && !strings.HasPrefix(c.Firebase.DatabaseURL, "https://") {
		errs = append(errs, "firebase.database_url must be an http(s) URL")
	}
	if c.Firebase.Timeout <= 0 {
		errs = append(errs, "firebase.timeout must be positive")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Device seed validation
	switch c.Devices.DoorLock.Status {
	case "", "locked", "unlocked":
	default:
		errs = append(errs, "devices.door_lock.status must be locked or unlocked")
	}
	switch c.Devices.RoomControl.LightMode {
	case "", "off", "low", "med", "high":
	default:
		errs = append(errs, "devices.room_control.light_mode must be off, low, med, or high")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the HTTP read timeout as a Duration.
func (c APIConfig) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// WriteTimeout returns the HTTP write timeout as a Duration.
func (c APIConfig) WriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// IdleTimeout returns the HTTP idle timeout as a Duration.
func (c APIConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}

// RequestTimeout returns the per-request timeout as a Duration.
// Zero means the client should apply its own default.
func (c FirebaseConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
