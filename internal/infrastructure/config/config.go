package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the device connectivity core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cloud    CloudConfig    `yaml:"cloud"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	RPC      RPCConfig      `yaml:"rpc"`
	Registry RegistryConfig `yaml:"registry"`
	Poll     PollConfig     `yaml:"poll"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Cache    CacheConfig    `yaml:"cache"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CloudConfig identifies the IoT product and the credential authority used
// to obtain short-lived broker credentials.
type CloudConfig struct {
	// ProductID scopes all device topics and command-channel calls.
	ProductID string `yaml:"product_id"`

	// CredentialEndpoint is the role-assumption exchange URL.
	CredentialEndpoint string `yaml:"credential_endpoint"`

	// RefreshMargin is how long before expiry a credential is considered
	// stale and refreshed (seconds). Default: 300.
	RefreshMargin int `yaml:"refresh_margin"`
}

// MQTTConfig contains cloud broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains broker connection details.
//
// There is deliberately no static username/password section: broker
// authentication always uses a short-lived credential from the
// credential provider, fetched fresh on every connect attempt.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// ClientIDPrefix is combined with a random suffix to form the
	// session client identity. Default: "devicelink".
	ClientIDPrefix string `yaml:"client_id_prefix"`
}

// MQTTReconnectConfig contains reconnection backoff settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// RPCConfig contains primary command channel settings.
type RPCConfig struct {
	// Endpoint is the JSON-RPC URL of the device-command service.
	Endpoint string `yaml:"endpoint"`

	// Enabled toggles the RPC delivery strategy. When disabled the
	// dispatcher falls straight through to the broker.
	Enabled bool `yaml:"enabled"`

	// Timeout is the per-call bound in seconds. Default: 10.
	Timeout int `yaml:"timeout"`
}

// RegistryConfig contains settings for the authoritative device registry.
type RegistryConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`

	// Timeout is the per-request bound in seconds. Default: 10.
	Timeout int `yaml:"timeout"`
}

// PollConfig contains status polling loop settings.
type PollConfig struct {
	// Interval between status polls in seconds. Default: 30.
	Interval int `yaml:"interval"`
}

// DispatchConfig contains message dispatcher settings.
type DispatchConfig struct {
	// Mode selects the presence merge policy: "broker_primary" or
	// "rpc_primary". See internal/device for the exact semantics.
	Mode string `yaml:"mode"`

	// QueueSize bounds the in-memory offline retry queue. Default: 32.
	QueueSize int `yaml:"queue_size"`
}

// CacheConfig contains the SQLite presence cache settings.
type CacheConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains connectivity telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ALAYA_SECTION_KEY
// For example: ALAYA_MQTT_HOST, ALAYA_REGISTRY_API_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			RefreshMargin: 300,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:           "localhost",
				Port:           1883,
				ClientIDPrefix: "devicelink",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		RPC: RPCConfig{
			Enabled: true,
			Timeout: 10,
		},
		Registry: RegistryConfig{
			Timeout: 10,
		},
		Poll: PollConfig{
			Interval: 30,
		},
		Dispatch: DispatchConfig{
			Mode:      "rpc_primary",
			QueueSize: 32,
		},
		Cache: CacheConfig{
			Path:        "./data/devicelink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ALAYA_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud
	if v := os.Getenv("ALAYA_CLOUD_PRODUCT_ID"); v != "" {
		cfg.Cloud.ProductID = v
	}
	if v := os.Getenv("ALAYA_CLOUD_CREDENTIAL_ENDPOINT"); v != "" {
		cfg.Cloud.CredentialEndpoint = v
	}

	// MQTT
	if v := os.Getenv("ALAYA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ALAYA_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}

	// RPC
	if v := os.Getenv("ALAYA_RPC_ENDPOINT"); v != "" {
		cfg.RPC.Endpoint = v
	}

	// Registry
	if v := os.Getenv("ALAYA_REGISTRY_ENDPOINT"); v != "" {
		cfg.Registry.Endpoint = v
	}
	if v := os.Getenv("ALAYA_REGISTRY_API_KEY"); v != "" {
		cfg.Registry.APIKey = v
	}

	// Cache
	if v := os.Getenv("ALAYA_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}

	// InfluxDB
	if v := os.Getenv("ALAYA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Cloud.ProductID == "" {
		errs = append(errs, "cloud.product_id is required")
	}
	if c.Cloud.CredentialEndpoint == "" {
		errs = append(errs, "cloud.credential_endpoint is required")
	}
	if c.Cloud.RefreshMargin < 0 {
		errs = append(errs, "cloud.refresh_margin must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.RPC.Enabled && c.RPC.Endpoint == "" {
		errs = append(errs, "rpc.endpoint is required when rpc is enabled")
	}

	if c.Registry.Endpoint == "" {
		errs = append(errs, "registry.endpoint is required")
	}

	if c.Poll.Interval < 1 {
		errs = append(errs, "poll.interval must be at least 1 second")
	}

	switch c.Dispatch.Mode {
	case "broker_primary", "rpc_primary":
	default:
		errs = append(errs, "dispatch.mode must be broker_primary or rpc_primary")
	}
	if c.Dispatch.QueueSize < 0 {
		errs = append(errs, "dispatch.queue_size must not be negative")
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		errs = append(errs, "cache.path is required when cache is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRefreshMargin returns the credential refresh margin as a Duration.
func (c *Config) GetRefreshMargin() time.Duration {
	return time.Duration(c.Cloud.RefreshMargin) * time.Second
}

// GetRPCTimeout returns the per-call command channel timeout as a Duration.
func (c *Config) GetRPCTimeout() time.Duration {
	return time.Duration(c.RPC.Timeout) * time.Second
}

// GetRegistryTimeout returns the registry request timeout as a Duration.
func (c *Config) GetRegistryTimeout() time.Duration {
	return time.Duration(c.Registry.Timeout) * time.Second
}

// GetPollInterval returns the status polling interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Second
}
