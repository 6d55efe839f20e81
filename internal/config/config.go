package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Database DatabaseConfig `yaml:"database,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Alerts   AlertConfig    `yaml:"alerts,omitempty"`
	InfluxDB InfluxDBConfig `yaml:"influxdb,omitempty"`
}

// DataConfig describes where partition files live and how to read them
type DataConfig struct {
	BasePath      string `yaml:"base_path"`                // Root containing hourly/feeder<N>/
	Feeders       []int  `yaml:"feeders,omitempty"`        // Fallback: 1-4
	ReadWorkers   int    `yaml:"read_workers,omitempty"`   // Parallel partition reads (fallback: 4)
	TimestampUnit string `yaml:"timestamp_unit,omitempty"` // ms, us or ns when the file does not say
}

// DatabaseConfig holds the SQLite export store location
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls the slog handler
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
	File  string `yaml:"file,omitempty"`  // Also append to this file when set
}

// AlertConfig holds notification settings
type AlertConfig struct {
	DashboardURL string      `yaml:"dashboard_url,omitempty"`
	MQTT         MQTTConfig  `yaml:"mqtt,omitempty"`
	Kafka        KafkaConfig `yaml:"kafka,omitempty"`
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // Fallback: gridload
	ClientID    string `yaml:"client_id,omitempty"`
}

// KafkaConfig holds Kafka producer configuration
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic,omitempty"` // Fallback: transformer-alerts
}

// InfluxDBConfig holds InfluxDB v2 export configuration
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults apply through the getters
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	switch strings.ToLower(c.Data.TimestampUnit) {
	case "", "ms", "us", "ns":
	default:
		return fmt.Errorf("unsupported timestamp_unit %q (use ms, us or ns)", c.Data.TimestampUnit)
	}

	for _, f := range c.Data.Feeders {
		if f < 1 {
			return fmt.Errorf("feeder numbers must be positive, got %d", f)
		}
	}

	if c.Alerts.MQTT.Enabled && c.Alerts.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required when mqtt alerts are enabled")
	}
	if c.Alerts.Kafka.Enabled && len(c.Alerts.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka alerts are enabled")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return fmt.Errorf("influxdb url and bucket are required when influxdb export is enabled")
	}

	return nil
}

// GetBasePath returns the partition root with a default of ./processed_data/transformer_analysis
func (c *Config) GetBasePath() string {
	if c.Data.BasePath == "" {
		return filepath.Join("processed_data", "transformer_analysis")
	}
	return c.Data.BasePath
}

// GetFeeders returns the configured feeder numbers, defaulting to 1 through 4
func (c *Config) GetFeeders() []int {
	if len(c.Data.Feeders) == 0 {
		return []int{1, 2, 3, 4}
	}
	return c.Data.Feeders
}

// GetReadWorkers returns the number of parallel partition readers
func (c *Config) GetReadWorkers() int {
	if c.Data.ReadWorkers <= 0 {
		return 4
	}
	return c.Data.ReadWorkers
}

// GetTimestampUnit returns the fallback unit for raw INT64 timestamps
func (c *Config) GetTimestampUnit() string {
	if c.Data.TimestampUnit == "" {
		return "us"
	}
	return strings.ToLower(c.Data.TimestampUnit)
}

// GetDatabasePath returns the export database file path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "loading.db"
	}
	return c.Database.Path
}

// GetLogLevel returns the configured log level, defaulting to info
func (c *Config) GetLogLevel() string {
	if c.Logging.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Logging.Level)
}

// GetDashboardURL returns the base URL used in alert deep links
func (c *Config) GetDashboardURL() string {
	if c.Alerts.DashboardURL == "" {
		return "http://localhost:8501"
	}
	return c.Alerts.DashboardURL
}

// GetTopicPrefix returns the MQTT topic prefix
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return "gridload"
	}
	return m.TopicPrefix
}

// GetClientID returns the MQTT client ID
func (m MQTTConfig) GetClientID() string {
	if m.ClientID == "" {
		return "gridload"
	}
	return m.ClientID
}

// GetTopic returns the Kafka topic for alert events
func (k KafkaConfig) GetTopic() string {
	if k.Topic == "" {
		return "transformer-alerts"
	}
	return k.Topic
}
