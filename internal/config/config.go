package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeConfig identifies the process for logs and metric labels
type NodeConfig struct {
	NodeID string `yaml:"node_id"`
}

// CacheConfig holds hot-key cache configuration
type CacheConfig struct {
	MaxKeySize   int           `yaml:"max_key_size"`
	MaxValueSize int           `yaml:"max_value_size"`
	InfoInterval time.Duration `yaml:"info_interval"`
}

// PromoterConfig holds promotion worker configuration
type PromoterConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// WorkloadConfig holds the skewed workload generator configuration
type WorkloadConfig struct {
	Keys       int           `yaml:"keys"`
	HotKeys    int           `yaml:"hot_keys"`
	ValueSize  int           `yaml:"value_size"`
	ZipfS      float64       `yaml:"zipf_s"`
	ZipfV      float64       `yaml:"zipf_v"`
	Readers    int           `yaml:"readers"`
	Duration   time.Duration `yaml:"duration"`
	Seed       int64         `yaml:"seed"`
	DeleteFrac float64       `yaml:"delete_frac"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for the hot-key cache node
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Cache    CacheConfig    `yaml:"cache"`
	Promoter PromoterConfig `yaml:"promoter"`
	Workload WorkloadConfig `yaml:"workload"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if not specified
	setDefaults(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Node.NodeID = "hotcache-0"
	return cfg
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Cache.MaxKeySize == 0 {
		cfg.Cache.MaxKeySize = 1024
	}
	if cfg.Cache.MaxValueSize == 0 {
		cfg.Cache.MaxValueSize = 10 * 1024 * 1024
	}
	if cfg.Cache.InfoInterval == 0 {
		cfg.Cache.InfoInterval = 30 * time.Second
	}

	if cfg.Promoter.Workers == 0 {
		cfg.Promoter.Workers = 2
	}
	if cfg.Promoter.QueueSize == 0 {
		cfg.Promoter.QueueSize = 1024
	}

	if cfg.Workload.Keys == 0 {
		cfg.Workload.Keys = 1_000_000
	}
	if cfg.Workload.HotKeys == 0 {
		cfg.Workload.HotKeys = 10_000
	}
	if cfg.Workload.ValueSize == 0 {
		cfg.Workload.ValueSize = 256
	}
	if cfg.Workload.ZipfS == 0 {
		cfg.Workload.ZipfS = 1.1
	}
	if cfg.Workload.ZipfV == 0 {
		cfg.Workload.ZipfV = 1.0
	}
	if cfg.Workload.Readers == 0 {
		cfg.Workload.Readers = 2
	}
	if cfg.Workload.Duration == 0 {
		cfg.Workload.Duration = 30 * time.Second
	}
	if cfg.Workload.Seed == 0 {
		cfg.Workload.Seed = 42
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Node.NodeID == "" {
		return fmt.Errorf("node.node_id is required")
	}
	if c.Cache.MaxKeySize < 1 {
		return fmt.Errorf("cache.max_key_size must be positive")
	}
	if c.Cache.MaxValueSize < 1 {
		return fmt.Errorf("cache.max_value_size must be positive")
	}
	if c.Workload.ZipfS <= 1 {
		return fmt.Errorf("workload.zipf_s must be greater than 1")
	}
	if c.Workload.ZipfV < 1 {
		return fmt.Errorf("workload.zipf_v must be at least 1")
	}
	if c.Workload.HotKeys > c.Workload.Keys {
		return fmt.Errorf("workload.hot_keys must not exceed workload.keys")
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}
	return nil
}
