// Package config loads docstore configuration from defaults, files, secrets files,
// environment variables and command-line flags.
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Collections   map[string]string   `mapstructure:"collections" yaml:"collections"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// DatabaseConfig configures the MongoDB connection.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" yaml:"url"`
	DatabaseName    string        `mapstructure:"database_name" yaml:"database_name"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
	MaxPoolSize     uint64        `mapstructure:"max_pool_size" yaml:"max_pool_size"`
	MinPoolSize     uint64        `mapstructure:"min_pool_size" yaml:"min_pool_size"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time" yaml:"max_conn_idle_time"`
}

// CacheConfig configures the Redis document cache.
type CacheConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	URL              string        `mapstructure:"url" yaml:"url"`
	TTL              time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Prefix           string        `mapstructure:"prefix" yaml:"prefix"`
	MaxConns         int           `mapstructure:"max_conns" yaml:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
}

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string  `mapstructure:"log_format" yaml:"log_format"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "docstore",
			Environment: "production",
		},
		Database: DatabaseConfig{
			URL:             "mongodb://localhost:27017",
			DatabaseName:    "docstore",
			ConnectTimeout:  5 * time.Second,
			QueryTimeout:    5 * time.Second,
			MaxPoolSize:     100,
			MinPoolSize:     0,
			MaxConnIdleTime: 5 * time.Minute,
		},
		Collections: map[string]string{},
		Cache: CacheConfig{
			Enabled:          false,
			TTL:              5 * time.Minute,
			Prefix:           "docstore",
			MaxConns:         10,
			OperationTimeout: 2 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			MetricsEnabled:    true,
			TracingEnabled:    false,
			TracingSampleRate: 1.0,
		},
	}
}
