package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix is used when no prefix is configured.
const DefaultEnvPrefix = "DOCSTORE"

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper.
// Precedence: flags > ENV > secrets file > config file > defaults.
type ViperLoader struct {
	configFile string
	envPrefix  string
	flags      *pflag.FlagSet
}

// NewViperLoader creates a new ViperLoader.
// configFile may be empty; envPrefix defaults to DOCSTORE.
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithFlags binds the known command-line flags present in flags.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	l.flags = flags
	return l
}

// flagBindings maps config keys to the flag names that override them.
var flagBindings = map[string]string{
	"observability.log_level":  "log-level",
	"observability.log_format": "log-format",
	"database.url":             "db-url",
	"database.database_name":   "db-name",
}

// Load loads, merges and validates the configuration.
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()
	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	secretsFile, err := l.discoverSecretsFile()
	if err != nil {
		return nil, err
	}
	if secretsFile != "" {
		sv := viper.New()
		sv.SetConfigFile(secretsFile)
		if err := sv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read secrets file %s: %w", secretsFile, err)
		}
		if err := v.MergeConfigMap(sv.AllSettings()); err != nil {
			return nil, fmt.Errorf("failed to merge secrets: %w", err)
		}
	}

	l.bindLegacyEnvVars()
	l.bindEnvVars(v)
	if err := l.bindFlags(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Collections == nil {
		cfg.Collections = map[string]string{}
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate delegates to Config.Validate.
func (l *ViperLoader) Validate(cfg *Config) error {
	return cfg.Validate()
}

func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	v.BindEnv("database.url", l.prefixedEnv("DB_URL"))
	v.BindEnv("database.database_name", l.prefixedEnv("DB_NAME"), l.prefixedEnv("DB_DATABASE_NAME"))
	v.BindEnv("database.connect_timeout", l.prefixedEnv("DB_CONNECT_TIMEOUT"))
	v.BindEnv("database.query_timeout", l.prefixedEnv("DB_QUERY_TIMEOUT"))
	v.BindEnv("database.max_pool_size", l.prefixedEnv("DB_MAX_POOL_SIZE"))
	v.BindEnv("database.min_pool_size", l.prefixedEnv("DB_MIN_POOL_SIZE"))
	v.BindEnv("database.max_conn_idle_time", l.prefixedEnv("DB_MAX_CONN_IDLE_TIME"))

	v.BindEnv("cache.enabled", l.prefixedEnv("CACHE_ENABLED"))
	v.BindEnv("cache.url", l.prefixedEnv("CACHE_URL"))
	v.BindEnv("cache.ttl", l.prefixedEnv("CACHE_TTL"))
	v.BindEnv("cache.prefix", l.prefixedEnv("CACHE_PREFIX"))
	v.BindEnv("cache.max_conns", l.prefixedEnv("CACHE_MAX_CONNS"))
	v.BindEnv("cache.operation_timeout", l.prefixedEnv("CACHE_OPERATION_TIMEOUT"))

	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.metrics_enabled", l.prefixedEnv("METRICS_ENABLED"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
}

// bindLegacyEnvVars maps the long DATABASE_* names onto the abbreviated DB_* names
// when the abbreviated variable is absent.
func (l *ViperLoader) bindLegacyEnvVars() {
	aliases := []struct {
		abbrevSuffix string
		legacySuffix string
	}{
		{"DB_URL", "DATABASE_URL"},
		{"DB_NAME", "DATABASE_NAME"},
		{"DB_CONNECT_TIMEOUT", "DATABASE_CONNECT_TIMEOUT"},
		{"DB_QUERY_TIMEOUT", "DATABASE_QUERY_TIMEOUT"},
		{"DB_MAX_POOL_SIZE", "DATABASE_MAX_POOL_SIZE"},
	}

	for _, alias := range aliases {
		abbrevEnv := l.prefixedEnv(alias.abbrevSuffix)
		if _, hasAbbrev := os.LookupEnv(abbrevEnv); hasAbbrev {
			continue
		}
		if legacyValue, hasLegacy := os.LookupEnv(l.prefixedEnv(alias.legacySuffix)); hasLegacy {
			_ = os.Setenv(abbrevEnv, legacyValue)
		}
	}
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for key, name := range flagBindings {
		flag := l.flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.database_name", cfg.Database.DatabaseName)
	v.SetDefault("database.connect_timeout", cfg.Database.ConnectTimeout)
	v.SetDefault("database.query_timeout", cfg.Database.QueryTimeout)
	v.SetDefault("database.max_pool_size", cfg.Database.MaxPoolSize)
	v.SetDefault("database.min_pool_size", cfg.Database.MinPoolSize)
	v.SetDefault("database.max_conn_idle_time", cfg.Database.MaxConnIdleTime)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.url", cfg.Cache.URL)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.prefix", cfg.Cache.Prefix)
	v.SetDefault("cache.max_conns", cfg.Cache.MaxConns)
	v.SetDefault("cache.operation_timeout", cfg.Cache.OperationTimeout)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
}

// discoverSecretsFile finds an optional secrets file:
// <PREFIX>_SECRETS_FILE first, then secrets.<ext> next to the config file.
func (l *ViperLoader) discoverSecretsFile() (string, error) {
	secretsEnv := l.prefixedEnv("SECRETS_FILE")
	if raw, ok := os.LookupEnv(secretsEnv); ok {
		secretsFile := strings.TrimSpace(raw)
		if secretsFile == "" {
			return "", fmt.Errorf("%s is set but empty", secretsEnv)
		}
		info, err := os.Stat(secretsFile)
		if err != nil {
			return "", fmt.Errorf("%s points to an inaccessible file %s: %w", secretsEnv, secretsFile, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s must point to a file, got directory %s", secretsEnv, secretsFile)
		}
		return secretsFile, nil
	}

	if l.configFile != "" {
		dir := filepath.Dir(l.configFile)
		secretsFile := filepath.Join(dir, "secrets"+filepath.Ext(l.configFile))
		if secretsFile != l.configFile {
			if info, err := os.Stat(secretsFile); err == nil && !info.IsDir() {
				return secretsFile, nil
			}
		}
	}
	return "", nil
}
