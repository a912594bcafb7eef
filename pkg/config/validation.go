package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/repository"
	"github.com/nimburion/docstore/pkg/store/mongodb"
)

// Validate reports every invalid setting. The error wraps repository.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Database.URL) == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if strings.TrimSpace(c.Database.DatabaseName) == "" {
		errs = append(errs, errors.New("database.database_name is required"))
	}
	if c.Database.ConnectTimeout < 0 || c.Database.QueryTimeout < 0 {
		errs = append(errs, errors.New("database timeouts must not be negative"))
	}
	if c.Database.MaxPoolSize > 0 && c.Database.MinPoolSize > c.Database.MaxPoolSize {
		errs = append(errs, fmt.Errorf("database.min_pool_size (%d) must not exceed database.max_pool_size (%d)",
			c.Database.MinPoolSize, c.Database.MaxPoolSize))
	}

	keys := make([]string, 0, len(c.Collections))
	for key := range c.Collections {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.TrimSpace(c.Collections[key]) == "" {
			errs = append(errs, fmt.Errorf("collections.%s must name a collection", key))
		}
	}

	if c.Cache.Enabled && strings.TrimSpace(c.Cache.URL) == "" {
		errs = append(errs, errors.New("cache.url is required when cache is enabled"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}

	if _, err := logger.ParseLogLevel(c.Observability.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("observability.log_level: %w", err))
	}
	if _, err := logger.ParseLogFormat(c.Observability.LogFormat); err != nil {
		errs = append(errs, fmt.Errorf("observability.log_format: %w", err))
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		errs = append(errs, errors.New("observability.tracing_sample_rate must be between 0 and 1"))
	}
	if c.Observability.TracingEnabled && strings.TrimSpace(c.Observability.TracingEndpoint) == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", repository.ErrConfiguration, errors.Join(errs...))
}

// Redacted returns a copy with credentials in connection URLs masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Database.URL = mongodb.RedactURL(c.Database.URL)
	out.Cache.URL = mongodb.RedactURL(c.Cache.URL)
	out.Collections = make(map[string]string, len(c.Collections))
	for k, v := range c.Collections {
		out.Collections[k] = v
	}
	return &out
}
