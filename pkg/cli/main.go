// Package cli implements the docstore command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/docstore/pkg/config"
	"github.com/nimburion/docstore/pkg/health"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/observability/metrics"
	"github.com/nimburion/docstore/pkg/repository"
	"github.com/nimburion/docstore/pkg/version"
)

// ErrUnhealthy is returned by the healthcheck command when any dependency fails.
var ErrUnhealthy = errors.New("dependencies are unhealthy")

// Options defines the command's identity and its dependency hooks.
type Options struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// Optional: overrides how get and query open their repository.
	OpenRepository RepositoryFactory
	// Optional: overrides the checks run by healthcheck.
	HealthRegistry HealthRegistryFactory
}

// NewRootCommand creates the docstore CLI with version, config, healthcheck, get and query subcommands.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "docstore"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.OpenRepository == nil {
		opts.OpenRepository = OpenRecordRepository
	}
	if opts.HealthRegistry == nil {
		opts.HealthRegistry = BuildHealthRegistry
	}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgPath, envPrefix, secretFilePath, metricsFile string
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	flags.StringVar(&envPrefix, "env-prefix", opts.EnvPrefix, "environment variable prefix")
	flags.StringVar(&secretFilePath, "secret-file", "", "path to secrets file (sets <PREFIX>_SECRETS_FILE)")
	flags.StringVar(&metricsFile, "metrics-textfile", "", "write repository metrics to this file after get or query")
	flags.String("log-level", "", "log level override (debug, info, warn, error)")
	flags.String("log-format", "", "log format override (json, text)")
	flags.String("db-url", "", "MongoDB connection URL override")
	flags.String("db-name", "", "MongoDB database name override")

	loadConfig := func(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
		return LoadConfigAndLogger(cfgPath, envPrefix, secretFilePath, cmd.Flags(), cmd.ErrOrStderr())
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current(opts.Name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			if info.IsDevelopment() {
				fmt.Fprintf(out, "Version:    %s (development build)\n", info.Version)
			} else {
				fmt.Fprintf(out, "Version:    %s\n", info.Version)
			}
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			buildTime := info.BuildTime
			if ts, ok := info.ParseBuildTime(); ok {
				buildTime = ts.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Go:         %s\n", info.GoVersion)
		},
	})

	var redacted bool
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if redacted {
				cfg = cfg.Redacted()
			}
			return writeYAML(cmd.OutOrStdout(), cfg)
		},
	}
	configCmd.Flags().BoolVar(&redacted, "redacted", true, "mask credentials in connection URLs")
	rootCmd.AddCommand(configCmd)

	var checkName string
	healthCmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to MongoDB and, when enabled, Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			registry, release, err := opts.HealthRegistry(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer releaseWithLog(release, log)

			if checkName != "" {
				one, err := registry.CheckOne(cmd.Context(), checkName)
				if err != nil {
					return fmt.Errorf("%w: %w", repository.ErrInvalidRequest, err)
				}
				if err := writeJSON(cmd.OutOrStdout(), one); err != nil {
					return err
				}
				if one.Status == health.StatusUnhealthy {
					log.Error("healthcheck failed", "check", one.Name, "status", one.Status)
					return ErrUnhealthy
				}
				return nil
			}

			result := registry.Check(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.IsHealthy() {
				log.Error("healthcheck failed", "status", result.Status)
				return ErrUnhealthy
			}
			return nil
		},
	}
	healthCmd.Flags().StringVar(&checkName, "check", "", "run only the named check (mongodb or redis)")
	rootCmd.AddCommand(healthCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "get <collection-key> <id>",
		Short: "Fetch one document by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			repo, release, err := opts.OpenRepository(cmd.Context(), cfg, log, args[0])
			if err != nil {
				return err
			}
			defer releaseWithLog(release, log)
			defer writeMetrics(metricsFile, cfg, log)

			record, err := repo.GetByID(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), record)
		},
	})

	var q queryFlags
	queryCmd := &cobra.Command{
		Use:   "query <collection-key>",
		Short: "Fetch one page of documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			repo, release, err := opts.OpenRepository(cmd.Context(), cfg, log, args[0])
			if err != nil {
				return err
			}
			defer releaseWithLog(release, log)
			defer writeMetrics(metricsFile, cfg, log)

			page, err := repo.PaginateByFilter(cmd.Context(), q.request())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), newPageOutput(page))
		},
	}
	queryCmd.Flags().IntVar(&q.page, "page", 1, "1-based page number")
	queryCmd.Flags().IntVar(&q.pageSize, "page-size", 20, "documents per page")
	queryCmd.Flags().StringVar(&q.sort, "sort", "", "field to sort by")
	queryCmd.Flags().StringVar(&q.dir, "dir", string(repository.SortAsc), "sort direction (asc, desc)")
	queryCmd.Flags().StringVar(&q.filterField, "filter-field", "", "field for the case-insensitive substring filter")
	queryCmd.Flags().StringVar(&q.filterValue, "filter-value", "", "substring to match")
	rootCmd.AddCommand(queryCmd)

	return rootCmd
}

type queryFlags struct {
	page        int
	pageSize    int
	sort        string
	dir         string
	filterField string
	filterValue string
}

func (q queryFlags) request() repository.PageRequest {
	return repository.PageRequest{
		Page:          q.page,
		PageSize:      q.pageSize,
		SortField:     strings.TrimSpace(q.sort),
		SortDirection: repository.ParseSortOrder(strings.ToLower(strings.TrimSpace(q.dir))),
		FilterField:   q.filterField,
		FilterValue:   q.filterValue,
	}
}

type pageOutput struct {
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalRows  int64     `json:"total_rows"`
	TotalPages int64     `json:"total_pages"`
	Items      []*Record `json:"items"`
}

func newPageOutput(page repository.Page[*Record]) pageOutput {
	return pageOutput{
		Page:       page.Request.Page,
		PageSize:   page.Request.PageSize,
		TotalRows:  page.TotalRows,
		TotalPages: page.TotalPages,
		Items:      page.Items,
	}
}

// LoadConfigAndLogger loads configuration with flag, env, file and default
// precedence and builds the logger it describes. Logs go to logOut.
func LoadConfigAndLogger(cfgPath, envPrefix, secretFilePath string, flags *pflag.FlagSet, logOut io.Writer) (*config.Config, logger.Logger, error) {
	envPrefix = resolveEnvPrefix(envPrefix)
	if err := applySecretFileFlag(envPrefix, secretFilePath); err != nil {
		return nil, nil, err
	}

	cfg, err := config.NewViperLoader(cfgPath, envPrefix).WithFlags(changedFlags(flags)).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level, _ := logger.ParseLogLevel(cfg.Observability.LogLevel)
	format, _ := logger.ParseLogFormat(cfg.Observability.LogFormat)
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format, Output: logOut})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	logConfigIfDebug(log, cfg)
	return cfg, log, nil
}

// changedFlags returns the subset of flags set on the command line.
func changedFlags(flags *pflag.FlagSet) *pflag.FlagSet {
	if flags == nil {
		return nil
	}
	out := pflag.NewFlagSet("changed", pflag.ContinueOnError)
	flags.Visit(func(f *pflag.Flag) {
		out.AddFlag(f)
	})
	return out
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	return os.Setenv(envPrefix+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

func resolveEnvPrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return config.DefaultEnvPrefix
	}
	return strings.ToUpper(trimmed)
}

func logConfigIfDebug(log logger.Logger, cfg *config.Config) {
	if log == nil || cfg == nil {
		return
	}
	if !strings.EqualFold(cfg.Observability.LogLevel, string(logger.DebugLevel)) {
		return
	}
	log.Debug("effective configuration", "config", fmt.Sprintf("%+v", *cfg.Redacted()))
}

func releaseWithLog(release func() error, log logger.Logger) {
	if release == nil {
		return
	}
	if err := release(); err != nil {
		log.Warn("failed to release resources", "error", err)
	}
}

func writeMetrics(path string, cfg *config.Config, log logger.Logger) {
	if path == "" || !cfg.Observability.MetricsEnabled {
		return
	}
	if err := metrics.NewRegistry().WriteToTextfile(path); err != nil {
		log.Warn("failed to write metrics textfile", "path", path, "error", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUnhealthy):
		return 2
	case errors.Is(err, repository.ErrNotFound):
		return 3
	case errors.Is(err, repository.ErrConfiguration), errors.Is(err, repository.ErrInvalidRequest):
		return 64
	default:
		return 1
	}
}

// Execute runs the command with a context cancelled on SIGINT or SIGTERM and
// exits with the code ExitCode assigns.
func Execute(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(ExitCode(err))
}
