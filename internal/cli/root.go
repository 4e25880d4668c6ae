package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/metrics"
	"github.com/ppiankov/crisislog/internal/model"
)

// version is overridden at build time with -ldflags "-X ...cli.version=..."
var version = "v0.2.0"

var (
	cfgFile  string
	verbose  bool
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "crisislog",
	Short: "crisislog - incident extraction from crisis news and humanitarian reports",
	Long: `crisislog fetches news articles and humanitarian reports about a crisis
region and extracts structured incident records: date, location, type,
casualty counts, tags and sources.

Extraction is deterministic. The same input always yields the same records
and the same ids, so re-running an extraction never duplicates incidents
already in the collection.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of crisislog.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("crisislog %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.crisislog/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, the config file and CRISISLOG_* variables
func initConfig() {
	// a missing .env is the normal case
	_ = godotenv.Load(".env")

	if err := setDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".crisislog"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	bindEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindEnv maps CRISISLOG_HTTP_TIMEOUT to http.timeout and so on
func bindEnv() {
	viper.SetEnvPrefix("CRISISLOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setDefaults registers every key of cfg so AutomaticEnv can see it
func setDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	for key, value := range flatten("", tree) {
		viper.SetDefault(key, value)
	}
	// durations marshal as nanosecond counts; register them as durations
	viper.SetDefault("http.timeout", cfg.HTTP.Timeout)
	viper.SetDefault("rate_limiting.delay", cfg.RateLimiting.Delay)
	viper.SetDefault("cache.memory_ttl", cfg.Cache.MemoryTTL)
	viper.SetDefault("cache.disk_ttl", cfg.Cache.DiskTTL)
	// omitted from the YAML when empty
	viper.SetDefault("http.http_proxy", cfg.HTTP.HTTPProxy)
	viper.SetDefault("http.https_proxy", cfg.HTTP.HTTPSProxy)
	viper.SetDefault("http.no_proxy", cfg.HTTP.NoProxy)
	return nil
}

func flatten(prefix string, tree map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			for sk, sv := range flatten(key, sub) {
				out[sk] = sv
			}
			continue
		}
		out[key] = v
	}
	return out
}

// loadConfig resolves defaults, config file and environment into a Config
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Output.Verbose && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the structured logger from the logging section
func newLogger(cfg *model.Config) (logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: cfg.Logging.OutputPaths,
	})
}

// runtimeDeps is what every command that extracts needs
type runtimeDeps struct {
	cfg     *model.Config
	log     logger.Logger
	metrics *metrics.Metrics
}

func newRuntimeDeps() (*runtimeDeps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &runtimeDeps{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(prometheus.DefaultRegisterer),
	}, nil
}
