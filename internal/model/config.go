package model

import "time"

// DefaultUserAgent is a browser-like User-Agent; several news sites reject bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config holds all runtime configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	Schedule     ScheduleConfig     `yaml:"schedule" mapstructure:"schedule"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
}

// HTTPConfig configures the page fetcher
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ExtractionConfig controls the heuristics
type ExtractionConfig struct {
	Mode                  string  `yaml:"mode" mapstructure:"mode"` // simple | enhanced
	Region                string  `yaml:"region" mapstructure:"region"`
	IDPrefix              string  `yaml:"id_prefix" mapstructure:"id_prefix"`
	UseNER                bool    `yaml:"use_ner" mapstructure:"use_ner"`
	ArticleDescriptionCap int     `yaml:"article_description_cap" mapstructure:"article_description_cap"`
	DigestDescriptionCap  int     `yaml:"digest_description_cap" mapstructure:"digest_description_cap"`
	TitleSimilarity       float64 `yaml:"title_similarity" mapstructure:"title_similarity"`
}

// RateLimitingConfig enforces the politeness contract. BurstSize only applies
// when Delay is zero; a delay always spaces requests one at a time.
type RateLimitingConfig struct {
	Delay             time.Duration `yaml:"delay" mapstructure:"delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig sizes the batch worker pool; 1 means strictly sequential
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// CacheConfig configures the fetched-page cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// OutputConfig controls persisted files
type OutputConfig struct {
	Collection    string `yaml:"collection" mapstructure:"collection"`
	ReportsDir    string `yaml:"reports_dir" mapstructure:"reports_dir"`
	BackupsDir    string `yaml:"backups_dir" mapstructure:"backups_dir"`
	BackupEnabled bool   `yaml:"backup_enabled" mapstructure:"backup_enabled"`
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level       string   `yaml:"level" mapstructure:"level"`
	Development bool     `yaml:"development" mapstructure:"development"`
	OutputPaths []string `yaml:"output_paths" mapstructure:"output_paths"`
}

// ScheduleConfig holds cron specs for the scheduler collaborator
type ScheduleConfig struct {
	ExtractionSpec string `yaml:"extraction_spec" mapstructure:"extraction_spec"`
	BackupSpec     string `yaml:"backup_spec" mapstructure:"backup_spec"`
	URLsFile       string `yaml:"urls_file" mapstructure:"urls_file"`
}

// ServerConfig configures the HTTP collaborator
type ServerConfig struct {
	Addr  string `yaml:"addr" mapstructure:"addr"`
	Debug bool   `yaml:"debug" mapstructure:"debug"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     DefaultUserAgent,
			MaxBodyBytes:  5_000_000,
			MaxRetries:    3,
			RespectRobots: true,
		},
		Extraction: ExtractionConfig{
			Mode:                  "enhanced",
			Region:                "Gaza",
			IDPrefix:              "gaza",
			ArticleDescriptionCap: 2000,
			DigestDescriptionCap:  800,
			TitleSimilarity:       0.7,
		},
		RateLimiting: RateLimitingConfig{
			Delay:             2 * time.Second,
			RequestsPerSecond: 0.5,
			BurstSize:         1,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".crisislog-cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   6 * time.Hour,
		},
		Output: OutputConfig{
			Collection:    "incidents.csv",
			ReportsDir:    "data_files/daily_reports",
			BackupsDir:    "data_files/backups",
			BackupEnabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Schedule: ScheduleConfig{
			ExtractionSpec: "0 6 * * *",
			BackupSpec:     "0 23 * * *",
			URLsFile:       "urls.txt",
		},
		Server: ServerConfig{
			Addr: ":5000",
		},
	}
}
