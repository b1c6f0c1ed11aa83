package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrNoSources is returned by Validate when nothing is configured to sync
var ErrNoSources = errors.New("no sources configured")

// Config holds all application-level configuration
type Config struct {
	// Browser
	Headless          bool `yaml:"headless"`
	DetailConcurrency int  `yaml:"detail_concurrency"`
	PerPageTimeoutMs  int  `yaml:"per_page_timeout_ms"`
	DetailTimeoutMs   int  `yaml:"detail_timeout_ms"`
	RunTimeoutMinutes int  `yaml:"run_timeout_minutes"`
	RateLimitDelayMs  int  `yaml:"rate_limit_delay_ms"` // milliseconds between navigations
	MaxRetries        int  `yaml:"max_retries"`
	// DetailLoader is "browser" (one tab per worker) or "http"
	DetailLoader string `yaml:"detail_loader"`

	// Safety guard
	MinRecordsThreshold int     `yaml:"min_records_threshold"`
	MaxRetireRatio      float64 `yaml:"max_retire_ratio"` // 0 disables

	// Storage
	Store       string `yaml:"store"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	CSVFilePath string `yaml:"csv_file_path"` // empty disables the raw dump

	// Run lock
	RedisURL       string `yaml:"redis_url"`
	LockTTLMinutes int    `yaml:"lock_ttl_minutes"`

	Kafka        KafkaConfig `yaml:"kafka"`
	MetricsAddr  string      `yaml:"metrics_addr"`
	TaxonomyFile string      `yaml:"taxonomy_file"`

	// Categories is the default category list for sources that don't set their own
	Categories []string       `yaml:"categories"`
	Sources    []SourceConfig `yaml:"sources"`
}

// KafkaConfig controls run report publishing; no brokers disables it
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// SourceConfig describes one booking site to synchronize
type SourceConfig struct {
	ID       string `yaml:"id"`
	Provider string `yaml:"provider"`
	EntryURL string `yaml:"entry_url"`
	// PerfectMind widgets can be addressed by host + org + widget instead of a URL
	Host     string `yaml:"host"`
	OrgID    string `yaml:"org_id"`
	WidgetID string `yaml:"widget_id"`

	Categories          []string          `yaml:"categories"`
	MinRecordsThreshold *int              `yaml:"min_records_threshold"`
	Selectors           map[string]string `yaml:"selectors"`
}

// Default returns the configuration used when a value isn't set anywhere
func Default() *Config {
	return &Config{
		Headless:            true,
		DetailConcurrency:   5,
		PerPageTimeoutMs:    30000,
		DetailTimeoutMs:     20000,
		RunTimeoutMinutes:   25,
		RateLimitDelayMs:    500,
		MaxRetries:          3,
		DetailLoader:        "browser",
		MinRecordsThreshold: 10,
		Store:               "postgres",
		DatabaseURL:         "postgres://localhost:5432/activities?sslmode=disable",
		SQLitePath:          filepath.Join(xdg.DataHome, "activity-sync", "activities.db"),
		LockTTLMinutes:      60,
		Kafka:               KafkaConfig{Topic: "activity-sync.runs"},
		MetricsAddr:         ":9102",
	}
}

// Load reads and parses the configuration file on top of the defaults.
// An empty path yields the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "activity-sync.runs"
	}
	for i := range cfg.Sources {
		if cfg.Sources[i].Provider == "" {
			cfg.Sources[i].Provider = "perfectmind"
		}
	}
	return cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file in the working directory is read first if present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	cfg.Headless = getEnvBool("HEADLESS", cfg.Headless)
	cfg.DetailConcurrency = getEnvInt("DETAIL_CONCURRENCY", cfg.DetailConcurrency)
	cfg.PerPageTimeoutMs = getEnvInt("PER_PAGE_TIMEOUT_MS", cfg.PerPageTimeoutMs)
	cfg.DetailTimeoutMs = getEnvInt("DETAIL_TIMEOUT_MS", cfg.DetailTimeoutMs)
	cfg.RunTimeoutMinutes = getEnvInt("RUN_TIMEOUT_MINUTES", cfg.RunTimeoutMinutes)
	cfg.RateLimitDelayMs = getEnvInt("RATE_LIMIT_DELAY_MS", cfg.RateLimitDelayMs)
	cfg.MaxRetries = getEnvInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.DetailLoader = getEnv("DETAIL_LOADER", cfg.DetailLoader)
	cfg.MinRecordsThreshold = getEnvInt("MIN_RECORDS_THRESHOLD", cfg.MinRecordsThreshold)
	cfg.Store = getEnv("STORE", cfg.Store)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.CSVFilePath = getEnv("CSV_FILE_PATH", cfg.CSVFilePath)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.LockTTLMinutes = getEnvInt("LOCK_TTL_MINUTES", cfg.LockTTLMinutes)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.TaxonomyFile = getEnv("TAXONOMY_FILE", cfg.TaxonomyFile)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	if c.DetailConcurrency < 1 {
		return fmt.Errorf("detail_concurrency must be at least 1, got %d", c.DetailConcurrency)
	}
	if c.PerPageTimeoutMs <= 0 {
		return fmt.Errorf("per_page_timeout_ms must be positive, got %d", c.PerPageTimeoutMs)
	}
	if c.DetailTimeoutMs <= 0 {
		return fmt.Errorf("detail_timeout_ms must be positive, got %d", c.DetailTimeoutMs)
	}
	if c.MinRecordsThreshold < 0 {
		return fmt.Errorf("min_records_threshold must not be negative, got %d", c.MinRecordsThreshold)
	}
	if c.MaxRetireRatio < 0 || c.MaxRetireRatio > 1 {
		return fmt.Errorf("max_retire_ratio must be within [0, 1], got %v", c.MaxRetireRatio)
	}
	switch c.Store {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown store %q (want postgres or sqlite)", c.Store)
	}
	switch c.DetailLoader {
	case "browser", "http":
	default:
		return fmt.Errorf("unknown detail_loader %q (want browser or http)", c.DetailLoader)
	}

	seen := make(map[string]bool)
	for _, s := range c.Sources {
		if s.ID == "" {
			return errors.New("source without id")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
		if s.EntryURL == "" && (s.Host == "" || s.WidgetID == "") {
			return fmt.Errorf("source %q needs entry_url or host and widget_id", s.ID)
		}
		if s.MinRecordsThreshold != nil && *s.MinRecordsThreshold < 0 {
			return fmt.Errorf("source %q: min_records_threshold must not be negative", s.ID)
		}
		if len(c.CategoriesFor(s)) == 0 {
			return fmt.Errorf("source %q has no categories", s.ID)
		}
	}
	return nil
}

// Source finds a configured source by id
func (c *Config) Source(id string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// CategoriesFor returns the source's own categories or the global list
func (c *Config) CategoriesFor(s SourceConfig) []string {
	if len(s.Categories) > 0 {
		return s.Categories
	}
	return c.Categories
}

// ThresholdFor returns the guard floor for a source
func (c *Config) ThresholdFor(s SourceConfig) int {
	if s.MinRecordsThreshold != nil {
		return *s.MinRecordsThreshold
	}
	return c.MinRecordsThreshold
}

func (c *Config) PerPageTimeout() time.Duration {
	return time.Duration(c.PerPageTimeoutMs) * time.Millisecond
}

func (c *Config) DetailTimeout() time.Duration {
	return time.Duration(c.DetailTimeoutMs) * time.Millisecond
}

func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMinutes) * time.Minute
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
