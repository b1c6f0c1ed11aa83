package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
headless: false
detail_concurrency: 3
min_records_threshold: 25
store: sqlite
sqlite_path: ./data/activities.db
categories:
  - Aquatics > Swimming Lessons
  - Arts
sources:
  - id: nvrc
    host: nvrc.perfectmind.com
    org_id: "23734"
    widget_id: 15f6af07-39c5-473e-b053-96653f77a406
  - id: westvan
    provider: perfectmind
    entry_url: https://westvancouver.perfectmind.com/Clients/BookMe4
    categories: [Skating]
    min_records_threshold: 0
kafka:
  brokers: [localhost:9092]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.False(t, cfg.Headless)
	assert.Equal(t, 3, cfg.DetailConcurrency)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Len(t, cfg.Sources, 2)
	assert.Equal(t, "perfectmind", cfg.Sources[0].Provider)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)

	// untouched values keep their defaults
	assert.Equal(t, 30000, cfg.PerPageTimeoutMs)
	assert.Equal(t, "browser", cfg.DetailLoader)
	assert.Equal(t, "activity-sync.runs", cfg.Kafka.Topic)

	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 5, cfg.DetailConcurrency)
	assert.Equal(t, 10, cfg.MinRecordsThreshold)
	assert.Contains(t, cfg.SQLitePath, "activity-sync")
	assert.ErrorIs(t, cfg.Validate(), ErrNoSources)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("DETAIL_CONCURRENCY", "8")
	t.Setenv("HEADLESS", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.DetailConcurrency)
	assert.True(t, cfg.Headless)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestSourceOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	nvrc, ok := cfg.Source("nvrc")
	require.True(t, ok)
	assert.Equal(t, 25, cfg.ThresholdFor(nvrc))
	assert.Equal(t, []string{"Aquatics > Swimming Lessons", "Arts"}, cfg.CategoriesFor(nvrc))

	westvan, ok := cfg.Source("westvan")
	require.True(t, ok)
	assert.Equal(t, 0, cfg.ThresholdFor(westvan))
	assert.Equal(t, []string{"Skating"}, cfg.CategoriesFor(westvan))

	_, ok = cfg.Source("missing")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Categories = []string{"Arts"}
		cfg.Sources = []SourceConfig{{ID: "a", EntryURL: "https://example.com"}}
		return cfg
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Config){
		"zero workers":            func(c *Config) { c.DetailConcurrency = 0 },
		"negative floor":          func(c *Config) { c.MinRecordsThreshold = -1 },
		"unknown store":           func(c *Config) { c.Store = "mongo" },
		"unknown loader":          func(c *Config) { c.DetailLoader = "curl" },
		"duplicate source":        func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) },
		"no entry point":          func(c *Config) { c.Sources[0].EntryURL = "" },
		"no categories":           func(c *Config) { c.Categories = nil },
		"retire ratio > 1":        func(c *Config) { c.MaxRetireRatio = 1.5 },
		"zero page timeout":       func(c *Config) { c.PerPageTimeoutMs = 0 },
		"negative detail timeout": func(c *Config) { c.DetailTimeoutMs = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
