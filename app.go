package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"activity-sync/config"
	"activity-sync/events"
	"activity-sync/lock"
	"activity-sync/services"
	"activity-sync/storage"
	"activity-sync/utils"
)

// app holds the long-lived resources shared by the commands
type app struct {
	cfg       *config.Config
	logger    *utils.Logger
	store     *storage.SQLStore
	redis     *redis.Client
	publisher events.Publisher
}

func newApp(configPath string, verbose bool, stderr io.Writer) (*app, error) {
	logger := utils.NewLogger()
	if verbose {
		logger.SetVerbose(stderr)
	}
	slog.SetDefault(logger.Slog())

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &app{cfg: cfg, logger: logger, publisher: events.NopPublisher{}}, nil
}

// openStore connects to the configured store and applies the schema
func (a *app) openStore(ctx context.Context) error {
	var err error
	switch a.cfg.Store {
	case "sqlite":
		a.store, err = storage.NewSQLiteStore(a.cfg.SQLitePath, a.logger)
	default:
		a.store, err = storage.NewPostgresStore(a.cfg.DatabaseURL, a.logger)
	}
	if err != nil {
		return err
	}
	return a.store.Migrate(ctx)
}

// newSyncer wires the pipeline. insights may be nil.
func (a *app) newSyncer(insights io.Writer) (*services.Syncer, error) {
	taxonomy := services.DefaultTaxonomy()
	if a.cfg.TaxonomyFile != "" {
		t, err := services.LoadTaxonomy(a.cfg.TaxonomyFile)
		if err != nil {
			return nil, err
		}
		taxonomy = t
	}

	if a.cfg.RedisURL != "" {
		opts, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis_url: %w", err)
		}
		a.redis = redis.NewClient(opts)
	}
	var locks lock.Factory
	if a.store.Dialect() == "postgres" {
		locks = lock.NewFactory(a.redis, a.store.DB(), a.cfg.LockTTL())
	} else {
		locks = lock.NewFactory(a.redis, nil, a.cfg.LockTTL())
	}

	if len(a.cfg.Kafka.Brokers) > 0 {
		a.publisher = events.NewKafkaPublisher(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
	}

	opts := services.SyncerOptions{
		Store:     a.store,
		Intake:    services.NewBrowserIntake(a.cfg, a.logger),
		Locks:     locks,
		Publisher: a.publisher,
		Taxonomy:  taxonomy,
		Insights:  insights,
	}
	if a.cfg.CSVFilePath != "" {
		opts.Raw = storage.NewCSVWriter(a.cfg.CSVFilePath, a.logger)
	}
	return services.NewSyncer(a.cfg, opts, a.logger), nil
}

// sources resolves source ids; no ids means every configured source
func (a *app) sources(ids []string) ([]config.SourceConfig, error) {
	if len(ids) == 0 {
		return a.cfg.Sources, nil
	}
	out := make([]config.SourceConfig, 0, len(ids))
	for _, id := range ids {
		src, ok := a.cfg.Source(id)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", id)
		}
		out = append(out, src)
	}
	return out, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("Failed to close publisher: %v", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
