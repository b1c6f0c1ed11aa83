package storage

import (
	"database/sql"
	"fmt"
	"time"

	"activity-sync/utils"

	_ "github.com/lib/pq"
)

var postgresSchema = []string{`
	CREATE TABLE IF NOT EXISTS activities (
		id                  SERIAL PRIMARY KEY,
		source_id           VARCHAR(100)  NOT NULL,
		external_id         VARCHAR(100)  NOT NULL,
		name                TEXT          NOT NULL,
		category_path       JSONB         NOT NULL DEFAULT '[]',
		sessions            JSONB         NOT NULL DEFAULT '[]',
		start_date          DATE,
		end_date            DATE,
		age_min             INTEGER,
		age_max             INTEGER,
		cost_amount         NUMERIC(10,2),
		tax_included        BOOLEAN       NOT NULL DEFAULT FALSE,
		registration_status VARCHAR(20)   NOT NULL DEFAULT 'unknown',
		spots_available     INTEGER,
		location            TEXT          NOT NULL DEFAULT '',
		detail_url          TEXT          NOT NULL DEFAULT '',
		description         TEXT          NOT NULL DEFAULT '',
		what_to_bring       TEXT          NOT NULL DEFAULT '',
		prerequisites       JSONB         NOT NULL DEFAULT '[]',
		activity_type       VARCHAR(50)   NOT NULL DEFAULT 'other',
		activity_subtype    VARCHAR(50),
		activity_type_id    VARCHAR(100)  NOT NULL,
		activity_subtype_id VARCHAR(100),
		match_method        VARCHAR(50)   NOT NULL,
		age_category        VARCHAR(20)   NOT NULL,
		requires_parent     BOOLEAN       NOT NULL DEFAULT FALSE,
		content_hash        CHAR(64)      NOT NULL,
		is_active           BOOLEAN       NOT NULL DEFAULT TRUE,
		first_seen_at       TIMESTAMPTZ   NOT NULL,
		last_seen_at        TIMESTAMPTZ   NOT NULL,
		UNIQUE (source_id, external_id),
		CHECK (age_min IS NULL OR age_max IS NULL OR age_min <= age_max)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_source_active ON activities (source_id, is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_type ON activities (activity_type)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_start ON activities (start_date)`,
	`
	CREATE TABLE IF NOT EXISTS sync_runs (
		id          VARCHAR(36)  PRIMARY KEY,
		source_id   VARCHAR(100) NOT NULL,
		started_at  TIMESTAMPTZ  NOT NULL,
		finished_at TIMESTAMPTZ,
		outcome     VARCHAR(20)  NOT NULL,
		message     TEXT,
		created     INTEGER      NOT NULL DEFAULT 0,
		updated     INTEGER      NOT NULL DEFAULT 0,
		unchanged   INTEGER      NOT NULL DEFAULT 0,
		retired     INTEGER      NOT NULL DEFAULT 0,
		errors      INTEGER      NOT NULL DEFAULT 0,
		diagnostics JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_source ON sync_runs (source_id, started_at DESC)`,
}

var postgresDialect = dialect{name: "postgres", schema: postgresSchema}

// NewPostgresStore opens a PostgreSQL-backed store and pings the DB
func NewPostgresStore(connStr string, logger *utils.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	logger.Info("Connected to PostgreSQL successfully")
	return newSQLStore(db, postgresDialect, logger), nil
}

// NewPostgresStoreFromDB wraps an already opened PostgreSQL pool
func NewPostgresStoreFromDB(db *sql.DB, logger *utils.Logger) *SQLStore {
	return newSQLStore(db, postgresDialect, logger)
}
