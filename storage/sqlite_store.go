package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"activity-sync/utils"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{`
	CREATE TABLE IF NOT EXISTS activities (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id           TEXT      NOT NULL,
		external_id         TEXT      NOT NULL,
		name                TEXT      NOT NULL,
		category_path       TEXT      NOT NULL DEFAULT '[]',
		sessions            TEXT      NOT NULL DEFAULT '[]',
		start_date          TIMESTAMP,
		end_date            TIMESTAMP,
		age_min             INTEGER,
		age_max             INTEGER,
		cost_amount         REAL,
		tax_included        BOOLEAN   NOT NULL DEFAULT FALSE,
		registration_status TEXT      NOT NULL DEFAULT 'unknown',
		spots_available     INTEGER,
		location            TEXT      NOT NULL DEFAULT '',
		detail_url          TEXT      NOT NULL DEFAULT '',
		description         TEXT      NOT NULL DEFAULT '',
		what_to_bring       TEXT      NOT NULL DEFAULT '',
		prerequisites       TEXT      NOT NULL DEFAULT '[]',
		activity_type       TEXT      NOT NULL DEFAULT 'other',
		activity_subtype    TEXT,
		activity_type_id    TEXT      NOT NULL,
		activity_subtype_id TEXT,
		match_method        TEXT      NOT NULL,
		age_category        TEXT      NOT NULL,
		requires_parent     BOOLEAN   NOT NULL DEFAULT FALSE,
		content_hash        TEXT      NOT NULL,
		is_active           BOOLEAN   NOT NULL DEFAULT TRUE,
		first_seen_at       TIMESTAMP NOT NULL,
		last_seen_at        TIMESTAMP NOT NULL,
		UNIQUE (source_id, external_id),
		CHECK (age_min IS NULL OR age_max IS NULL OR age_min <= age_max)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_source_active ON activities (source_id, is_active)`,
	`
	CREATE TABLE IF NOT EXISTS sync_runs (
		id          TEXT      PRIMARY KEY,
		source_id   TEXT      NOT NULL,
		started_at  TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		outcome     TEXT      NOT NULL,
		message     TEXT,
		created     INTEGER   NOT NULL DEFAULT 0,
		updated     INTEGER   NOT NULL DEFAULT 0,
		unchanged   INTEGER   NOT NULL DEFAULT 0,
		retired     INTEGER   NOT NULL DEFAULT 0,
		errors      INTEGER   NOT NULL DEFAULT 0,
		diagnostics TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_source ON sync_runs (source_id, started_at)`,
}

var sqliteDialect = dialect{name: "sqlite", schema: sqliteSchema, questionMarks: true}

// NewSQLiteStore opens a local SQLite store. Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string, logger *utils.Logger) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer; also keeps a :memory: database alive across calls
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Debug("Opened SQLite store at %s", path)
	return newSQLStore(db, sqliteDialect, logger), nil
}
