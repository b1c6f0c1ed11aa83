package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"activity-sync/models"
	"activity-sync/utils"
)

// dialect captures the differences between the PostgreSQL and SQLite stores
type dialect struct {
	name   string
	schema []string
	// positional placeholders are written as $N and rewritten to ? when set
	questionMarks bool
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

func (d dialect) rebind(query string) string {
	if !d.questionMarks {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

// activityColumns in insert order; the first two form the identity
var activityColumns = []string{
	"source_id", "external_id", "name", "category_path", "sessions", "start_date", "end_date",
	"age_min", "age_max", "cost_amount", "tax_included", "registration_status", "spots_available",
	"location", "detail_url", "description", "what_to_bring", "prerequisites",
	"activity_type", "activity_subtype", "activity_type_id", "activity_subtype_id", "match_method",
	"age_category", "requires_parent", "content_hash",
	"is_active", "first_seen_at", "last_seen_at",
}

var (
	upsertActivitySQL = buildUpsertSQL()
	selectActivitySQL = "SELECT " + strings.Join(activityColumns, ", ") + " FROM activities"
)

func buildUpsertSQL() string {
	marks := make([]string, len(activityColumns))
	for i := range marks {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	var set []string
	for _, c := range activityColumns[2:] {
		if c == "first_seen_at" {
			continue
		}
		set = append(set, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf(
		"INSERT INTO activities (%s) VALUES (%s) ON CONFLICT (source_id, external_id) DO UPDATE SET %s",
		strings.Join(activityColumns, ", "), strings.Join(marks, ", "), strings.Join(set, ", "),
	)
}

// SQLStore implements Store on database/sql for both supported dialects
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *utils.Logger
}

func newSQLStore(db *sql.DB, d dialect, logger *utils.Logger) *SQLStore {
	return &SQLStore{db: db, dialect: d, logger: logger}
}

// DB exposes the underlying pool so other components (the run lock) can share it
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Dialect returns "postgres" or "sqlite"
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

func (s *SQLStore) q(query string) string {
	return s.dialect.rebind(query)
}

// Migrate creates the tables and indexes if they don't exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s schema: %w", s.dialect.name, err)
		}
	}
	s.logger.Info("Tables 'activities' and 'sync_runs' are ready (%s)", s.dialect.name)
	return nil
}

// Upsert inserts or refreshes one activity inside a transaction
func (s *SQLStore) Upsert(ctx context.Context, a *models.Activity, seenAt time.Time) (result UpsertResult, err error) {
	args, err := activityArgs(a, seenAt)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var one int
	err = tx.QueryRowContext(ctx,
		s.q(`SELECT 1 FROM activities WHERE source_id = $1 AND external_id = $2`),
		a.SourceID, a.ExternalID,
	).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result = UpsertCreated
	case err != nil:
		return "", fmt.Errorf("failed to look up %s/%s: %w", a.SourceID, a.ExternalID, err)
	default:
		result = UpsertUpdated
	}

	if _, err = tx.ExecContext(ctx, s.q(upsertActivitySQL), args...); err != nil {
		return "", fmt.Errorf("failed to upsert %s/%s: %w", a.SourceID, a.ExternalID, err)
	}
	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// Touch bumps last_seen_at for unchanged activities in a single transaction
func (s *SQLStore) Touch(ctx context.Context, sourceID string, externalIDs []string, seenAt time.Time) error {
	_, err := s.batchUpdate(ctx,
		`UPDATE activities SET last_seen_at = $1, is_active = TRUE WHERE source_id = $2 AND external_id = $3`,
		externalIDs, func(id string) []any { return []any{seenAt, sourceID, id} },
	)
	return err
}

// Retire marks the given activities inactive; returns how many actually changed
func (s *SQLStore) Retire(ctx context.Context, sourceID string, externalIDs []string) (int, error) {
	return s.batchUpdate(ctx,
		`UPDATE activities SET is_active = FALSE WHERE source_id = $1 AND external_id = $2 AND is_active = TRUE`,
		externalIDs, func(id string) []any { return []any{sourceID, id} },
	)
}

func (s *SQLStore) batchUpdate(ctx context.Context, query string, ids []string, args func(string) []any) (affected int, err error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.q(query))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		var res sql.Result
		res, err = stmt.ExecContext(ctx, args(id)...)
		if err != nil {
			return 0, fmt.Errorf("failed to update %s: %w", id, err)
		}
		if n, rerr := res.RowsAffected(); rerr == nil {
			affected += int(n)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return affected, nil
}

// ListActive returns external id -> content hash for the source's active activities
func (s *SQLStore) ListActive(ctx context.Context, sourceID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT external_id, content_hash FROM activities WHERE source_id = $1 AND is_active = TRUE`),
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active activities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan active activity: %w", err)
		}
		out[id] = hash
	}
	return out, rows.Err()
}

// ListActiveIDs returns the set of active external ids for the source
func (s *SQLStore) ListActiveIDs(ctx context.Context, sourceID string) (map[string]struct{}, error) {
	active, err := s.ListActive(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(active))
	for id := range active {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// Get loads one activity by identity
func (s *SQLStore) Get(ctx context.Context, sourceID, externalID string) (*models.Activity, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(selectActivitySQL+` WHERE source_id = $1 AND external_id = $2`),
		sourceID, externalID,
	)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %s/%s: %w", sourceID, externalID, ErrNotFound)
	}
	return a, err
}

// StartRun records a run as running
func (s *SQLStore) StartRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO sync_runs (id, source_id, started_at, outcome) VALUES ($1, $2, $3, $4)`),
		run.ID, run.SourceID, run.StartedAt, string(run.Outcome),
	)
	if err != nil {
		return fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun writes the final outcome and counts; only the first call succeeds
func (s *SQLStore) FinishRun(ctx context.Context, run *models.SyncRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	diag, err := json.Marshal(run.RunDiagnostics)
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE sync_runs
		SET finished_at = $1, outcome = $2, message = $3, created = $4, updated = $5,
		    unchanged = $6, retired = $7, errors = $8, diagnostics = $9
		WHERE id = $10 AND finished_at IS NULL`),
		*run.FinishedAt, string(run.Outcome), run.Message, run.Created, run.Updated,
		run.Unchanged, run.Retired, run.Errors, string(diag), run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	var one int
	err = s.db.QueryRowContext(ctx, s.q(`SELECT 1 FROM sync_runs WHERE id = $1`), run.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up run %s: %w", run.ID, err)
	}
	return fmt.Errorf("run %s: %w", run.ID, ErrRunFinalized)
}

// ListRuns returns the most recent runs of a source, newest first
func (s *SQLStore) ListRuns(ctx context.Context, sourceID string, limit int) ([]*models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, source_id, started_at, finished_at, outcome, message,
		       created, updated, unchanged, retired, errors, diagnostics
		FROM sync_runs WHERE source_id = $1
		ORDER BY started_at DESC LIMIT $2`),
		sourceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		var (
			r        models.SyncRun
			finished sql.NullTime
			outcome  string
			message  sql.NullString
			diag     []byte
		)
		if err := rows.Scan(&r.ID, &r.SourceID, &r.StartedAt, &finished, &outcome, &message,
			&r.Created, &r.Updated, &r.Unchanged, &r.Retired, &r.Errors, &diag); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Outcome = models.RunOutcome(outcome)
		r.Message = message.String
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		if len(diag) > 0 {
			if err := json.Unmarshal(diag, &r.RunDiagnostics); err != nil {
				s.logger.Warn("Run %s has unreadable diagnostics: %v", r.ID, err)
			}
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func activityArgs(a *models.Activity, seenAt time.Time) ([]any, error) {
	category, err := json.Marshal(nonNil(a.CategoryPath))
	if err != nil {
		return nil, fmt.Errorf("failed to encode category path: %w", err)
	}
	sessions, err := json.Marshal(a.Sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sessions: %w", err)
	}
	prereqs, err := json.Marshal(a.Prerequisites)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prerequisites: %w", err)
	}
	if a.Sessions == nil {
		sessions = []byte("[]")
	}
	if a.Prerequisites == nil {
		prereqs = []byte("[]")
	}

	var cost any
	taxIncluded := false
	if a.Cost != nil {
		cost = a.Cost.Amount
		taxIncluded = a.Cost.TaxIncluded
	}
	c := a.Classification
	return []any{
		a.SourceID, a.ExternalID, a.Name, string(category), string(sessions),
		nullTime(a.StartDate), nullTime(a.EndDate),
		nullInt(a.AgeMin), nullInt(a.AgeMax), cost, taxIncluded,
		string(a.RegistrationStatus), nullInt(a.SpotsAvailable),
		a.Location, a.DetailURL, a.Description, a.WhatToBring, string(prereqs),
		c.Type, nullString(c.Subtype), c.TypeID, nullString(c.SubtypeID), c.Method,
		c.AgeCategory, c.RequiresParent, a.Fingerprint(),
		true, seenAt, seenAt,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(row scanner) (*models.Activity, error) {
	var (
		a                           models.Activity
		category, sessions, prereqs []byte
		startDate, endDate          sql.NullTime
		ageMin, ageMax, spots       sql.NullInt64
		cost                        sql.NullFloat64
		taxIncluded                 bool
		status                      string
		subtype, subtypeID          sql.NullString
		contentHash                 string
	)
	err := row.Scan(
		&a.SourceID, &a.ExternalID, &a.Name, &category, &sessions, &startDate, &endDate,
		&ageMin, &ageMax, &cost, &taxIncluded, &status, &spots,
		&a.Location, &a.DetailURL, &a.Description, &a.WhatToBring, &prereqs,
		&a.Classification.Type, &subtype, &a.Classification.TypeID, &subtypeID, &a.Classification.Method,
		&a.Classification.AgeCategory, &a.Classification.RequiresParent, &contentHash,
		&a.IsActive, &a.FirstSeenAt, &a.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(category, &a.CategoryPath); err != nil {
		return nil, fmt.Errorf("failed to decode category path: %w", err)
	}
	if err := json.Unmarshal(sessions, &a.Sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	if err := json.Unmarshal(prereqs, &a.Prerequisites); err != nil {
		return nil, fmt.Errorf("failed to decode prerequisites: %w", err)
	}
	if len(a.Sessions) == 0 {
		a.Sessions = nil
	}
	if len(a.Prerequisites) == 0 {
		a.Prerequisites = nil
	}
	a.StartDate = timePtr(startDate)
	a.EndDate = timePtr(endDate)
	a.AgeMin = intPtr(ageMin)
	a.AgeMax = intPtr(ageMax)
	a.SpotsAvailable = intPtr(spots)
	if cost.Valid {
		a.Cost = &models.Cost{Amount: cost.Float64, TaxIncluded: taxIncluded}
	}
	a.RegistrationStatus = models.RegistrationStatus(status)
	if !a.RegistrationStatus.Valid() {
		a.RegistrationStatus = models.StatusUnknown
	}
	if subtype.Valid {
		a.Classification.Subtype = &subtype.String
	}
	if subtypeID.Valid {
		a.Classification.SubtypeID = &subtypeID.String
	}
	return &a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
