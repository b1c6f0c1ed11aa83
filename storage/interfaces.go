package storage

import (
	"context"
	"errors"
	"time"

	"activity-sync/models"
)

var (
	// ErrNotFound is returned when an activity or run does not exist
	ErrNotFound = errors.New("not found")
	// ErrRunFinalized is returned when finishing a run that was already finished
	ErrRunFinalized = errors.New("sync run already finalized")
)

// UpsertResult tells whether an upsert inserted a new identity or refreshed an existing one
type UpsertResult string

const (
	UpsertCreated UpsertResult = "created"
	UpsertUpdated UpsertResult = "updated"
)

// ActivityStore persists normalized activities keyed by (sourceId, externalId)
type ActivityStore interface {
	// Upsert writes a and marks it active with lastSeenAt = seenAt
	Upsert(ctx context.Context, a *models.Activity, seenAt time.Time) (UpsertResult, error)
	// Touch bumps lastSeenAt and reactivates the given identities without rewriting content
	Touch(ctx context.Context, sourceID string, externalIDs []string, seenAt time.Time) error
	// ListActive maps each active external id of the source to its content fingerprint
	ListActive(ctx context.Context, sourceID string) (map[string]string, error)
	ListActiveIDs(ctx context.Context, sourceID string) (map[string]struct{}, error)
	// Retire marks identities inactive without deleting them. lastSeenAt is left alone.
	Retire(ctx context.Context, sourceID string, externalIDs []string) (int, error)
	Get(ctx context.Context, sourceID, externalID string) (*models.Activity, error)
}

// RunStore persists sync run records
type RunStore interface {
	StartRun(ctx context.Context, run *models.SyncRun) error
	// FinishRun finalizes a run. A run can be finished exactly once.
	FinishRun(ctx context.Context, run *models.SyncRun) error
	ListRuns(ctx context.Context, sourceID string, limit int) ([]*models.SyncRun, error)
}

// Store is the full persistence contract used by the sync pipeline
type Store interface {
	ActivityStore
	RunStore
	Migrate(ctx context.Context) error
	Close() error
}

// RawStorage defines the interface for dumping raw scraped listings
type RawStorage interface {
	SaveRaw(listings []*models.Listing) error
}
