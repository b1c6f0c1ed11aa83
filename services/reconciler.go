package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"activity-sync/models"
	"activity-sync/storage"
	"activity-sync/utils"
)

// ErrGuardAbort is returned when a run looks too degraded to be trusted.
// Nothing has been written when it is returned.
var ErrGuardAbort = errors.New("aborted by safety guard")

// Plan is the identity diff between a run and the store's active snapshot
type Plan struct {
	ToCreate    []*models.Activity
	ToUpdate    []*models.Activity
	Unchanged   []string
	ToRetire    []string
	PriorActive int
	// ActiveAfter is the size of the active set once the plan was applied
	ActiveAfter int
}

// Seen is the number of distinct identities found by the run
func (p *Plan) Seen() int {
	return len(p.ToCreate) + len(p.ToUpdate) + len(p.Unchanged)
}

// BuildPlan diffs the current activities against prior, which maps each active
// external id to its content fingerprint. Duplicate identities are merged first.
func BuildPlan(current []*models.Activity, prior map[string]string) *Plan {
	plan := &Plan{PriorActive: len(prior)}
	merged := MergeDuplicates(current)

	seen := make(map[string]bool, len(merged))
	for _, a := range merged {
		seen[a.ExternalID] = true
		fp, ok := prior[a.ExternalID]
		switch {
		case !ok:
			plan.ToCreate = append(plan.ToCreate, a)
		case fp == a.Fingerprint():
			plan.Unchanged = append(plan.Unchanged, a.ExternalID)
		default:
			plan.ToUpdate = append(plan.ToUpdate, a)
		}
	}
	for id := range prior {
		if !seen[id] {
			plan.ToRetire = append(plan.ToRetire, id)
		}
	}
	sort.Strings(plan.ToRetire)
	return plan
}

// MergeDuplicates collapses activities sharing an external id, e.g. one course
// listed under two categories. The first occurrence keeps its fields and gains
// the sessions of the others.
func MergeDuplicates(activities []*models.Activity) []*models.Activity {
	index := make(map[string]int, len(activities))
	copied := make(map[string]bool)
	var out []*models.Activity
	for _, a := range activities {
		i, ok := index[a.ExternalID]
		if !ok {
			index[a.ExternalID] = len(out)
			out = append(out, a)
			continue
		}
		if !copied[a.ExternalID] {
			c := *out[i]
			c.Sessions = append([]models.Session(nil), out[i].Sessions...)
			out[i] = &c
			copied[a.ExternalID] = true
		}
		first := out[i]
		first.Sessions = dedupeSessions(append(first.Sessions, a.Sessions...))
		if a.StartDate != nil && (first.StartDate == nil || a.StartDate.Before(*first.StartDate)) {
			first.StartDate = a.StartDate
		}
		if a.EndDate != nil && (first.EndDate == nil || a.EndDate.After(*first.EndDate)) {
			first.EndDate = a.EndDate
		}
	}
	return out
}

// Reconciler applies a run's activities to the store behind the safety guard
type Reconciler struct {
	store          storage.ActivityStore
	threshold      int
	maxRetireRatio float64
	logger         *utils.Logger
}

// NewReconciler creates a reconciler. threshold is the minimum number of
// records a run needs; maxRetireRatio > 0 also limits the share of the active
// set a single run may retire.
func NewReconciler(store storage.ActivityStore, threshold int, maxRetireRatio float64, logger *utils.Logger) *Reconciler {
	return &Reconciler{
		store:          store,
		threshold:      threshold,
		maxRetireRatio: maxRetireRatio,
		logger:         logger,
	}
}

// Reconcile loads the source's active snapshot, plans the diff and applies it
func (r *Reconciler) Reconcile(ctx context.Context, rc *models.RunContext, current []*models.Activity) (*Plan, error) {
	prior, err := r.store.ListActive(ctx, rc.Run.SourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active snapshot: %w", err)
	}
	plan := BuildPlan(current, prior)
	rc.SetRecordsSeen(plan.Seen())
	r.logger.Info("Plan: %d new, %d changed, %d unchanged, %d to retire (%d active before)",
		len(plan.ToCreate), len(plan.ToUpdate), len(plan.Unchanged), len(plan.ToRetire), plan.PriorActive)

	return plan, r.Apply(ctx, rc, plan)
}

// Guard returns ErrGuardAbort when the plan must not be applied
func (r *Reconciler) Guard(plan *Plan) error {
	seen := plan.Seen()
	if seen == 0 || seen < r.threshold {
		return fmt.Errorf("%w: %d records found, minimum is %d", ErrGuardAbort, seen, r.threshold)
	}
	if r.maxRetireRatio > 0 && plan.PriorActive > 0 {
		ratio := float64(len(plan.ToRetire)) / float64(plan.PriorActive)
		if ratio > r.maxRetireRatio {
			return fmt.Errorf("%w: would retire %d of %d active records (limit %.0f%%)",
				ErrGuardAbort, len(plan.ToRetire), plan.PriorActive, r.maxRetireRatio*100)
		}
	}
	return nil
}

// Apply writes the plan. The guard runs first; when it fails nothing is
// written. A failing upsert is counted as an error and the batch continues.
func (r *Reconciler) Apply(ctx context.Context, rc *models.RunContext, plan *Plan) error {
	if err := r.Guard(plan); err != nil {
		r.logger.Warn("Store left untouched: %v", err)
		return err
	}

	var counts models.RunCounts
	seenAt := rc.Now
	sourceID := rc.Run.SourceID

	upserts := append(append([]*models.Activity(nil), plan.ToCreate...), plan.ToUpdate...)
	for _, a := range upserts {
		res, err := r.store.Upsert(ctx, a, seenAt)
		if err != nil {
			counts.Errors++
			r.logger.Warn("Upsert failed for %s '%s': %v", a.ExternalID, a.Name, err)
			continue
		}
		if res == storage.UpsertCreated {
			counts.Created++
		} else {
			counts.Updated++
		}
	}

	if len(plan.Unchanged) > 0 {
		if err := r.store.Touch(ctx, sourceID, plan.Unchanged, seenAt); err != nil {
			counts.Errors += len(plan.Unchanged)
			r.logger.Error("Failed to touch %d unchanged activities: %v", len(plan.Unchanged), err)
		} else {
			counts.Unchanged = len(plan.Unchanged)
		}
	}

	if len(plan.ToRetire) > 0 {
		n, err := r.store.Retire(ctx, sourceID, plan.ToRetire)
		if err != nil {
			counts.Errors += len(plan.ToRetire)
			r.logger.Error("Failed to retire %d activities: %v", len(plan.ToRetire), err)
		} else {
			counts.Retired = n
		}
	}

	rc.Run.RunCounts = counts
	r.logger.Info("Reconciled: %d created, %d updated, %d unchanged, %d retired, %d errors",
		counts.Created, counts.Updated, counts.Unchanged, counts.Retired, counts.Errors)

	active, err := r.store.ListActiveIDs(ctx, sourceID)
	if err != nil {
		r.logger.Warn("Failed to count active activities: %v", err)
		return nil
	}
	plan.ActiveAfter = len(active)
	activeGauge.WithLabelValues(sourceID).Set(float64(len(active)))
	return nil
}
