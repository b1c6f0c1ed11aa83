package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunOutcome is the final state of a sync run
type RunOutcome string

const (
	OutcomeRunning        RunOutcome = "running"
	OutcomeSucceeded      RunOutcome = "succeeded"
	OutcomeAbortedByGuard RunOutcome = "aborted_by_guard"
	OutcomeFailed         RunOutcome = "failed"
)

// RunCounts holds the reconciliation result of a run
type RunCounts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Retired   int `json:"retired"`
	Errors    int `json:"errors"`
}

// RunDiagnostics holds recovered, per-record problems seen during a run
type RunDiagnostics struct {
	RecordsSeen          int `json:"recordsSeen"`
	NavigationErrors     int `json:"navigationErrors"`
	ExtractionMisses     int `json:"extractionMisses"`
	NormalizationMisses  int `json:"normalizationMisses"`
	ClassificationMisses int `json:"classificationMisses"`
	DetailTimeouts       int `json:"detailTimeouts"`
	DetailErrors         int `json:"detailErrors"`
}

// SyncRun is one execution of the pipeline for one source. It is immutable once finished.
type SyncRun struct {
	ID         string     `json:"runId"`
	SourceID   string     `json:"sourceId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Outcome    RunOutcome `json:"outcome"`
	Message    string     `json:"message,omitempty"`
	RunCounts
	RunDiagnostics
}

// NewSyncRun starts a run record for the source
func NewSyncRun(sourceID string, startedAt time.Time) *SyncRun {
	return &SyncRun{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		StartedAt: startedAt,
		Outcome:   OutcomeRunning,
	}
}

// Finished reports whether the run has been finalized
func (r *SyncRun) Finished() bool {
	return r.FinishedAt != nil
}

// Summary renders the outcome so a quiet success can be told apart from a near-miss
func (r *SyncRun) Summary() string {
	switch r.Outcome {
	case OutcomeSucceeded:
		if r.Errors > 0 {
			return fmt.Sprintf("succeeded with %d errors", r.Errors)
		}
		return "succeeded"
	case OutcomeAbortedByGuard:
		return fmt.Sprintf("aborted by guard (%d records seen)", r.RecordsSeen)
	case OutcomeFailed:
		if r.Message != "" {
			return "failed: " + r.Message
		}
		return "failed"
	default:
		return string(r.Outcome)
	}
}

// RunReport is the externally published view of a finished run
type RunReport struct {
	RunID      string     `json:"runId"`
	SourceID   string     `json:"sourceId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Unchanged  int        `json:"unchanged"`
	Retired    int        `json:"retired"`
	Errors     int        `json:"errors"`
	Outcome    RunOutcome `json:"outcome"`
	Summary    string     `json:"summary"`
	RunDiagnostics
}

// Report builds the run report consumed by operational tooling
func (r *SyncRun) Report() RunReport {
	return RunReport{
		RunID:          r.ID,
		SourceID:       r.SourceID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Created:        r.Created,
		Updated:        r.Updated,
		Unchanged:      r.Unchanged,
		Retired:        r.Retired,
		Errors:         r.Errors,
		Outcome:        r.Outcome,
		Summary:        r.Summary(),
		RunDiagnostics: r.RunDiagnostics,
	}
}
