package models

import (
	"sync"
	"time"
)

// RunContext carries the state of one run through every stage of the pipeline.
// Detail workers report into it concurrently, so counters are guarded.
type RunContext struct {
	Run *SyncRun
	// Now is the reference time of the run: year inference and lastSeenAt use it
	Now time.Time

	mu     sync.Mutex
	misses map[string]int
}

// NewRunContext creates the context for a freshly started run
func NewRunContext(run *SyncRun) *RunContext {
	return &RunContext{
		Run:    run,
		Now:    run.StartedAt,
		misses: make(map[string]int),
	}
}

func (rc *RunContext) NavigationError() {
	rc.mu.Lock()
	rc.Run.NavigationErrors++
	rc.mu.Unlock()
}

func (rc *RunContext) ExtractionMiss() {
	rc.mu.Lock()
	rc.Run.ExtractionMisses++
	rc.mu.Unlock()
}

// NormalizationMiss records a free-text field of the given class that no rule could parse
func (rc *RunContext) NormalizationMiss(field string) {
	rc.mu.Lock()
	rc.Run.NormalizationMisses++
	rc.misses[field]++
	rc.mu.Unlock()
}

func (rc *RunContext) ClassificationMiss() {
	rc.mu.Lock()
	rc.Run.ClassificationMisses++
	rc.mu.Unlock()
}

func (rc *RunContext) DetailTimeout() {
	rc.mu.Lock()
	rc.Run.DetailTimeouts++
	rc.mu.Unlock()
}

func (rc *RunContext) DetailError() {
	rc.mu.Lock()
	rc.Run.DetailErrors++
	rc.mu.Unlock()
}

// SetRecordsSeen stores the number of distinct activities the run produced
func (rc *RunContext) SetRecordsSeen(n int) {
	rc.mu.Lock()
	rc.Run.RecordsSeen = n
	rc.mu.Unlock()
}

// MissesByField returns a copy of the normalization misses per field class
func (rc *RunContext) MissesByField() map[string]int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string]int, len(rc.misses))
	for k, v := range rc.misses {
		out[k] = v
	}
	return out
}

// Diagnostics returns a snapshot of the recovered-problem counters
func (rc *RunContext) Diagnostics() RunDiagnostics {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.Run.RunDiagnostics
}
