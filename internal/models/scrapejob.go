package models

import "time"

// JobStatus is the lifecycle state of a ScrapeJob.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusDelayed   JobStatus = "delayed"
)

// ScrapeJob is the durable record of one scrape attempt lineage for a term.
// It persists across retries; attempts counts every reservation, not just
// the final one.
type ScrapeJob struct {
	ID            string     `json:"id" badgerhold:"key"`
	SearchTerm    string     `json:"search_term" badgerhold:"index"`
	Status        JobStatus  `json:"status" badgerhold:"index"`
	Priority      int        `json:"priority"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	ResultCount   int        `json:"result_count"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at" badgerhold:"index"`
}

// NewScrapeJob creates a pending job record for a search term.
func NewScrapeJob(id, searchTerm string, priority, maxAttempts int, now time.Time) *ScrapeJob {
	return &ScrapeJob{
		ID:          id,
		SearchTerm:  searchTerm,
		Status:      JobStatusPending,
		Priority:    priority,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
	}
}

// TermHistory is the materialized per-term outcome view consulted by the
// Deduplicator (for the historical set) and the Optimizer (for metrics).
type TermHistory struct {
	SearchTerm       string    `json:"search_term" badgerhold:"key"`
	Runs             int       `json:"runs"`
	TotalResults     int       `json:"total_results"`
	RunsWithResults  int       `json:"runs_with_results"`
	TotalDurationSec float64   `json:"total_duration_sec"`
	LastUsedAt       time.Time `json:"last_used_at" badgerhold:"index"`
}

// SuccessRate is the fraction of runs that produced at least one result.
func (t *TermHistory) SuccessRate() float64 {
	if t.Runs == 0 {
		return 0
	}
	return float64(t.RunsWithResults) / float64(t.Runs)
}

// AvgResults is the mean results-per-run.
func (t *TermHistory) AvgResults() float64 {
	if t.Runs == 0 {
		return 0
	}
	return float64(t.TotalResults) / float64(t.Runs)
}

// Efficiency is results-per-second when duration has been tracked, falling
// back to AvgResults when it has not (spec.md §4.G).
func (t *TermHistory) Efficiency() float64 {
	if t.TotalDurationSec <= 0 {
		return t.AvgResults()
	}
	return float64(t.TotalResults) / t.TotalDurationSec
}

// RecordRun folds one completed job outcome into the history, mirroring the
// teacher's read-modify-write update pattern (storage/badger/job_storage.go
// UpdateProgressCountersAtomic) adapted to term statistics.
func (t *TermHistory) RecordRun(resultCount int, durationSec float64, now time.Time) {
	t.Runs++
	t.TotalResults += resultCount
	if resultCount > 0 {
		t.RunsWithResults++
	}
	t.TotalDurationSec += durationSec
	t.LastUsedAt = now
}
