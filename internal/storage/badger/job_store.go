package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/models"
)

// JobStore implements interfaces.JobStore, the durable record of every
// ScrapeJob (spec.md §4.F). The queue transport (goqite) only carries the
// job ID and payload; this store carries status, attempt history, and
// results for reporting and the "resume, don't restart" driver policy.
type JobStore struct {
	db     *DB
	logger arbor.ILogger
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *DB, logger arbor.ILogger) interfaces.JobStore {
	return &JobStore{db: db, logger: logger}
}

// Save inserts or overwrites a ScrapeJob by ID.
func (s *JobStore) Save(ctx context.Context, job *models.ScrapeJob) error {
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns a job by ID, or nil if it doesn't exist.
func (s *JobStore) Get(ctx context.Context, id string) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	if err := s.db.Store().Get(id, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// CountByStatus returns the number of jobs in a given status, used for
// queue-depth reporting and the driver's refill threshold check.
func (s *JobStore) CountByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	n, err := s.db.Store().Count(&models.ScrapeJob{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, fmt.Errorf("count jobs by status %s: %w", status, err)
	}
	return int(n), nil
}

// DeletePendingCreatedBefore removes stale pending jobs older than the given
// time, used by the driver's clean-start policy (spec.md §4.H) when
// cleanStart is enabled.
func (s *JobStore) DeletePendingCreatedBefore(ctx context.Context, before time.Time) (int, error) {
	query := badgerhold.Where("Status").Eq(models.JobStatusPending).And("CreatedAt").Lt(before)

	var stale []models.ScrapeJob
	if err := s.db.Store().Find(&stale, query); err != nil {
		return 0, fmt.Errorf("find stale pending jobs: %w", err)
	}

	if err := s.db.Store().DeleteMatching(&models.ScrapeJob{}, query); err != nil {
		return 0, fmt.Errorf("delete stale pending jobs: %w", err)
	}

	return len(stale), nil
}

// Delete hard-deletes a single job record.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.ScrapeJob{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}
