package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"maragu.dev/goqite"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tcad-harvester/internal/common"
	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/models"
	"github.com/ternarybob/tcad-harvester/internal/scraper"
)

// Queue is the Job Queue (spec.md §4.F): a bucketed set of goqite queues,
// one per configured priority level, with job status/attempts delegated to
// the JobStore. Reserve tries buckets lowest-number-first, matching "lower
// priority number preferred" (spec.md §5).
type Queue struct {
	logger  arbor.ILogger
	jobs    interfaces.JobStore
	history interfaces.TermHistoryStore
	cfg     common.QueueConfig
	buckets []int           // sorted ascending
	queues  map[int]*goqite.Queue
}

// New opens one goqite queue per configured priority bucket against db.
// cfg.PriorityBuckets is a count of levels (default 10); buckets are the
// priority values 1..count, 1 being highest priority. history records each
// enqueued term as "seen" (spec.md §4.B's HistoricalTermSet) independent of
// job outcome.
func New(logger arbor.ILogger, db *sql.DB, jobs interfaces.JobStore, history interfaces.TermHistoryStore, cfg common.QueueConfig) (*Queue, error) {
	n := cfg.PriorityBuckets
	if n <= 0 {
		n = 10
	}
	buckets := make([]int, n)
	for i := range buckets {
		buckets[i] = i + 1
	}
	sort.Ints(buckets)

	queues := make(map[int]*goqite.Queue, len(buckets))
	for _, p := range buckets {
		name := fmt.Sprintf("%s-p%d", cfg.QueueNamePrefix, p)
		queues[p] = goqite.New(goqite.NewOpts{
			DB:         db,
			Name:       name,
			MaxReceive: cfg.MaxAttempts,
			Timeout:    cfg.VisibilityTimeout,
		})
	}

	return &Queue{
		logger:  logger,
		jobs:    jobs,
		history: history,
		cfg:     cfg,
		buckets: buckets,
		queues:  queues,
	}, nil
}

// bucketFor returns the configured bucket closest to (but not smaller than)
// the requested priority, falling back to the highest-numbered (most
// deprioritized) bucket if the request exceeds every configured bucket.
func (q *Queue) bucketFor(priority int) int {
	for _, b := range q.buckets {
		if priority <= b {
			return b
		}
	}
	return q.buckets[len(q.buckets)-1]
}

// Enqueue adds a new ScrapeJob and its transport message (spec.md §4.F).
func (q *Queue) Enqueue(ctx context.Context, searchTerm string, opts EnqueueOptions) (string, error) {
	if opts.Priority == 0 {
		opts.Priority = 10
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = q.cfg.MaxAttempts
	}

	jobID := common.NewJobID()
	job := models.NewScrapeJob(jobID, searchTerm, opts.Priority, opts.MaxAttempts, time.Now())

	if err := q.jobs.Save(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue: save job: %w", err)
	}

	if q.history != nil {
		if err := q.history.MarkSeen(ctx, searchTerm); err != nil {
			return "", fmt.Errorf("enqueue: mark term seen: %w", err)
		}
	}

	if err := q.send(ctx, job, opts.DelayMs); err != nil {
		return "", fmt.Errorf("enqueue: send message: %w", err)
	}

	return jobID, nil
}

func (q *Queue) send(ctx context.Context, job *models.ScrapeJob, delayMs int) error {
	bucket := q.bucketFor(job.Priority)
	payload, err := json.Marshal(Payload{Kind: ScrapePropertiesKind, JobID: job.ID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := goqite.Message{Body: payload}
	if delayMs > 0 {
		msg.Delay = time.Duration(delayMs) * time.Millisecond
	}

	return q.queues[bucket].Send(ctx, msg)
}

// Reserve polls buckets lowest-priority-number-first and atomically marks
// the first available job active (spec.md §4.F).
func (q *Queue) Reserve(ctx context.Context) (*Reservation, error) {
	for _, bucket := range q.buckets {
		gmsg, err := q.queues[bucket].Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("reserve: receive from bucket %d: %w", bucket, err)
		}
		if gmsg == nil {
			continue
		}

		var payload Payload
		if err := json.Unmarshal(gmsg.Body, &payload); err != nil {
			q.logger.Warn().Err(err).Msg("Reserve: malformed payload, dropping message")
			_ = q.queues[bucket].Delete(ctx, gmsg.ID)
			continue
		}

		job, err := q.jobs.Get(ctx, payload.JobID)
		if err != nil {
			return nil, fmt.Errorf("reserve: load job %s: %w", payload.JobID, err)
		}
		if job == nil {
			q.logger.Warn().Str("job_id", payload.JobID).Msg("Reserve: job record missing, dropping message")
			_ = q.queues[bucket].Delete(ctx, gmsg.ID)
			continue
		}

		now := time.Now()
		job.Status = models.JobStatusActive
		job.StartedAt = &now
		job.Attempts++
		if err := q.jobs.Save(ctx, job); err != nil {
			return nil, fmt.Errorf("reserve: mark active: %w", err)
		}

		return &Reservation{
			JobID:      job.ID,
			SearchTerm: job.SearchTerm,
			Priority:   job.Priority,
			Attempts:   job.Attempts,
			bucketIdx:  bucket,
			msgID:      string(gmsg.ID),
		}, nil
	}

	return nil, nil // no pending job in any bucket
}

// Complete marks a reservation completed and deletes its transport message.
func (q *Queue) Complete(ctx context.Context, r *Reservation, resultCount int) error {
	job, err := q.jobs.Get(ctx, r.JobID)
	if err != nil {
		return fmt.Errorf("complete: load job %s: %w", r.JobID, err)
	}
	if job == nil {
		return fmt.Errorf("complete: job %s not found", r.JobID)
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	job.ResultCount = resultCount

	if err := q.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("complete: save job: %w", err)
	}

	return q.queues[r.bucketIdx].Delete(ctx, goqite.ID(r.msgID))
}

// Fail marks active → failed if attempts ≥ maxAttempts, or if cause is a
// non-retryable classified scrape error (auth, fallback-exhausted — spec.md
// §7, Testable Property 6), else re-enqueues with exponential backoff and
// attempts already incremented (spec.md §4.F).
func (q *Queue) Fail(ctx context.Context, r *Reservation, cause error) error {
	job, err := q.jobs.Get(ctx, r.JobID)
	if err != nil {
		return fmt.Errorf("fail: load job %s: %w", r.JobID, err)
	}
	if job == nil {
		return fmt.Errorf("fail: job %s not found", r.JobID)
	}

	if err := q.queues[r.bucketIdx].Delete(ctx, goqite.ID(r.msgID)); err != nil {
		q.logger.Warn().Err(err).Str("job_id", r.JobID).Msg("Fail: could not delete original message")
	}

	var scrapeErr *scraper.Error
	nonRetryable := errors.As(cause, &scrapeErr) && !scrapeErr.Retryable()

	if job.Attempts >= job.MaxAttempts || nonRetryable {
		job.Status = models.JobStatusFailed
		if cause != nil {
			job.FailureReason = cause.Error()
		}
		now := time.Now()
		job.CompletedAt = &now
		return q.jobs.Save(ctx, job)
	}

	job.Status = models.JobStatusPending
	if err := q.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("fail: save retry state: %w", err)
	}

	backoff := q.cfg.RetryBaseDelay
	for i := 1; i < job.Attempts; i++ {
		backoff = time.Duration(float64(backoff) * q.cfg.RetryFactor)
	}

	return q.send(ctx, job, int(backoff.Milliseconds()))
}

// Remove hard-deletes a pending or delayed job, used for deduplication
// cleanup (spec.md §4.F). Since goqite does not expose lookup by arbitrary
// key, Remove only clears the JobStore record; the transport message (if
// still pending) will be dropped by Reserve when its job is found missing.
func (q *Queue) Remove(ctx context.Context, jobID string) error {
	job, err := q.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("remove: load job %s: %w", jobID, err)
	}
	if job == nil {
		return nil
	}
	return q.jobs.Delete(ctx, jobID)
}

// Stats returns counts by state across all buckets.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error
	if s.Pending, err = q.jobs.CountByStatus(ctx, models.JobStatusPending); err != nil {
		return s, err
	}
	if s.Active, err = q.jobs.CountByStatus(ctx, models.JobStatusActive); err != nil {
		return s, err
	}
	if s.Completed, err = q.jobs.CountByStatus(ctx, models.JobStatusCompleted); err != nil {
		return s, err
	}
	if s.Failed, err = q.jobs.CountByStatus(ctx, models.JobStatusFailed); err != nil {
		return s, err
	}
	return s, nil
}
