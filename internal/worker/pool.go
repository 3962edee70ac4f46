// Package worker ties the Job Queue, Scrape Executor, Upsert Pipeline, and
// TermHistoryStore together into a bounded pool of concurrent job
// processors (spec.md §4, concurrency model in §5), grounded on the
// teacher's internal/worker/pool.go worker-loop shape.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/common"
	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/queue"
	"github.com/ternarybob/tcad-harvester/internal/scraper"
	"github.com/ternarybob/tcad-harvester/internal/upsert"
)

// Pool manages a fixed number of worker goroutines, each reserving one job
// at a time from the Queue. The global active-job count is bounded by
// numWorkers (spec.md §5's "concurrency" configuration).
type Pool struct {
	queue    *queue.Queue
	executor *scraper.Executor
	upsert   *upsert.Pipeline
	history  interfaces.TermHistoryStore
	logger   arbor.ILogger

	numWorkers   int
	pollInterval time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a worker Pool. pollInterval governs how long a worker sleeps
// after finding no reservable job before polling the Queue again.
func New(
	q *queue.Queue,
	executor *scraper.Executor,
	pipeline *upsert.Pipeline,
	history interfaces.TermHistoryStore,
	logger arbor.ILogger,
	numWorkers int,
	pollInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		queue:        q,
		executor:     executor,
		upsert:       pipeline,
		history:      history,
		logger:       logger,
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches numWorkers goroutines, each running its own reserve loop.
// Each worker is panic-protected so one bad scrape can't take down the pool.
func (p *Pool) Start() {
	p.logger.Info().Int("num_workers", p.numWorkers).Msg("Starting worker pool")
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		workerID := i
		common.SafeGo(p.logger, fmt.Sprintf("worker-%d", workerID), func() {
			defer p.wg.Done()
			p.worker(workerID)
		})
	}
}

// Stop cancels the pool context, which every in-flight job also runs under,
// so each worker's current job stops at its next cancellation checkpoint.
// Stop then blocks until all workers have exited; it has no deadline of its
// own.
func (p *Pool) Stop() {
	p.logger.Info().Msg("Stopping worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Worker pool stopped")
}

func (p *Pool) worker(workerID int) {
	p.logger.Debug().Int("worker_id", workerID).Msg("Worker started")

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug().Int("worker_id", workerID).Msg("Worker stopping")
			return
		default:
		}

		processed, err := p.processNext(workerID)
		if err != nil {
			p.logger.Error().Err(err).Int("worker_id", workerID).Msg("Worker: reserve/process error")
		}
		if !processed {
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
		}
	}
}

// processNext reserves and runs at most one job. It returns (false, nil)
// when the queue had nothing to reserve, so the caller can back off.
func (p *Pool) processNext(workerID int) (bool, error) {
	r, err := p.queue.Reserve(p.ctx)
	if err != nil {
		return false, err
	}
	if r == nil {
		return false, nil
	}

	p.logger.Info().
		Int("worker_id", workerID).
		Str("job_id", r.JobID).
		Str("term", r.SearchTerm).
		Int("attempt", r.Attempts).
		Msg("Job reserved")

	start := time.Now()
	result, execErr := p.executor.Execute(p.ctx, r.SearchTerm)
	duration := time.Since(start).Seconds()

	if execErr != nil {
		p.logger.Warn().
			Err(execErr).
			Str("job_id", r.JobID).
			Str("term", r.SearchTerm).
			Msg("Job execution failed")
		if recErr := p.history.Record(p.ctx, r.SearchTerm, 0, duration, time.Now()); recErr != nil {
			p.logger.Warn().Err(recErr).Str("term", r.SearchTerm).Msg("Failed to record term history on failure")
		}
		if failErr := p.queue.Fail(p.ctx, r, execErr); failErr != nil {
			return true, failErr
		}
		return true, nil
	}

	rows, insertedCount, upsertErr := p.upsert.Upsert(p.ctx, result.Records)
	if upsertErr != nil {
		p.logger.Error().Err(upsertErr).Str("job_id", r.JobID).Msg("Upsert pipeline failed")
		if failErr := p.queue.Fail(p.ctx, r, upsertErr); failErr != nil {
			return true, failErr
		}
		return true, nil
	}

	// Per spec.md §4.E Aggregation: the history/optimizer signal is the
	// job's result-count (newly inserted rows), never the total scraped
	// row count — a re-scrape of an already-stored term must not inflate
	// a term's apparent yield.
	if recErr := p.history.Record(p.ctx, r.SearchTerm, insertedCount, duration, time.Now()); recErr != nil {
		p.logger.Warn().Err(recErr).Str("term", r.SearchTerm).Msg("Failed to record term history")
	}

	p.logger.Info().
		Str("job_id", r.JobID).
		Str("term", r.SearchTerm).
		Int("scraped", len(result.Records)).
		Int("rows", len(rows)).
		Int("inserted", insertedCount).
		Bool("used_dom_fallback", result.UsedDOM).
		Msg("Job completed")

	if completeErr := p.queue.Complete(p.ctx, r, insertedCount); completeErr != nil {
		return true, completeErr
	}
	return true, nil
}
