// Package driver implements the Continuous Driver (spec.md §4.H): the
// single long-running loop that reads progress, keeps the queue filled,
// and reports status until the target property count is reached or a
// shutdown signal arrives.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/common"
	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/queue"
	"github.com/ternarybob/tcad-harvester/internal/termgen"
)

// Driver owns the refill loop and the separate reporting ticker.
type Driver struct {
	properties interfaces.PropertyStore
	jobs       interfaces.JobStore
	queue      *queue.Queue
	generator  *termgen.Generator
	logger     arbor.ILogger
	cfg        common.DriverConfig

	startedAt     time.Time
	startingCount int
}

// New creates a Driver.
func New(
	properties interfaces.PropertyStore,
	jobs interfaces.JobStore,
	q *queue.Queue,
	generator *termgen.Generator,
	logger arbor.ILogger,
	cfg common.DriverConfig,
) *Driver {
	return &Driver{
		properties: properties,
		jobs:       jobs,
		queue:      q,
		generator:  generator,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run executes the startup policy gate, then the refill loop and its
// reporting ticker, until the target is reached or ctx is cancelled
// (spec.md §4.H, §5 cancellation: "Driver stops refilling" first).
func (d *Driver) Run(ctx context.Context) error {
	if err := d.applyStartupPolicy(ctx); err != nil {
		return fmt.Errorf("driver: startup policy: %w", err)
	}

	d.startedAt = time.Now()
	startingCount, err := d.properties.Count(ctx)
	if err != nil {
		return fmt.Errorf("driver: initial property count: %w", err)
	}
	d.startingCount = startingCount

	reportCtx, stopReporting := context.WithCancel(ctx)
	defer stopReporting()
	common.SafeGoWithContext(reportCtx, d.logger, "driver-report-loop", func() {
		d.reportLoop(reportCtx)
	})

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("Driver: shutdown signal received, stopping refill loop")
			return nil
		default:
		}

		currentCount, err := d.properties.Count(ctx)
		if err != nil {
			return fmt.Errorf("driver: count properties: %w", err)
		}
		if currentCount >= d.cfg.TargetProperties {
			d.logger.Info().Int("current", currentCount).Int("target", d.cfg.TargetProperties).Msg("Driver: target reached")
			return nil
		}

		if err := d.maybeRefill(ctx); err != nil {
			d.logger.Error().Err(err).Msg("Driver: refill failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.cfg.DelayBetweenBatches):
		}
	}
}

// applyStartupPolicy clears stale pending jobs when CleanStart is enabled;
// otherwise leaves them for the worker pool to resume (spec.md §4.H: "clean
// start mode vs a resume mode").
func (d *Driver) applyStartupPolicy(ctx context.Context) error {
	if !d.cfg.CleanStart {
		d.logger.Info().Msg("Driver: resume mode, leaving pending jobs in place")
		return nil
	}

	removed, err := d.jobs.DeletePendingCreatedBefore(ctx, time.Now())
	if err != nil {
		return err
	}
	d.logger.Info().Int("removed", removed).Msg("Driver: clean start, cleared leftover pending jobs")
	return nil
}

// maybeRefill enqueues a fresh batch of terms when the queue depth is below
// the configured refill threshold (spec.md §4.H step 2).
func (d *Driver) maybeRefill(ctx context.Context) error {
	stats, err := d.queue.Stats(ctx)
	if err != nil {
		return fmt.Errorf("queue stats: %w", err)
	}

	depth := stats.Pending + stats.Active
	if depth >= d.cfg.QueueRefillThreshold {
		return nil
	}

	terms, err := d.generator.NextBatch(ctx, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("generate batch: %w", err)
	}
	if len(terms) == 0 {
		d.logger.Warn().Msg("Driver: term generator returned an empty batch")
		return nil
	}

	opts := queue.DefaultEnqueueOptions()
	enqueued := 0
	for _, term := range terms {
		if _, err := d.queue.Enqueue(ctx, term, opts); err != nil {
			d.logger.Error().Err(err).Str("term", term).Msg("Driver: enqueue failed")
			continue
		}
		enqueued++
	}

	d.logger.Info().
		Int("requested", len(terms)).
		Int("enqueued", enqueued).
		Int("queue_depth_before", depth).
		Msg("Driver: refilled queue")
	return nil
}

// reportLoop logs a progress summary every CheckInterval until ctx is
// cancelled (spec.md §4.H step 4).
func (d *Driver) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.report(ctx)
		}
	}
}

func (d *Driver) report(ctx context.Context) {
	currentCount, err := d.properties.Count(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("Driver: report: count properties failed")
		return
	}

	stats, err := d.queue.Stats(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("Driver: report: queue stats failed")
		return
	}

	elapsed := time.Since(d.startedAt)
	delta := currentCount - d.startingCount
	remaining := d.cfg.TargetProperties - currentCount

	var eta string
	if delta > 0 && elapsed.Seconds() > 0 {
		rate := float64(delta) / elapsed.Seconds()
		etaSeconds := float64(remaining) / rate
		eta = time.Duration(etaSeconds * float64(time.Second)).Round(time.Second).String()
	} else {
		eta = "unknown"
	}

	d.logger.Info().
		Str("runtime", elapsed.Round(time.Second).String()).
		Int("current_count", currentCount).
		Int("target", d.cfg.TargetProperties).
		Int("new_since_start", delta).
		Int("queue_pending", stats.Pending).
		Int("queue_active", stats.Active).
		Int("queue_completed", stats.Completed).
		Int("queue_failed", stats.Failed).
		Str("estimated_time_remaining", eta).
		Msg("Driver: progress report")
}
