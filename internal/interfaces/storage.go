// Package interfaces holds the storage and service contracts shared across
// components, so concrete implementations (badger-backed stores, the goqite
// transport) can be swapped without touching callers.
package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/tcad-harvester/internal/models"
)

// PropertyStore is the only mutator of the Property table (spec.md §3
// Ownership & lifecycle). Upsert must distinguish insert from update
// atomically, in a single call, per record.
type PropertyStore interface {
	// Upsert writes one property row and reports whether it was newly
	// inserted (true) or an existing row was updated (false).
	Upsert(ctx context.Context, rec *models.PropertyRecord, now time.Time) (inserted bool, err error)
	// UpsertChunk writes every record in one storage transaction: either the
	// whole chunk lands, or none of it does and the caller's conflict retry
	// re-applies the full chunk (spec.md §4.E: "the pipeline is atomic per
	// chunk"). inserted[i] reports whether records[i] was newly inserted.
	UpsertChunk(ctx context.Context, records []*models.PropertyRecord, now time.Time) (inserted []bool, err error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, propertyID string) (*models.Property, error)
}

// JobStore persists ScrapeJob records (the durable lineage of attempts for
// a term) independent of the in-flight queue transport.
type JobStore interface {
	Save(ctx context.Context, job *models.ScrapeJob) error
	Get(ctx context.Context, id string) (*models.ScrapeJob, error)
	CountByStatus(ctx context.Context, status models.JobStatus) (int, error)
	DeletePendingCreatedBefore(ctx context.Context, before time.Time) (int, error)
	// Delete hard-deletes a single job record, used by the queue's remove()
	// (spec.md §4.F) for deduplication cleanup.
	Delete(ctx context.Context, id string) error
}

// TermHistoryStore is the materialized view read by the Optimizer and the
// Deduplicator's authoritative set.
type TermHistoryStore interface {
	Record(ctx context.Context, term string, resultCount int, durationSec float64, now time.Time) error
	// MarkSeen registers a term as enqueued without touching any existing
	// run statistics. Called from the Job Queue at enqueue time so a term
	// that is still pending or active is already part of HistoricalTerms,
	// not just terms whose job has completed or failed.
	MarkSeen(ctx context.Context, term string) error
	Get(ctx context.Context, term string) (*models.TermHistory, error)
	All(ctx context.Context) ([]*models.TermHistory, error)
	// HistoricalTerms returns every search term ever enqueued, regardless of
	// outcome — the set consulted by the Deduplicator.
	HistoricalTerms(ctx context.Context) ([]string, error)
}

// TokenProvider supplies the process-wide upstream bearer token.
type TokenProvider interface {
	Current() (string, bool)
}
