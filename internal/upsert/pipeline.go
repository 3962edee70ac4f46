// Package upsert implements the Upsert Pipeline's chunking and aggregation
// policy (spec.md §4.E) atop interfaces.PropertyStore, which owns the
// atomic insert-vs-update primitive (per record and per chunk).
package upsert

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/models"
)

// defaultChunkSize matches spec.md §4.E's "~50" bulk-write chunk size.
const defaultChunkSize = 50

// Pipeline chunks incoming records and aggregates the insert count that
// becomes a job's result-count (spec.md's Result-count glossary entry: the
// count of newly inserted rows, not total rows scraped).
type Pipeline struct {
	store     interfaces.PropertyStore
	logger    arbor.ILogger
	chunkSize int
}

// New creates a Pipeline with the default chunk size.
func New(store interfaces.PropertyStore, logger arbor.ILogger) *Pipeline {
	return &Pipeline{store: store, logger: logger, chunkSize: defaultChunkSize}
}

// Row is one upsert outcome in input order.
type Row struct {
	PropertyID string
	Inserted   bool
}

// Upsert writes records in chunks of chunkSize. Each chunk commits as a
// single storage transaction via PropertyStore.UpsertChunk (spec.md §4.E:
// "the pipeline is atomic per chunk") — chunks themselves are independent of
// each other, so an error on chunk N leaves chunks before it committed and
// aborts before chunk N is applied at all; a completed chunk is never
// re-sent by the caller. Returns per-row results in input order and the
// total insert count.
func (p *Pipeline) Upsert(ctx context.Context, records []*models.PropertyRecord) ([]Row, int, error) {
	rows := make([]Row, 0, len(records))
	inserted := 0
	now := time.Now()

	for start := 0; start < len(records); start += p.chunkSize {
		end := start + p.chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		insertedFlags, err := p.store.UpsertChunk(ctx, chunk, now)
		if err != nil {
			return rows, inserted, fmt.Errorf("upsert pipeline: chunk at %d: %w", start, err)
		}

		for i, rec := range chunk {
			rows = append(rows, Row{PropertyID: rec.PropertyID, Inserted: insertedFlags[i]})
			if insertedFlags[i] {
				inserted++
			}
		}

		p.logger.Debug().
			Int("chunk_start", start).
			Int("chunk_size", len(chunk)).
			Int("inserted_so_far", inserted).
			Msg("Upsert chunk complete")
	}

	return rows, inserted, nil
}
