package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/models"
)

// TermHistoryStore implements interfaces.TermHistoryStore. It backs both the
// Deduplicator's "historical superset" rule (spec.md §4.B) and the
// Search-Term Optimizer's efficiency mining (spec.md §4.G).
type TermHistoryStore struct {
	db     *DB
	logger arbor.ILogger
}

// NewTermHistoryStore creates a new TermHistoryStore.
func NewTermHistoryStore(db *DB, logger arbor.ILogger) interfaces.TermHistoryStore {
	return &TermHistoryStore{db: db, logger: logger}
}

// Record folds one completed job's outcome into the term's running history,
// using a single badger transaction so concurrent workers recording the same
// term never lose an update (same atomicity pattern as PropertyStore.Upsert).
func (s *TermHistoryStore) Record(ctx context.Context, term string, resultCount int, durationSec float64, now time.Time) error {
	for attempt := 0; attempt < maxUpsertConflictRetries; attempt++ {
		err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
			var existing models.TermHistory
			getErr := s.db.Store().TxGet(txn, term, &existing)

			switch {
			case errors.Is(getErr, badgerhold.ErrNotFound):
				existing = models.TermHistory{SearchTerm: term}
				existing.RecordRun(resultCount, durationSec, now)
				return s.db.Store().TxInsert(txn, term, &existing)
			case getErr != nil:
				return fmt.Errorf("get term history %s: %w", term, getErr)
			default:
				existing.RecordRun(resultCount, durationSec, now)
				return s.db.Store().TxUpdate(txn, term, &existing)
			}
		})

		if err == nil {
			return nil
		}
		if errors.Is(err, badgerdb.ErrConflict) {
			continue
		}
		return fmt.Errorf("record term history %s: %w", term, err)
	}
	return fmt.Errorf("record term history %s: exhausted conflict retries", term)
}

// MarkSeen inserts a zero-run stub row for term if none exists yet, so the
// term shows up in HistoricalTerms the moment it is enqueued rather than
// only once a job for it completes or fails. An existing row (any Runs
// count) is left untouched.
func (s *TermHistoryStore) MarkSeen(ctx context.Context, term string) error {
	for attempt := 0; attempt < maxUpsertConflictRetries; attempt++ {
		err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
			var existing models.TermHistory
			getErr := s.db.Store().TxGet(txn, term, &existing)

			switch {
			case errors.Is(getErr, badgerhold.ErrNotFound):
				stub := models.TermHistory{SearchTerm: term}
				return s.db.Store().TxInsert(txn, term, &stub)
			case getErr != nil:
				return fmt.Errorf("get term history %s: %w", term, getErr)
			default:
				return nil
			}
		})

		if err == nil {
			return nil
		}
		if errors.Is(err, badgerdb.ErrConflict) {
			continue
		}
		return fmt.Errorf("mark seen %s: %w", term, err)
	}
	return fmt.Errorf("mark seen %s: exhausted conflict retries", term)
}

// Get returns the history for one term, or nil if it has never been run.
func (s *TermHistoryStore) Get(ctx context.Context, term string) (*models.TermHistory, error) {
	var h models.TermHistory
	if err := s.db.Store().Get(term, &h); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get term history %s: %w", term, err)
	}
	return &h, nil
}

// All returns every recorded term history, used by the optimizer's
// high-performer and suggestion passes.
func (s *TermHistoryStore) All(ctx context.Context) ([]*models.TermHistory, error) {
	var rows []models.TermHistory
	if err := s.db.Store().Find(&rows, nil); err != nil {
		return nil, fmt.Errorf("list term histories: %w", err)
	}
	out := make([]*models.TermHistory, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

// HistoricalTerms returns every term ever recorded, used by the Deduplicator
// and Term Generator to avoid resubmitting an already-run term.
func (s *TermHistoryStore) HistoricalTerms(ctx context.Context) ([]string, error) {
	rows, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	terms := make([]string, len(rows))
	for i, r := range rows {
		terms[i] = r.SearchTerm
	}
	return terms, nil
}
