package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/models"
)

// PropertyStore implements interfaces.PropertyStore. It is the only mutator
// of the Property table (spec.md §3 Ownership & lifecycle).
type PropertyStore struct {
	db     *DB
	logger arbor.ILogger
}

// NewPropertyStore creates a new PropertyStore.
func NewPropertyStore(db *DB, logger arbor.ILogger) interfaces.PropertyStore {
	return &PropertyStore{db: db, logger: logger}
}

// maxUpsertConflictRetries bounds the retry loop for badger's optimistic
// concurrency conflicts (two workers upserting the same propertyId at once).
const maxUpsertConflictRetries = 10

// Upsert writes one property row keyed on PropertyID, discriminating insert
// from update with a single badger transaction (TxGet then TxInsert or
// TxUpdate) rather than a separate precheck call, which
// would race with a concurrent worker upserting the same key (spec.md §4.E).
func (s *PropertyStore) Upsert(ctx context.Context, rec *models.PropertyRecord, now time.Time) (bool, error) {
	if rec.PropertyID == "" {
		return false, fmt.Errorf("upsert property: propertyId is required")
	}

	var inserted bool

	for attempt := 0; attempt < maxUpsertConflictRetries; attempt++ {
		err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
			var existing models.Property
			getErr := s.db.Store().TxGet(txn, rec.PropertyID, &existing)

			switch {
			case errors.Is(getErr, badgerhold.ErrNotFound):
				inserted = true
				row := models.NewProperty(rec.ToProperty(), now)
				return s.db.Store().TxInsert(txn, rec.PropertyID, row)
			case getErr != nil:
				return fmt.Errorf("check existing property: %w", getErr)
			default:
				inserted = false
				existing.ApplyUpdate(rec.ToProperty(), now)
				return s.db.Store().TxUpdate(txn, rec.PropertyID, &existing)
			}
		})

		if err == nil {
			return inserted, nil
		}
		if errors.Is(err, badgerdb.ErrConflict) {
			s.logger.Debug().
				Str("property_id", rec.PropertyID).
				Int("attempt", attempt+1).
				Msg("Upsert conflict, retrying")
			continue
		}
		return false, fmt.Errorf("upsert property %s: %w", rec.PropertyID, err)
	}

	return false, fmt.Errorf("upsert property %s: exhausted conflict retries", rec.PropertyID)
}

// UpsertChunk applies every record in records inside a single badger
// transaction, so a chunk either commits as a whole or (on a write conflict)
// is retried and re-applied in full — no other writer observes half of a
// chunk (spec.md §4.E). Conflict probability rises with chunk size, which is
// why maxUpsertConflictRetries is shared with the single-record path.
func (s *PropertyStore) UpsertChunk(ctx context.Context, records []*models.PropertyRecord, now time.Time) ([]bool, error) {
	for _, rec := range records {
		if rec.PropertyID == "" {
			return nil, fmt.Errorf("upsert chunk: propertyId is required")
		}
	}

	for attempt := 0; attempt < maxUpsertConflictRetries; attempt++ {
		inserted := make([]bool, len(records))

		err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
			for i, rec := range records {
				var existing models.Property
				getErr := s.db.Store().TxGet(txn, rec.PropertyID, &existing)

				switch {
				case errors.Is(getErr, badgerhold.ErrNotFound):
					inserted[i] = true
					row := models.NewProperty(rec.ToProperty(), now)
					if err := s.db.Store().TxInsert(txn, rec.PropertyID, row); err != nil {
						return fmt.Errorf("insert %s: %w", rec.PropertyID, err)
					}
				case getErr != nil:
					return fmt.Errorf("check existing property %s: %w", rec.PropertyID, getErr)
				default:
					inserted[i] = false
					existing.ApplyUpdate(rec.ToProperty(), now)
					if err := s.db.Store().TxUpdate(txn, rec.PropertyID, &existing); err != nil {
						return fmt.Errorf("update %s: %w", rec.PropertyID, err)
					}
				}
			}
			return nil
		})

		if err == nil {
			return inserted, nil
		}
		if errors.Is(err, badgerdb.ErrConflict) {
			s.logger.Debug().
				Int("chunk_size", len(records)).
				Int("attempt", attempt+1).
				Msg("Upsert chunk conflict, retrying")
			continue
		}
		return nil, fmt.Errorf("upsert chunk: %w", err)
	}

	return nil, fmt.Errorf("upsert chunk: exhausted conflict retries")
}

// Count returns the total number of stored properties, used by the
// Continuous Driver to measure progress toward targetProperties.
func (s *PropertyStore) Count(ctx context.Context) (int, error) {
	n, err := s.db.Store().Count(&models.Property{}, nil)
	if err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}
	return int(n), nil
}

// Get returns a single property by propertyId.
func (s *PropertyStore) Get(ctx context.Context, propertyID string) (*models.Property, error) {
	var p models.Property
	if err := s.db.Store().Get(propertyID, &p); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get property %s: %w", propertyID, err)
	}
	return &p, nil
}
