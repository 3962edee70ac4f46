package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/tcad-harvester/internal/models"
)

// fakeHistoryStore is an in-memory stand-in for interfaces.TermHistoryStore.
type fakeHistoryStore struct {
	terms []string
}

func (f *fakeHistoryStore) Record(ctx context.Context, term string, resultCount int, durationSec float64, now time.Time) error {
	return nil
}

func (f *fakeHistoryStore) MarkSeen(ctx context.Context, term string) error {
	return nil
}

func (f *fakeHistoryStore) Get(ctx context.Context, term string) (*models.TermHistory, error) {
	return nil, nil
}

func (f *fakeHistoryStore) All(ctx context.Context) ([]*models.TermHistory, error) {
	return nil, nil
}

func (f *fakeHistoryStore) HistoricalTerms(ctx context.Context) ([]string, error) {
	return f.terms, nil
}

func TestDeduplicator_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		historical []string
		tooCommon  []string
		suffixes   []string
		term       string
		wantAccept bool
		wantReason Reason
	}{
		{
			name:       "new term accepted",
			historical: []string{"Smith"},
			term:       "Garcia",
			wantAccept: true,
		},
		{
			name:       "exact duplicate, case and whitespace insensitive",
			historical: []string{"acme llc"},
			term:       "  ACME   LLC  ",
			wantAccept: false,
			wantReason: ReasonExactDuplicate,
		},
		{
			name:      "too common",
			tooCommon: []string{"a"},
			term:      "a",
			wantAccept: false,
			wantReason: ReasonTooCommon,
		},
		{
			name:       "business superset",
			historical: []string{"acme"},
			suffixes:   []string{"llc", "inc"},
			term:       "Acme LLC",
			wantAccept: false,
			wantReason: ReasonBusinessSuperset,
		},
		{
			name:       "two-word superset on first token",
			historical: []string{"grove"},
			term:       "Grove Street",
			wantAccept: false,
			wantReason: ReasonTwoWordSuperset,
		},
		{
			name:       "two-word superset on second token",
			historical: []string{"street"},
			term:       "Grove Street",
			wantAccept: false,
			wantReason: ReasonTwoWordSuperset,
		},
		{
			name:       "multi-word superset, adjacent subsequence",
			historical: []string{"grove street"},
			term:       "North Grove Street Trust",
			wantAccept: false,
			wantReason: ReasonMultiWordSuperset,
		},
		{
			name:       "multi-word term with no matching subsequence accepted",
			historical: []string{"oak avenue"},
			term:       "North Grove Street",
			wantAccept: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(&fakeHistoryStore{terms: tt.historical}, tt.tooCommon, tt.suffixes)

			got, err := d.Evaluate(context.Background(), tt.term)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got.Accept != tt.wantAccept {
				t.Errorf("Accept = %v, want %v (reason=%v)", got.Accept, tt.wantAccept, got.Reason)
			}
			if !tt.wantAccept && got.Reason != tt.wantReason {
				t.Errorf("Reason = %v, want %v", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestDeduplicator_IdempotentOnSelf(t *testing.T) {
	// Testable property 2: dedupe(t, H ∪ {t}) = reject(exact-duplicate).
	d := New(&fakeHistoryStore{terms: []string{"Grove"}}, nil, nil)

	got, err := d.Evaluate(context.Background(), "Grove")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.Accept || got.Reason != ReasonExactDuplicate {
		t.Errorf("got %+v, want reject(exact-duplicate)", got)
	}
}

func TestDeduplicator_BatchCounters(t *testing.T) {
	d := New(&fakeHistoryStore{terms: []string{"Grove"}}, []string{"a"}, nil)

	_, _ = d.Evaluate(context.Background(), "Grove")
	_, _ = d.Evaluate(context.Background(), "a")
	_, _ = d.Evaluate(context.Background(), "Elm")

	counters := d.BatchCounters()
	if counters[ReasonExactDuplicate] != 1 {
		t.Errorf("exact-duplicate count = %d, want 1", counters[ReasonExactDuplicate])
	}
	if counters[ReasonTooCommon] != 1 {
		t.Errorf("too-common count = %d, want 1", counters[ReasonTooCommon])
	}

	d.ResetCounters()
	if len(d.BatchCounters()) != 0 {
		t.Errorf("counters not reset")
	}
}
