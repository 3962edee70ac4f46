package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/tcad-harvester/internal/common"
	"github.com/ternarybob/tcad-harvester/internal/models"
)

// fakeHistoryStore is an in-memory stand-in for interfaces.TermHistoryStore.
type fakeHistoryStore struct {
	all []*models.TermHistory
}

func (f *fakeHistoryStore) Record(ctx context.Context, term string, resultCount int, durationSec float64, now time.Time) error {
	return nil
}

func (f *fakeHistoryStore) MarkSeen(ctx context.Context, term string) error {
	return nil
}

func (f *fakeHistoryStore) Get(ctx context.Context, term string) (*models.TermHistory, error) {
	for _, t := range f.all {
		if t.SearchTerm == term {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeHistoryStore) All(ctx context.Context) ([]*models.TermHistory, error) {
	return f.all, nil
}

func (f *fakeHistoryStore) HistoricalTerms(ctx context.Context) ([]string, error) {
	terms := make([]string, len(f.all))
	for i, t := range f.all {
		terms[i] = t.SearchTerm
	}
	return terms, nil
}

func testConfig() common.OptimizerConfig {
	return common.OptimizerConfig{
		MinEfficiency:      5.0,
		MinSuccessRate:     0.5,
		RecentDays:         1,
		HighPerformerLimit: 30,
		SuggestionLimit:    20,
	}
}

func TestOptimizer_Suggest_ExcludesRecentlyUsed(t *testing.T) {
	threeDaysAgo := time.Now().AddDate(0, 0, -3)
	history := &fakeHistoryStore{
		all: []*models.TermHistory{
			{
				SearchTerm:       "Garcia",
				Runs:             5,
				TotalResults:     10000,
				RunsWithResults:  5,
				TotalDurationSec: 0,
				LastUsedAt:       threeDaysAgo,
			},
		},
	}

	o := New(history, nil, testConfig())

	got, err := o.Suggest(context.Background(), 5)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if !contains(got, "Garcia") {
		t.Fatalf("expected Garcia in suggestions, got %v", got)
	}

	history.all[0].LastUsedAt = time.Now()
	got, err = o.Suggest(context.Background(), 5)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if contains(got, "Garcia") {
		t.Fatalf("expected Garcia excluded after recent use, got %v", got)
	}
}

func TestOptimizer_Suggest_FiltersLowEfficiencyAndSuccessRate(t *testing.T) {
	old := time.Now().AddDate(0, 0, -10)
	history := &fakeHistoryStore{
		all: []*models.TermHistory{
			{SearchTerm: "lowEfficiency", Runs: 10, TotalResults: 2, RunsWithResults: 8, LastUsedAt: old},
			{SearchTerm: "lowSuccessRate", Runs: 10, TotalResults: 600, RunsWithResults: 2, LastUsedAt: old},
			{SearchTerm: "Rodriguez", Runs: 10, TotalResults: 800, RunsWithResults: 9, LastUsedAt: old},
		},
	}

	o := New(history, nil, testConfig())
	got, err := o.Suggest(context.Background(), 10)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	if contains(got, "lowEfficiency") {
		t.Fatalf("lowEfficiency should have been filtered, got %v", got)
	}
	if contains(got, "lowSuccessRate") {
		t.Fatalf("lowSuccessRate should have been filtered, got %v", got)
	}
	if !contains(got, "Rodriguez") {
		t.Fatalf("expected Rodriguez in results, got %v", got)
	}
}

func TestOptimizer_Suggest_SortedByEfficiencyDescending(t *testing.T) {
	old := time.Now().AddDate(0, 0, -10)
	history := &fakeHistoryStore{
		all: []*models.TermHistory{
			{SearchTerm: "Smith", Runs: 10, TotalResults: 600, RunsWithResults: 10, LastUsedAt: old},
			{SearchTerm: "Johnson", Runs: 10, TotalResults: 900, RunsWithResults: 10, LastUsedAt: old},
		},
	}

	o := New(history, nil, testConfig())
	got, err := o.Suggest(context.Background(), 0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) < 2 || got[0] != "Johnson" || got[1] != "Smith" {
		t.Fatalf("expected Johnson before Smith by efficiency, got %v", got)
	}
}

func TestOptimizer_Suggest_EmptyHistoryReturnsEmpty(t *testing.T) {
	o := New(&fakeHistoryStore{}, nil, testConfig())
	got, err := o.Suggest(context.Background(), 10)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no suggestions from empty history, got %v", got)
	}
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
