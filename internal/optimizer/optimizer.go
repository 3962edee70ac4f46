// Package optimizer implements the Search-Term Optimizer (spec.md §4.G): a
// read-only feedback loop over TermHistory that promotes high-yield terms
// and mines structural patterns for new candidates.
package optimizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/common"
	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/models"
)

// Optimizer implements interfaces.Optimizer.
type Optimizer struct {
	history interfaces.TermHistoryStore
	logger  arbor.ILogger
	cfg     common.OptimizerConfig
}

var _ interfaces.Optimizer = (*Optimizer)(nil)

// New creates a new Optimizer reading from history.
func New(history interfaces.TermHistoryStore, logger arbor.ILogger, cfg common.OptimizerConfig) *Optimizer {
	return &Optimizer{history: history, logger: logger, cfg: cfg}
}

// Suggest returns up to limit terms: high-performers first (sorted by
// efficiency descending, excluding recently-used terms), then structural
// suggestions mined from those performers, concatenated (spec.md §4.G).
// limit <= 0 falls back to the configured defaults
// (HighPerformerLimit + SuggestionLimit).
func (o *Optimizer) Suggest(ctx context.Context, limit int) ([]string, error) {
	all, err := o.history.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("optimizer: load term history: %w", err)
	}

	highLimit, suggestLimit := o.cfg.HighPerformerLimit, o.cfg.SuggestionLimit
	if limit > 0 {
		highLimit, suggestLimit = splitLimit(limit, o.cfg.HighPerformerLimit, o.cfg.SuggestionLimit)
	}

	performers := o.highPerformers(all, highLimit)

	historical := make(map[string]struct{}, len(all))
	for _, t := range all {
		historical[normalize(t.SearchTerm)] = struct{}{}
	}
	suggestions := mineStructuralPatterns(performers, historical, suggestLimit)

	result := make([]string, 0, len(performers)+len(suggestions))
	for _, t := range performers {
		result = append(result, t.SearchTerm)
	}
	result = append(result, suggestions...)
	return result, nil
}

// highPerformers filters by minEfficiency/minSuccessRate/recentDays and
// sorts by efficiency descending, capped at limit.
func (o *Optimizer) highPerformers(all []*models.TermHistory, limit int) []*models.TermHistory {
	minEfficiency := o.cfg.MinEfficiency
	minSuccessRate := o.cfg.MinSuccessRate
	recentCutoff := time.Now().AddDate(0, 0, -o.cfg.RecentDays)

	filtered := make([]*models.TermHistory, 0, len(all))
	for _, t := range all {
		if t.Efficiency() < minEfficiency || t.SuccessRate() < minSuccessRate {
			continue
		}
		if t.LastUsedAt.After(recentCutoff) {
			continue
		}
		filtered = append(filtered, t)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Efficiency() > filtered[j].Efficiency()
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

// mineStructuralPatterns derives candidate terms from the high-performer
// set's common prefixes, suffix families, and length buckets, skipping
// anything already present in the historical set (spec.md §4.G.2).
func mineStructuralPatterns(performers []*models.TermHistory, historical map[string]struct{}, limit int) []string {
	if limit <= 0 || len(performers) == 0 {
		return nil
	}

	prefixCounts := make(map[string]int)
	suffixCounts := make(map[string]int)
	lengthBuckets := make(map[int][]string)

	for _, t := range performers {
		term := normalize(t.SearchTerm)
		if len(term) >= 3 {
			prefixCounts[term[:3]]++
			suffixCounts[term[len(term)-3:]]++
		}
		lengthBuckets[len(term)] = append(lengthBuckets[len(term)], term)
	}

	seen := make(map[string]struct{}, limit)
	var out []string
	add := func(candidate string) bool {
		candidate = normalize(candidate)
		if candidate == "" {
			return false
		}
		if _, exists := historical[candidate]; exists {
			return false
		}
		if _, exists := seen[candidate]; exists {
			return false
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
		return len(out) >= limit
	}

	// Recombine terms sharing a common prefix or suffix family with terms
	// from a different performer, forming new candidates not yet tried.
	for prefix, count := range topKeys(prefixCounts, 5) {
		if count < 2 {
			continue
		}
		for _, t := range performers {
			term := normalize(t.SearchTerm)
			if strings.HasPrefix(term, prefix) {
				continue
			}
			if add(prefix + term[min(3, len(term)):]) {
				return out
			}
		}
	}

	for suffix, count := range topKeys(suffixCounts, 5) {
		if count < 2 {
			continue
		}
		for _, t := range performers {
			term := normalize(t.SearchTerm)
			if strings.HasSuffix(term, suffix) {
				continue
			}
			if add(term[:max(0, len(term)-3)] + suffix) {
				return out
			}
		}
	}

	// Length-bucket recombination: pair first tokens of one term in a
	// bucket with the last tokens of another term in the same bucket.
	for _, terms := range lengthBuckets {
		if len(terms) < 2 {
			continue
		}
		for i := 0; i < len(terms); i++ {
			for j := 0; j < len(terms); j++ {
				if i == j {
					continue
				}
				left := firstWord(terms[i])
				right := lastWord(terms[j])
				if left == "" || right == "" || left == right {
					continue
				}
				if add(left + " " + right) {
					return out
				}
			}
		}
	}

	return out
}

func topKeys(counts map[string]int, n int) map[string]int {
	type kv struct {
		k string
		v int
	}
	pairs := make([]kv, 0, len(counts))
	for k, v := range counts {
		pairs = append(pairs, kv{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].v > pairs[j].v })
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make(map[string]int, len(pairs))
	for _, p := range pairs {
		out[p.k] = p.v
	}
	return out
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func splitLimit(limit, highDefault, suggestDefault int) (int, int) {
	total := highDefault + suggestDefault
	if total <= 0 {
		return limit, 0
	}
	high := limit * highDefault / total
	suggest := limit - high
	return high, suggest
}
