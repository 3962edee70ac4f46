// Package dedup implements the Deduplicator (spec.md §4.B): an ordered set
// of rejection rules applied to a candidate search term before it is
// enqueued.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/tcad-harvester/internal/interfaces"
)

// Reason names why a candidate term was rejected.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonExactDuplicate   Reason = "exact-duplicate"
	ReasonTooCommon        Reason = "too-common"
	ReasonBusinessSuperset Reason = "business-superset"
	ReasonTwoWordSuperset  Reason = "two-word-superset"
	ReasonMultiWordSuperset Reason = "multi-word-superset"
)

// Decision is the outcome of evaluating one candidate term.
type Decision struct {
	Term    string
	Accept  bool
	Reason  Reason
}

// Deduplicator evaluates candidate terms against the historical term set
// maintained by the TermHistoryStore, consulting it directly at decision
// time rather than trusting a caller-supplied cache (spec.md §9: "authoritative
// DB view per call").
type Deduplicator struct {
	history          interfaces.TermHistoryStore
	tooCommon        map[string]struct{}
	businessSuffixes []string

	mu      sync.Mutex
	counters map[Reason]int
}

// New creates a Deduplicator. tooCommonTerms and businessSuffixes come from
// common.DedupConfig.
func New(history interfaces.TermHistoryStore, tooCommonTerms, businessSuffixes []string) *Deduplicator {
	tc := make(map[string]struct{}, len(tooCommonTerms))
	for _, t := range tooCommonTerms {
		tc[normalize(t)] = struct{}{}
	}

	suffixes := make([]string, len(businessSuffixes))
	for i, s := range businessSuffixes {
		suffixes[i] = normalize(s)
	}

	return &Deduplicator{
		history:          history,
		tooCommon:        tc,
		businessSuffixes: suffixes,
		counters:         make(map[Reason]int),
	}
}

// normalize lowercases and collapses whitespace, per spec.md §4.B: "Matching
// is case-insensitive and whitespace-normalized."
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Evaluate runs the ordered rule set against one candidate term.
func (d *Deduplicator) Evaluate(ctx context.Context, term string) (Decision, error) {
	norm := normalize(term)
	if norm == "" {
		return d.reject(term, ReasonExactDuplicate), nil
	}

	historical, err := d.history.HistoricalTerms(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("dedup: load historical terms: %w", err)
	}

	h := make(map[string]struct{}, len(historical))
	for _, t := range historical {
		h[normalize(t)] = struct{}{}
	}

	// Rule 1: exact duplicate.
	if _, ok := h[norm]; ok {
		return d.reject(term, ReasonExactDuplicate), nil
	}

	// Rule 2: too common.
	if _, ok := d.tooCommon[norm]; ok {
		return d.reject(term, ReasonTooCommon), nil
	}

	tokens := strings.Fields(norm)

	// Rule 3: business superset — "<name> <suffix>" where <name> alone is in H.
	if len(tokens) >= 2 {
		last := tokens[len(tokens)-1]
		for _, suffix := range d.businessSuffixes {
			if last == suffix {
				name := strings.Join(tokens[:len(tokens)-1], " ")
				if _, ok := h[name]; ok {
					return d.reject(term, ReasonBusinessSuperset), nil
				}
				break
			}
		}
	}

	// Rule 4: two-word superset.
	if len(tokens) == 2 {
		if _, ok := h[tokens[0]]; ok {
			return d.reject(term, ReasonTwoWordSuperset), nil
		}
		if _, ok := h[tokens[1]]; ok {
			return d.reject(term, ReasonTwoWordSuperset), nil
		}
	}

	// Rule 5: multi-word superset — any proper adjacent subsequence is in H.
	if len(tokens) >= 3 {
		for start := 0; start < len(tokens); start++ {
			for end := start + 1; end <= len(tokens); end++ {
				if start == 0 && end == len(tokens) {
					continue // the full term itself, not a proper subsequence
				}
				sub := strings.Join(tokens[start:end], " ")
				if _, ok := h[sub]; ok {
					return d.reject(term, ReasonMultiWordSuperset), nil
				}
			}
		}
	}

	return d.accept(term), nil
}

func (d *Deduplicator) accept(term string) Decision {
	return Decision{Term: term, Accept: true, Reason: ReasonNone}
}

func (d *Deduplicator) reject(term string, reason Reason) Decision {
	d.mu.Lock()
	d.counters[reason]++
	d.mu.Unlock()
	return Decision{Term: term, Accept: false, Reason: reason}
}

// BatchCounters returns a snapshot of per-reason rejection counts since the
// last ResetCounters call, for per-batch diagnostics (spec.md §4.B).
func (d *Deduplicator) BatchCounters() map[Reason]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[Reason]int, len(d.counters))
	for k, v := range d.counters {
		out[k] = v
	}
	return out
}

// ResetCounters zeroes the per-batch rejection counters.
func (d *Deduplicator) ResetCounters() {
	d.mu.Lock()
	d.counters = make(map[Reason]int)
	d.mu.Unlock()
}
