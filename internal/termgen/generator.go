// Package termgen implements the Term Generator (spec.md §4.C): nextBatch(size)
// draws from weighted strategies, filters through the Deduplicator, and
// periodically asks the Optimizer for hints to prepend to the next batch.
package termgen

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/dedup"
	"github.com/ternarybob/tcad-harvester/internal/interfaces"
)

// maxAttemptMultiplier bounds total candidate draws at size*10 before the
// generator yields a short batch (spec.md §4.C).
const maxAttemptMultiplier = 10

// Generator produces batches of unique, deduplicator-accepted search terms.
type Generator struct {
	logger    arbor.ILogger
	dedup     *dedup.Deduplicator
	history   interfaces.TermHistoryStore
	optimizer interfaces.Optimizer

	optimizationInterval int
	cacheRefreshInterval time.Duration

	rng *rand.Rand

	mu               sync.Mutex
	usedTerms        map[string]struct{} // hint cache only; dedup consults the DB directly
	lastRefresh      time.Time
	acceptedSinceOpt int
	pendingHints     []string
}

// New creates a Generator. optimizationInterval and cacheRefreshInterval come
// from common.TermGenConfig.
func New(logger arbor.ILogger, d *dedup.Deduplicator, history interfaces.TermHistoryStore, optimizer interfaces.Optimizer, optimizationInterval int, cacheRefreshInterval time.Duration, seed int64) *Generator {
	return &Generator{
		logger:               logger,
		dedup:                d,
		history:              history,
		optimizer:            optimizer,
		optimizationInterval: optimizationInterval,
		cacheRefreshInterval: cacheRefreshInterval,
		rng:                  rand.New(rand.NewSource(seed)),
		usedTerms:            make(map[string]struct{}),
	}
}

// refreshUsedTerms reloads the hint cache from the TermHistoryStore if it
// has never been loaded or is older than cacheRefreshInterval (spec.md §4.C:
// "no less than once per hour or when explicitly asked").
func (g *Generator) refreshUsedTerms(ctx context.Context, force bool) error {
	g.mu.Lock()
	stale := force || g.lastRefresh.IsZero() || time.Since(g.lastRefresh) >= g.cacheRefreshInterval
	g.mu.Unlock()
	if !stale {
		return nil
	}

	terms, err := g.history.HistoricalTerms(ctx)
	if err != nil {
		return fmt.Errorf("termgen: refresh used-terms cache: %w", err)
	}

	g.mu.Lock()
	g.usedTerms = make(map[string]struct{}, len(terms))
	for _, t := range terms {
		g.usedTerms[normalize(t)] = struct{}{}
	}
	g.lastRefresh = time.Now()
	g.mu.Unlock()

	return nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func (g *Generator) seenRecently(term string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.usedTerms[normalize(term)]
	return ok
}

func (g *Generator) markSeen(term string) {
	g.mu.Lock()
	g.usedTerms[normalize(term)] = struct{}{}
	g.mu.Unlock()
}

// NextBatch produces up to size unique, accepted terms: the optimizer hint
// list first (bounded to size), then weighted-sampled strategy output.
func (g *Generator) NextBatch(ctx context.Context, size int) ([]string, error) {
	if size <= 0 {
		return nil, nil
	}

	if err := g.refreshUsedTerms(ctx, false); err != nil {
		g.logger.Warn().Err(err).Msg("Term generator: used-terms refresh failed, continuing with stale cache")
	}

	batch := make([]string, 0, size)
	inBatch := make(map[string]struct{}, size)

	// Optimizer hints go first, bounded to size entries.
	g.mu.Lock()
	hints := g.pendingHints
	g.pendingHints = nil
	g.mu.Unlock()

	for _, hint := range hints {
		if len(batch) >= size {
			break
		}
		if g.tryAccept(ctx, hint, inBatch, &batch) {
			continue
		}
	}

	attempts := 0
	maxAttempts := size * maxAttemptMultiplier
	for len(batch) < size && attempts < maxAttempts {
		attempts++
		s := pickStrategy(g.rng)
		candidate := s.pick(g.rng)
		g.tryAccept(ctx, candidate, inBatch, &batch)
	}

	if len(batch) < size {
		g.logger.Debug().
			Int("requested", size).
			Int("yielded", len(batch)).
			Int("attempts", attempts).
			Msg("Term generator yielded a short batch")
	}

	return batch, nil
}

// tryAccept evaluates one candidate and, if accepted and not already present
// in this batch, appends it. Returns whether the candidate was appended.
func (g *Generator) tryAccept(ctx context.Context, candidate string, inBatch map[string]struct{}, batch *[]string) bool {
	norm := normalize(candidate)
	if norm == "" {
		return false
	}
	if _, dup := inBatch[norm]; dup {
		return false
	}
	if g.seenRecently(candidate) {
		return false
	}

	decision, err := g.dedup.Evaluate(ctx, candidate)
	if err != nil {
		g.logger.Warn().Err(err).Str("term", candidate).Msg("Term generator: dedup evaluation failed, skipping candidate")
		return false
	}
	if !decision.Accept {
		return false
	}

	inBatch[norm] = struct{}{}
	*batch = append(*batch, candidate)
	g.markSeen(candidate)
	g.recordAccepted(ctx)
	return true
}

// recordAccepted increments the accepted-since-optimization counter and, once
// it reaches optimizationInterval, asks the Optimizer for fresh hints to
// prepend to the next batch (spec.md §4.C).
func (g *Generator) recordAccepted(ctx context.Context) {
	g.mu.Lock()
	g.acceptedSinceOpt++
	due := g.optimizationInterval > 0 && g.acceptedSinceOpt >= g.optimizationInterval
	if due {
		g.acceptedSinceOpt = 0
	}
	g.mu.Unlock()

	if !due || g.optimizer == nil {
		return
	}

	hints, err := g.optimizer.Suggest(ctx, g.optimizationInterval)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Term generator: optimizer suggest failed")
		return
	}

	g.mu.Lock()
	g.pendingHints = append(g.pendingHints, hints...)
	g.mu.Unlock()
}
