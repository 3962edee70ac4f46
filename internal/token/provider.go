// Package token implements the Token Provider (spec.md §4.A): a process-wide
// bearer token set by an external agent or an optional periodic refresher,
// read by the Scrape Executor before every API attempt.
package token

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/common"
)

// RefreshFunc obtains a fresh token (DOM-driven capture, a secrets-manager
// call, or any other external mechanism). It is supplied by the caller;
// the Provider itself only owns scheduling and the atomic swap.
type RefreshFunc func(ctx context.Context) (string, error)

// Provider holds the current token behind an atomic reference and,
// optionally, runs a periodic refresher. Reads never block on a refresh in
// progress: currentToken keeps returning the previous value until the new
// one is swapped in (spec.md §4.A).
type Provider struct {
	logger arbor.ILogger
	config common.TokenConfig
	refresh RefreshFunc

	current atomic.Value // string

	mu        sync.Mutex
	running   bool
	shutdown  bool
	cancel    context.CancelFunc
	failures  atomic.Int64
}

// NewProvider creates a Provider. initial may be empty if the token is
// expected to arrive via Set or the first refresher tick.
func NewProvider(logger arbor.ILogger, config common.TokenConfig, refresh RefreshFunc, initial string) *Provider {
	p := &Provider{logger: logger, config: config, refresh: refresh}
	p.current.Store(initial)
	return p
}

// Current returns the token and whether one has ever been set.
func (p *Provider) Current() (string, bool) {
	v, _ := p.current.Load().(string)
	return v, v != ""
}

// Set overwrites the current token, e.g. from an operator-supplied value or
// a one-shot DOM capture performed by the Scrape Executor (spec.md §4.D.1).
func (p *Provider) Set(tok string) {
	p.current.Store(tok)
}

// FailureCount returns the number of refresh attempts that have failed since
// the last successful refresh. A failed refresh never clears the existing
// token; it only increments this counter (spec.md §4.A).
func (p *Provider) FailureCount() int64 {
	return p.failures.Load()
}

// Start launches the periodic refresher if autoRefresh is configured. It is
// an error to call Start twice, and once Shutdown has been called Start
// returns an error rather than silently starting a second refresher — this
// resolves spec.md §9's open question about stopAutoRefresh in favor of
// "truly stop".
func (p *Provider) Start(ctx context.Context) error {
	if !p.config.AutoRefresh {
		return nil
	}
	if p.refresh == nil {
		return fmt.Errorf("token provider: autoRefresh enabled but no RefreshFunc configured")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return fmt.Errorf("token provider: refresher was shut down, will not restart")
	}
	if p.running {
		return fmt.Errorf("token provider: refresher already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	common.SafeGoWithContext(runCtx, p.logger, "token-refresher", func() {
		p.refreshLoop(runCtx)
	})

	return nil
}

func (p *Provider) refreshLoop(ctx context.Context) {
	interval := p.config.RefreshInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug().Msg("Token refresher stopped")
			return
		case <-ticker.C:
			p.doRefresh(ctx)
		}
	}
}

func (p *Provider) doRefresh(ctx context.Context) {
	tok, err := p.refresh(ctx)
	if err != nil {
		n := p.failures.Add(1)
		p.logger.Warn().Err(err).Int64("consecutive_failures", n).Msg("Token refresh failed, keeping previous token")
		return
	}
	if tok == "" {
		n := p.failures.Add(1)
		p.logger.Warn().Int64("consecutive_failures", n).Msg("Token refresh returned empty token, keeping previous token")
		return
	}
	p.failures.Store(0)
	p.Set(tok)
	p.logger.Debug().Msg("Token refreshed")
}

// Shutdown stops the refresher within the configured grace period. After
// Shutdown returns, Start will refuse to start a new refresher.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.shutdown = true
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.mu.Unlock()

	grace := p.config.RefreshGracePeriod
	if grace <= 0 {
		grace = 2 * time.Second
	}

	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(grace):
	}
	return nil
}
