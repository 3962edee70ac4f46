// Package app wires the eight core components (spec.md §2) into a single
// running process: Token Provider, Deduplicator, Term Generator, Scrape
// Executor, Upsert Pipeline, Job Queue, Search-Term Optimizer, and
// Continuous Driver, plus the worker pool that drives them. Grounded on the
// teacher's internal/app/app.go dependency-order wiring and Close sequence,
// trimmed to this module's component set.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/common"
	"github.com/ternarybob/tcad-harvester/internal/dedup"
	"github.com/ternarybob/tcad-harvester/internal/driver"
	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/optimizer"
	"github.com/ternarybob/tcad-harvester/internal/queue"
	"github.com/ternarybob/tcad-harvester/internal/scraper"
	"github.com/ternarybob/tcad-harvester/internal/storage/badger"
	"github.com/ternarybob/tcad-harvester/internal/storage/sqlite"
	"github.com/ternarybob/tcad-harvester/internal/termgen"
	"github.com/ternarybob/tcad-harvester/internal/token"
	"github.com/ternarybob/tcad-harvester/internal/upsert"
	"github.com/ternarybob/tcad-harvester/internal/worker"
)

// App holds every wired component and owns the shutdown sequence.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	badgerDB *badger.DB
	sqliteDB *sqlite.SQLiteDB

	Properties  interfaces.PropertyStore
	Jobs        interfaces.JobStore
	TermHistory interfaces.TermHistoryStore

	TokenProvider *token.Provider
	Deduplicator  *dedup.Deduplicator
	Generator     *termgen.Generator
	Optimizer     *optimizer.Optimizer
	Executor      *scraper.Executor
	Upsert        *upsert.Pipeline
	Queue         *queue.Queue
	Pool          *worker.Pool
	Driver        *driver.Driver
}

// New wires every component in dependency order. It does not start any
// background goroutines; call Run to do that.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.initStorage(); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := a.initComponents(); err != nil {
		return nil, fmt.Errorf("init components: %w", err)
	}

	return a, nil
}

func (a *App) initStorage() error {
	badgerDB, err := badger.NewDB(a.Logger, &a.Config.Storage)
	if err != nil {
		return fmt.Errorf("open badger: %w", err)
	}
	a.badgerDB = badgerDB

	sqliteDB, err := sqlite.NewSQLiteDB(a.Logger, &a.Config.Storage)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	a.sqliteDB = sqliteDB

	a.Properties = badger.NewPropertyStore(a.badgerDB, a.Logger)
	a.Jobs = badger.NewJobStore(a.badgerDB, a.Logger)
	a.TermHistory = badger.NewTermHistoryStore(a.badgerDB, a.Logger)

	a.Logger.Info().
		Str("badger_path", a.Config.Storage.Path).
		Str("sqlite_path", a.Config.Storage.SQLitePath).
		Msg("Storage layer initialized")

	return nil
}

func (a *App) initComponents() error {
	// Component A: Token Provider. No upstream login flow is modeled here;
	// the executor captures a token via the DOM on first use, so the
	// refresh function only returns what's already current.
	a.TokenProvider = token.NewProvider(a.Logger, a.Config.Token, a.refreshToken, "")

	// Component B: Deduplicator, consulted directly by the Term Generator.
	a.Deduplicator = dedup.New(a.TermHistory, a.Config.Dedup.TooCommonTerms, a.Config.Dedup.BusinessSuffixes)

	// Component G: Optimizer, read-only over TermHistory.
	a.Optimizer = optimizer.New(a.TermHistory, a.Logger, a.Config.Optimizer)

	// Component C: Term Generator, composes B and G.
	a.Generator = termgen.New(
		a.Logger,
		a.Deduplicator,
		a.TermHistory,
		a.Optimizer,
		a.Config.TermGen.OptimizationInterval,
		a.Config.TermGen.CacheRefreshInterval,
		time.Now().UnixNano(),
	)

	// Component D: Scrape Executor, composed of a shared browser pool, a
	// rate-limited API client, and a DOM fallback over the same pool.
	browserPool, err := scraper.NewBrowserPool(a.Logger, a.Config.Scraper)
	if err != nil {
		return fmt.Errorf("start browser pool: %w", err)
	}

	limiter := scraper.NewRateLimiter(a.Config.Scraper.RequestsPerSecond)
	apiClient := scraper.NewAPIClient(a.Logger, a.Config.Scraper, a.TokenProvider, limiter)
	domFallback := scraper.NewDOMFallback(a.Logger, browserPool, a.Config.Scraper)
	a.Executor = scraper.NewExecutor(a.Logger, a.TokenProvider, a.TokenProvider, apiClient, domFallback, browserPool, a.Config.Scraper)

	// Component E: Upsert Pipeline, atop the PropertyStore's atomic primitive.
	a.Upsert = upsert.New(a.Properties, a.Logger)

	// Component F: Job Queue, bucketed goqite over the shared SQLite DB.
	q, err := queue.New(a.Logger, a.sqliteDB.DB(), a.Jobs, a.TermHistory, a.Config.Queue)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	a.Queue = q

	// Worker pool: ties D, E, F, and the TermHistoryStore together.
	a.Pool = worker.New(
		a.Queue,
		a.Executor,
		a.Upsert,
		a.TermHistory,
		a.Logger,
		a.Config.Driver.Concurrency,
		a.Config.Queue.PollInterval,
	)

	// Component H: Continuous Driver.
	a.Driver = driver.New(a.Properties, a.Jobs, a.Queue, a.Generator, a.Logger, a.Config.Driver)

	return nil
}

// refreshToken is the Token Provider's RefreshFunc. There is no separate
// login endpoint for this upstream; a fresh token is only obtainable by
// re-running the DOM capture flow, which the executor already does
// on-demand when Current() reports no token. The periodic refresh loop
// exists for upstreams whose session expires silently; here it is a no-op
// that keeps the current token until the executor replaces it.
func (a *App) refreshToken(ctx context.Context) (string, error) {
	if tok, ok := a.TokenProvider.Current(); ok {
		return tok, nil
	}
	return "", fmt.Errorf("no token captured yet")
}

// Run starts the Token Provider's refresh loop (if configured), the worker
// pool, and the Continuous Driver, then blocks until the driver returns
// (target reached or ctx cancelled) and stops the pool.
func (a *App) Run(ctx context.Context) error {
	if a.Config.Token.AutoRefresh {
		if err := a.TokenProvider.Start(ctx); err != nil {
			return fmt.Errorf("start token provider: %w", err)
		}
	}

	a.Pool.Start()

	driverErr := a.Driver.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Driver.ShutdownTimeout)
	defer cancel()
	a.stopPool(shutdownCtx)

	return driverErr
}

func (a *App) stopPool(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.Pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.Logger.Warn().Msg("Worker pool did not stop within shutdown timeout")
	}
}

// Close shuts down the token refresher (when auto-refresh is configured) and
// closes the BadgerDB and SQLite handles opened by New. The browser pool's
// allocator started in New is not closed here.
func (a *App) Close() error {
	if a.Config.Token.AutoRefresh {
		if err := a.TokenProvider.Shutdown(context.Background()); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down token provider")
		}
	}

	if err := a.badgerDB.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close badger database")
	}

	if err := a.sqliteDB.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close sqlite database")
	}

	common.Stop()
	return nil
}
