package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/common"
	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/models"
)

// tokenSetter is satisfied by *token.Provider; declared locally to avoid an
// import cycle between scraper and token.
type tokenSetter interface {
	Set(tok string)
}

// Executor implements the Scrape Executor (spec.md §4.D): obtain a token,
// run the API-attempt retry loop, and fall back to a DOM scrape if every API
// attempt fails.
type Executor struct {
	logger      arbor.ILogger
	tokens      interfaces.TokenProvider
	tokenSetter tokenSetter
	api         *APIClient
	dom         *DOMFallback
	pool        *BrowserPool
	retry       *RetryPolicy
	tokenCaptureURL string
}

// NewExecutor creates an Executor.
func NewExecutor(logger arbor.ILogger, tokens interfaces.TokenProvider, tokenSetter tokenSetter, api *APIClient, dom *DOMFallback, pool *BrowserPool, cfg common.ScraperConfig) *Executor {
	return &Executor{
		logger:          logger,
		tokens:          tokens,
		tokenSetter:     tokenSetter,
		api:             api,
		dom:             dom,
		pool:            pool,
		retry:           NewRetryPolicy(cfg.MaxAPIAttempts, cfg.RetryBaseDelay, cfg.RetryFactor),
		tokenCaptureURL: cfg.TCADBaseURL,
	}
}

// Execute runs the full scrape algorithm for one search term.
func (e *Executor) Execute(ctx context.Context, term string) (Result, error) {
	if _, ok := e.tokens.Current(); !ok {
		if err := e.captureToken(ctx); err != nil {
			return Result{}, classify(term, ErrorClassAuth, err)
		}
	}

	records, apiErr := Run(ctx, e.logger, e.retry, func(attempt int) ([]*models.PropertyRecord, error) {
		return e.api.Search(ctx, term)
	})

	if apiErr == nil {
		return Result{Records: records}, nil
	}

	var scrapeErr *Error
	if errors.As(apiErr, &scrapeErr) && scrapeErr.Class == ErrorClassCancelled {
		return Result{}, apiErr
	}

	e.logger.Debug().Str("term", term).Err(apiErr).Msg("All API attempts failed, invoking DOM fallback")

	domRecords, domErr := e.dom.Search(ctx, term)
	if domErr != nil {
		return Result{}, classify(term, ErrorClassFallbackExhausted, fmt.Errorf("api: %v, dom: %w", apiErr, domErr))
	}

	return Result{Records: domRecords, UsedDOM: true}, nil
}

// captureToken performs a one-shot DOM-driven token capture when no token is
// available (spec.md §4.D.1): load the upstream site, let it authenticate,
// and read the bearer token it attaches to subsequent XHR/fetch requests.
// The exact capture selector is implementation-defined; here it reads a
// token surfaced in local storage after page load, which is the shape
// observed for this upstream's session bootstrap.
func (e *Executor) captureToken(ctx context.Context) error {
	tabCtx, cancel, _, err := e.pool.NewTab(ctx)
	if err != nil {
		return fmt.Errorf("token capture: acquire browser tab: %w", err)
	}
	defer cancel()

	var tok string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(e.tokenCaptureURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`window.localStorage.getItem('authToken') || ''`, &tok),
	)
	if err != nil {
		return fmt.Errorf("token capture navigation: %w", err)
	}
	if tok == "" {
		return fmt.Errorf("token capture: no token found after page load")
	}

	e.tokenSetter.Set(tok)
	return nil
}
