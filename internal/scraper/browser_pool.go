package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/common"
)

// BrowserPool manages one shared chromedp allocator, handing out a fresh
// per-attempt browser context stamped with a randomized
// user-agent and viewport (spec.md §4.D.2.a). Adapted from the teacher's
// ChromeDPPool (internal/services/crawler/chromedp_pool.go), but each
// acquisition creates its own tab context instead of round-robining a fixed
// set of long-lived browsers, since user-agent/viewport must vary per
// attempt rather than per pool slot.
type BrowserPool struct {
	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	logger      arbor.ILogger

	userAgents []string
	viewports  []common.Viewport
	locale     string
	timezone   string

	rng *rand.Rand
}

// NewBrowserPool creates the shared allocator. Individual browser contexts
// are created on demand from it (chromedp allocators are cheap to derive
// contexts from; the expensive part is the underlying Chrome process, which
// is shared).
func NewBrowserPool(logger arbor.ILogger, cfg common.ScraperConfig) (*BrowserPool, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	testCtx, testCancel := context.WithTimeout(allocCtx, 30*time.Second)
	defer testCancel()

	browserCtx, browserCancel := chromedp.NewContext(testCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		allocCancel()
		return nil, fmt.Errorf("browser pool: startup test failed: %w", err)
	}

	return &BrowserPool{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
		userAgents:  cfg.UserAgents,
		viewports:   cfg.Viewports,
		locale:      cfg.Locale,
		timezone:    cfg.Timezone,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Attempt describes the randomized identity assigned to one browser context.
type Attempt struct {
	UserAgent string
	Viewport  common.Viewport
}

func (p *BrowserPool) randomAttempt() Attempt {
	p.mu.Lock()
	defer p.mu.Unlock()

	a := Attempt{}
	if len(p.userAgents) > 0 {
		a.UserAgent = p.userAgents[p.rng.Intn(len(p.userAgents))]
	}
	if len(p.viewports) > 0 {
		a.Viewport = p.viewports[p.rng.Intn(len(p.viewports))]
	}
	return a
}

// NewTab derives a fresh tab context from the shared allocator, stamped with
// a randomized user-agent and viewport. The returned cancel func must be
// called to release the tab. ctx's cancellation is wired to the tab for the
// tab's whole lifetime (not just checked once up front), so a shutdown
// signal arriving mid-chromedp.Run aborts the in-flight browser operation
// instead of running to completion (spec.md's checkpoint-based cancellation,
// §4.D).
func (p *BrowserPool) NewTab(ctx context.Context) (context.Context, context.CancelFunc, Attempt, error) {
	attempt := p.randomAttempt()

	tabCtx, tabCancel := chromedp.NewContext(p.allocCtx)
	tabCtx, timeoutCancel := context.WithCancel(tabCtx)

	// context.AfterFunc cancels the tab the instant ctx is done, even while a
	// chromedp.Run call below is blocked waiting on the browser; stop() below
	// disarms it once the tab is released through the normal path.
	stop := context.AfterFunc(ctx, timeoutCancel)

	cancel := func() {
		stop()
		timeoutCancel()
		tabCancel()
	}

	var setup []chromedp.Action
	if attempt.UserAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(attempt.UserAgent))
	}
	if attempt.Viewport.Width > 0 && attempt.Viewport.Height > 0 {
		setup = append(setup, chromedp.EmulateViewport(attempt.Viewport.Width, attempt.Viewport.Height))
	}
	if len(setup) > 0 {
		if err := chromedp.Run(tabCtx, setup...); err != nil {
			cancel()
			if ctx.Err() != nil {
				return nil, nil, Attempt{}, ctx.Err()
			}
			return nil, nil, Attempt{}, fmt.Errorf("browser pool: set user agent/viewport: %w", err)
		}
	}

	select {
	case <-ctx.Done():
		cancel()
		return nil, nil, Attempt{}, ctx.Err()
	default:
	}

	return tabCtx, cancel, attempt, nil
}

// Close shuts down the shared allocator and every tab derived from it.
func (p *BrowserPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allocCancel != nil {
		p.allocCancel()
	}
}
