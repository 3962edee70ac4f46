package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/common"
	"github.com/ternarybob/tcad-harvester/internal/models"
)

// DOMFallback drives the upstream's HTML search UI with a real browser and
// extracts rows from the rendered results grid, invoked at most once per job
// when every API attempt has failed (spec.md §4.D.3).
type DOMFallback struct {
	pool     *BrowserPool
	baseURL  string
	rowCap   int
	logger   arbor.ILogger
}

// NewDOMFallback creates a DOMFallback.
func NewDOMFallback(logger arbor.ILogger, pool *BrowserPool, cfg common.ScraperConfig) *DOMFallback {
	return &DOMFallback{
		pool:    pool,
		baseURL: cfg.TCADBaseURL,
		rowCap:  cfg.DOMFallbackRowCap,
		logger:  logger,
	}
}

// searchResultSelector and its column selectors target the upstream's
// results grid. Implementation-defined per spec.md §9 (treated as
// configuration-adjacent constants, not a fixed protocol).
const (
	searchInputSelector  = `input[name="fullTextSearch"]`
	searchButtonSelector = `button[type="submit"]`
	resultRowSelector    = `table#searchResults tbody tr`
)

// Search performs the DOM fallback for one term, returning up to rowCap
// PropertyRecords.
func (d *DOMFallback) Search(ctx context.Context, term string) ([]*models.PropertyRecord, error) {
	tabCtx, cancel, _, err := d.pool.NewTab(ctx)
	if err != nil {
		return nil, classify(term, ErrorClassFallbackExhausted, fmt.Errorf("acquire browser tab: %w", err))
	}
	defer cancel()

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(d.baseURL),
		chromedp.WaitVisible(searchInputSelector, chromedp.ByQuery),
		chromedp.SendKeys(searchInputSelector, term, chromedp.ByQuery),
		chromedp.Click(searchButtonSelector, chromedp.ByQuery),
		chromedp.WaitVisible(resultRowSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, classify(term, ErrorClassCancelled, ctx.Err())
		default:
		}
		return nil, classify(term, ErrorClassFallbackExhausted, fmt.Errorf("dom fallback navigation: %w", err))
	}

	records, err := d.parseResultsGrid(term, html)
	if err != nil {
		return nil, classify(term, ErrorClassFallbackExhausted, err)
	}
	if len(records) == 0 {
		return nil, classify(term, ErrorClassFallbackExhausted, fmt.Errorf("no rows found in results grid"))
	}
	return records, nil
}

func (d *DOMFallback) parseResultsGrid(term, html string) ([]*models.PropertyRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse results grid: %w", err)
	}

	var records []*models.PropertyRecord
	doc.Find(resultRowSelector).EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= d.rowCap {
			return false
		}

		cells := row.Find("td")
		if cells.Length() < 6 {
			return true
		}

		rec := &models.PropertyRecord{
			SearchTerm:    term,
			PropertyID:    strings.TrimSpace(cells.Eq(0).Text()),
			OwnerName:     strings.TrimSpace(cells.Eq(1).Text()),
			PropertyType:  strings.TrimSpace(cells.Eq(2).Text()),
			City:          strings.TrimSpace(cells.Eq(3).Text()),
			StreetAddress: strings.TrimSpace(cells.Eq(4).Text()),
		}

		if v, err := parseMoney(cells.Eq(5).Text()); err == nil {
			rec.AppraisedValue = v
		}

		if rec.PropertyID != "" {
			records = append(records, rec)
		}
		return true
	})

	return records, nil
}

// parseMoney strips currency formatting and parses the remaining decimal,
// matching the API client's NaN-to-zero policy for appraisedValue.
func parseMoney(s string) (float64, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if clean == "" {
		return 0, nil
	}
	return strconv.ParseFloat(clean, 64)
}
