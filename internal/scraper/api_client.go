package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/common"
	"github.com/ternarybob/tcad-harvester/internal/interfaces"
	"github.com/ternarybob/tcad-harvester/internal/models"
)

// APIClient performs the wire-level property search against the upstream
// full-text search endpoint (spec.md §6). Request/response shapes here must
// match the external interfaces section exactly.
type APIClient struct {
	http       *http.Client
	baseURL    string
	year       string
	tokens     interfaces.TokenProvider
	limiter    *RateLimiter
	pageSizes  []int
	pageCap    int
	logger     arbor.ILogger
}

// NewAPIClient creates an APIClient.
func NewAPIClient(logger arbor.ILogger, cfg common.ScraperConfig, tokens interfaces.TokenProvider, limiter *RateLimiter) *APIClient {
	return &APIClient{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.TCADAPIURL,
		year:      cfg.Year,
		tokens:    tokens,
		limiter:   limiter,
		pageSizes: cfg.PageSizes,
		pageCap:   cfg.PageCap,
		logger:    logger,
	}
}

// requestBody mirrors spec.md §6's exact POST body shape.
type requestBody struct {
	PYear struct {
		Operator string `json:"operator"`
		Value    string `json:"value"`
	} `json:"pYear"`
	FullTextSearch struct {
		Operator string `json:"operator"`
		Value    string `json:"value"`
	} `json:"fullTextSearch"`
}

func (c *APIClient) newRequestBody(term string) requestBody {
	var b requestBody
	b.PYear.Operator = "="
	b.PYear.Value = c.year
	b.FullTextSearch.Operator = "match"
	b.FullTextSearch.Value = term
	return b
}

// Search attempts the API scrape with adaptive page-size fallback. It does
// not itself retry on transport errors; that is the caller's (Executor's)
// job via RetryPolicy, so each call here is one attempt.
func (c *APIClient) Search(ctx context.Context, term string) ([]*models.PropertyRecord, error) {
	token, ok := c.tokens.Current()
	if !ok {
		return nil, classify(term, ErrorClassAuth, fmt.Errorf("no token available"))
	}

	body := c.newRequestBody(term)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, classify(term, ErrorClassParse, fmt.Errorf("marshal request body: %w", err))
	}

	fetch := func(pageSize, page int) ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return c.doPost(ctx, token, payload, page, pageSize)
	}

	rows, err := fetchAllPages(c.pageSizes, c.pageCap, fetch)
	if err != nil {
		if authErr, isAuth := asAuthError(err); isAuth {
			return nil, classify(term, ErrorClassAuth, authErr)
		}
		var classified *Error
		if errors.As(err, &classified) {
			return nil, classify(term, classified.Class, err)
		}
		return nil, classify(term, ErrorClassParse, err)
	}

	records := make([]*models.PropertyRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToRecord(term, row))
	}
	return records, nil
}

func (c *APIClient) doPost(ctx context.Context, token string, payload []byte, page, pageSize int) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isRetryableNetErr(err) {
			return nil, &Error{Class: ErrorClassTransport, Err: err}
		}
		return nil, &Error{Class: ErrorClassTransport, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Class: ErrorClassTransport, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &authError{fmt.Errorf("upstream returned %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 500 {
		return nil, &Error{Class: ErrorClassTransport, Err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Class: ErrorClassParse, Err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
	}

	return respBody, nil
}

// authError marks an error produced when the upstream rejects the token,
// distinguished from a generic parse error so Search can classify it as
// ErrorClassAuth rather than ErrorClassParse.
type authError struct{ err error }

func (a *authError) Error() string { return a.err.Error() }
func (a *authError) Unwrap() error { return a.err }

func asAuthError(err error) (error, bool) {
	var a *authError
	if errors.As(err, &a) {
		return a, true
	}
	return nil, false
}

// rowToRecord converts one wire row into PropertyRecord, applying the money
// parsing rule from spec.md §4.D: decimal parsing, NaN coerced to 0 for
// appraisedValue, and to null for assessedValue.
func rowToRecord(term string, row wireRow) *models.PropertyRecord {
	rec := &models.PropertyRecord{
		PropertyID:       row.PID,
		SearchTerm:       term,
		OwnerName:        row.DisplayName,
		PropertyType:     row.PropType,
		City:             row.City,
		StreetAddress:    row.StreetPrimary,
		LegalDescription: nonEmptyPtr(row.LegalDescription),
		GeoID:            nonEmptyPtr(row.GeoID),
	}

	if v, err := row.AppraisedValue.Float64(); err == nil {
		rec.AppraisedValue = v
	} else {
		rec.AppraisedValue = 0
	}

	if v, err := row.AssessedValue.Float64(); err == nil {
		rec.AssessedValue = &v
	} else {
		rec.AssessedValue = nil
	}

	return rec
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
