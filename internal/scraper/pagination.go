package scraper

import (
	"encoding/json"
	"fmt"
)

// wireResponse mirrors the upstream search endpoint's response shape exactly
// (spec.md §6): {"totalProperty": {"propertyCount": N}, "results": [...]}.
type wireResponse struct {
	TotalProperty struct {
		PropertyCount int `json:"propertyCount"`
	} `json:"totalProperty"`
	Results []wireRow `json:"results"`
}

type wireRow struct {
	PID              string      `json:"pid"`
	DisplayName      string      `json:"displayName"`
	PropType         string      `json:"propType"`
	City             string      `json:"city"`
	StreetPrimary    string      `json:"streetPrimary"`
	AssessedValue    json.Number `json:"assessedValue"`
	AppraisedValue   json.Number `json:"appraisedValue"`
	GeoID            string      `json:"geoID"`
	LegalDescription string      `json:"legalDescription"`
}

// isTruncated reports whether a response body looks like a partial
// transmission: its last non-whitespace byte is neither '}' nor ']'
// (spec.md §6, the Truncation glossary entry).
func isTruncated(body []byte) bool {
	for i := len(body) - 1; i >= 0; i-- {
		switch body[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '}', ']':
			return false
		default:
			return true
		}
	}
	return true // empty body
}

// pageFetcher performs one page/pageSize request and returns the raw body.
// Supplied by the caller so the pagination state machine stays transport-
// agnostic (spec.md §9: no in-page string injection, a named interface
// instead).
type pageFetcher func(pageSize, page int) ([]byte, error)

// fetchAllPages runs the adaptive page-size algorithm (spec.md §4.D.2.b):
// try each page size in sequence; on truncation or parse failure, step to
// the next smaller size; on success, paginate until accumulated results
// reach totalCount, a page returns fewer than pageSize rows, or pageCap is
// reached.
func fetchAllPages(pageSizes []int, pageCap int, fetch pageFetcher) ([]wireRow, error) {
	if len(pageSizes) == 0 {
		return nil, fmt.Errorf("pagination: no page sizes configured")
	}

	var lastErr error

	for _, pageSize := range pageSizes {
		body, err := fetch(pageSize, 1)
		if err != nil {
			lastErr = err
			continue
		}
		if isTruncated(body) {
			lastErr = fmt.Errorf("truncated response at pageSize=%d", pageSize)
			continue
		}

		var first wireResponse
		if err := json.Unmarshal(body, &first); err != nil {
			lastErr = fmt.Errorf("parse page 1 at pageSize=%d: %w", pageSize, err)
			continue
		}

		rows := append([]wireRow{}, first.Results...)
		totalCount := first.TotalProperty.PropertyCount
		if len(first.Results) < pageSize {
			return rows, nil
		}

		for page := 2; len(rows) < totalCount && page <= pageCap; page++ {
			pageBody, err := fetch(pageSize, page)
			if err != nil {
				return rows, fmt.Errorf("fetch page %d at pageSize=%d: %w", page, pageSize, err)
			}
			if isTruncated(pageBody) {
				return rows, fmt.Errorf("truncated response at page %d, pageSize=%d", page, pageSize)
			}

			var next wireResponse
			if err := json.Unmarshal(pageBody, &next); err != nil {
				return rows, fmt.Errorf("parse page %d at pageSize=%d: %w", page, pageSize, err)
			}

			rows = append(rows, next.Results...)
			if len(next.Results) < pageSize {
				break
			}
		}

		return rows, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("pagination: all page sizes exhausted")
	}
	return nil, lastErr
}
