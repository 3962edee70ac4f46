// Package scraper implements the Scrape Executor (spec.md §4.D): given a
// search term, obtain a token, attempt the wire-level API search with an
// adaptive page-size retry loop, and fall back to a real-browser DOM scrape
// if every API attempt fails.
package scraper

import (
	"fmt"

	"github.com/ternarybob/tcad-harvester/internal/models"
)

// ErrorClass classifies a scrape failure, per spec.md §4.D and §7.
type ErrorClass string

const (
	ErrorClassAuth              ErrorClass = "auth"
	ErrorClassTransport         ErrorClass = "transport"
	ErrorClassParse             ErrorClass = "parse"
	ErrorClassFallbackExhausted ErrorClass = "fallback-exhausted"
	ErrorClassCancelled         ErrorClass = "cancelled"
)

// Error wraps a classified scrape failure so callers (the worker, the Job
// Queue's fail() path) can decide retry vs terminal without string matching.
type Error struct {
	Class ErrorClass
	Term  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("scrape %q: %s: %v", e.Term, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the job queue should retry this failure, per
// spec.md §7: auth and fallback-exhausted are terminal, everything else
// participates in the worker's normal attempt/backoff loop.
func (e *Error) Retryable() bool {
	switch e.Class {
	case ErrorClassAuth, ErrorClassFallbackExhausted:
		return false
	default:
		return true
	}
}

func classify(term string, class ErrorClass, err error) *Error {
	return &Error{Class: class, Term: term, Err: err}
}

// Result is the outcome of one scrape attempt for a single search term.
type Result struct {
	Records []*models.PropertyRecord
	UsedDOM bool // true if the DOM fallback path produced these records
}
