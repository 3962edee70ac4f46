// Package integration holds end-to-end tests that wire real storage and
// require external infrastructure (a headless Chrome binary for the
// scraper's browser pool), grounded on the teacher's test/integration
// app_startup_test.go shape.
package integration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tcad-harvester/internal/app"
	"github.com/ternarybob/tcad-harvester/internal/common"
	"github.com/ternarybob/tcad-harvester/internal/queue"
)

// TestApplicationStartup verifies that App.New wires every core component
// against real (temp-directory) BadgerDB and SQLite storage, and that the
// fresh stores report no properties and no pending or active jobs.
func TestApplicationStartup(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "badger")
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "harvester.sqlite")
	cfg.Scraper.TCADBaseURL = "https://example.invalid/search"
	cfg.Scraper.TCADAPIURL = "https://example.invalid/api/search"

	logger := arbor.NewLogger()
	require.NotNil(t, logger, "logger should be initialized")

	application, err := app.New(cfg, logger)
	require.NoError(t, err, "application initialization should succeed")
	require.NotNil(t, application, "application should not be nil")
	defer application.Close()

	require.NotNil(t, application.Properties, "property store should be initialized")
	require.NotNil(t, application.Jobs, "job store should be initialized")
	require.NotNil(t, application.TermHistory, "term history store should be initialized")
	require.NotNil(t, application.TokenProvider, "token provider should be initialized")
	require.NotNil(t, application.Deduplicator, "deduplicator should be initialized")
	require.NotNil(t, application.Generator, "term generator should be initialized")
	require.NotNil(t, application.Optimizer, "optimizer should be initialized")
	require.NotNil(t, application.Executor, "scrape executor should be initialized")
	require.NotNil(t, application.Upsert, "upsert pipeline should be initialized")
	require.NotNil(t, application.Queue, "job queue should be initialized")
	require.NotNil(t, application.Pool, "worker pool should be initialized")
	require.NotNil(t, application.Driver, "driver should be initialized")

	count, err := application.Properties.Count(t.Context())
	require.NoError(t, err, "counting properties on a fresh store should succeed")
	assert.Equal(t, 0, count, "a fresh store should have no properties")

	stats, err := application.Queue.Stats(t.Context())
	require.NoError(t, err, "queue stats on a fresh queue should succeed")
	assert.Equal(t, 0, stats.Pending, "a fresh queue should have no pending jobs")
	assert.Equal(t, 0, stats.Active, "a fresh queue should have no active jobs")
}

// TestApplicationEnqueueAndReserve exercises the Job Queue's enqueue/reserve
// round trip against the real SQLite-backed goqite transport.
func TestApplicationEnqueueAndReserve(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "badger")
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "harvester.sqlite")
	cfg.Scraper.TCADBaseURL = "https://example.invalid/search"
	cfg.Scraper.TCADAPIURL = "https://example.invalid/api/search"

	logger := arbor.NewLogger()
	application, err := app.New(cfg, logger)
	require.NoError(t, err)
	defer application.Close()

	ctx := t.Context()
	jobID, err := application.Queue.Enqueue(ctx, "Smith", queue.DefaultEnqueueOptions())
	require.NoError(t, err, "enqueue should succeed")
	assert.NotEmpty(t, jobID, "enqueue should return a job id")

	r, err := application.Queue.Reserve(ctx)
	require.NoError(t, err, "reserve should succeed")
	require.NotNil(t, r, "reserve should return the enqueued job")
	assert.Equal(t, jobID, r.JobID)
	assert.Equal(t, "Smith", r.SearchTerm)

	require.NoError(t, application.Queue.Complete(ctx, r, 3))

	stats, err := application.Queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed, "completed job should be reflected in stats")
}
