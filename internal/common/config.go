// Package common provides shared utilities and the application configuration
// shape. Loading is an ambient, cmd/-level concern (pelletier/go-toml/v2
// files named by -config flags); the core only ever receives an
// already-validated *Config.
package common

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is the injected, validated value bag every component is
// constructed from. The CORE never loads this itself (spec.md §1
// Out-of-scope); cmd/harvester owns config file discovery. Environment
// variables are not read.
type Config struct {
	Environment string         `toml:"environment" validate:"omitempty,oneof=development production"`
	Logging     LoggingConfig  `toml:"logging"`
	Storage     StorageConfig  `toml:"storage"`
	Queue       QueueConfig    `toml:"queue"`
	Token       TokenConfig    `toml:"token"`
	Dedup       DedupConfig    `toml:"dedup"`
	TermGen     TermGenConfig  `toml:"term_generator"`
	Scraper     ScraperConfig  `toml:"scraper"`
	Optimizer   OptimizerConfig `toml:"optimizer"`
	Driver      DriverConfig   `toml:"driver"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string   `toml:"format"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
}

type StorageConfig struct {
	// Path is the BadgerDB directory backing the Property/ScrapeJob/TermHistory stores.
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
	// SQLitePath backs the goqite transport tables (internal/queue).
	SQLitePath string `toml:"sqlite_path" validate:"required"`
}

// QueueConfig mirrors the teacher's queue.Config (internal/queue/config.go),
// generalized with priority buckets and retry/backoff knobs (spec.md §4.F).
type QueueConfig struct {
	QueueNamePrefix   string        `toml:"queue_name_prefix"`
	PriorityBuckets   int           `toml:"priority_buckets" validate:"min=1"`
	PollInterval      time.Duration `toml:"poll_interval"`
	VisibilityTimeout time.Duration `toml:"visibility_timeout"`
	MaxAttempts       int           `toml:"max_attempts" validate:"min=1"`
	RetryBaseDelay    time.Duration `toml:"retry_base_delay"`
	RetryFactor       float64       `toml:"retry_factor" validate:"min=1"`
	RemoveOnComplete  int           `toml:"remove_on_complete"`
	RemoveOnFail      int           `toml:"remove_on_fail"`
}

type TokenConfig struct {
	AutoRefresh           bool          `toml:"auto_refresh"`
	RefreshInterval       time.Duration `toml:"refresh_interval"`
	RefreshGracePeriod    time.Duration `toml:"refresh_grace_period"`
}

type DedupConfig struct {
	TooCommonTerms   []string `toml:"too_common_terms"`
	BusinessSuffixes []string `toml:"business_suffixes"`
}

type TermGenConfig struct {
	OptimizationInterval int `toml:"optimization_interval" validate:"min=1"`
	// CacheRefreshInterval bounds how stale the generator's usedTerms hint
	// cache may get before it force-reloads from the TermHistoryStore.
	CacheRefreshInterval time.Duration `toml:"cache_refresh_interval"`
}

type ScraperConfig struct {
	Year           string        `toml:"year" validate:"required"`
	TCADBaseURL    string        `toml:"tcad_base_url" validate:"required"`
	TCADAPIURL     string        `toml:"tcad_api_url" validate:"required"`
	PageSizes      []int         `toml:"page_sizes"`
	PageCap        int           `toml:"page_cap" validate:"min=1"`
	MaxAPIAttempts int           `toml:"max_api_attempts" validate:"min=1"`
	RetryBaseDelay time.Duration `toml:"retry_base_delay"`
	RetryFactor    float64       `toml:"retry_factor" validate:"min=1"`
	Timeout        time.Duration `toml:"timeout"`
	// RequestsPerSecond throttles the API client as a courtesy to the
	// upstream host; the adaptive page-size fallback already bounds request
	// volume, so this is a soft cap rather than a spec-mandated limiter.
	RequestsPerSecond float64    `toml:"requests_per_second" validate:"min=0"`
	DOMFallbackRowCap int        `toml:"dom_fallback_row_cap" validate:"min=1"`
	UserAgents     []string      `toml:"user_agents"`
	Viewports      []Viewport    `toml:"viewports"`
	Locale         string        `toml:"locale"`
	Timezone       string        `toml:"timezone"`
}

// Viewport is a fixed (width, height) pair drawn from at random per attempt
// (spec.md §4.D.1.a).
type Viewport struct {
	Width  int64 `toml:"width"`
	Height int64 `toml:"height"`
}

type OptimizerConfig struct {
	MinEfficiency    float64       `toml:"min_efficiency"`
	MinSuccessRate   float64       `toml:"min_success_rate"`
	RecentDays       int           `toml:"recent_days"`
	HighPerformerLimit int         `toml:"high_performer_limit" validate:"min=0"`
	SuggestionLimit  int           `toml:"suggestion_limit" validate:"min=0"`
}

type DriverConfig struct {
	BatchSize            int           `toml:"batch_size" validate:"min=1"`
	DelayBetweenBatches  time.Duration `toml:"delay_between_batches"`
	CheckInterval        time.Duration `toml:"check_interval"`
	QueueRefillThreshold int           `toml:"queue_refill_threshold"`
	TargetProperties     int           `toml:"target_properties" validate:"min=1"`
	Concurrency          int           `toml:"concurrency" validate:"min=1"`
	ShutdownTimeout      time.Duration `toml:"shutdown_timeout"`
	// CleanStart clears leftover pending jobs from a previous generator run
	// instead of resuming them (spec.md §4.H startup policy gate).
	CleanStart bool `toml:"clean_start"`
}

// NewDefaultConfig returns the documented defaults from spec.md §6.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Storage: StorageConfig{
			Path:       "./data/harvester.badger",
			SQLitePath: "./data/harvester.sqlite",
		},
		Queue: QueueConfig{
			QueueNamePrefix:   "harvester_jobs",
			PriorityBuckets:   10,
			PollInterval:      1 * time.Second,
			VisibilityTimeout: 5 * time.Minute,
			MaxAttempts:       3,
			RetryBaseDelay:    2 * time.Second,
			RetryFactor:       2.0,
			RemoveOnComplete:  1000,
			RemoveOnFail:      1000,
		},
		Token: TokenConfig{
			AutoRefresh:        false,
			RefreshInterval:    10 * time.Minute,
			RefreshGracePeriod: 2 * time.Second,
		},
		Dedup: DedupConfig{
			TooCommonTerms: []string{
				"a", "b", "c", "d", "e", "i", "o", "s", "t", "x",
				"the", "and", "of", "llc", "inc",
			},
			BusinessSuffixes: []string{
				"LLC", "Inc", "Corp", "Ltd", "Trust", "Holding",
				"Properties", "Partner", "Develop", "Company", "Real", "Assoc",
			},
		},
		TermGen: TermGenConfig{
			OptimizationInterval: 50,
			CacheRefreshInterval: 1 * time.Hour,
		},
		Scraper: ScraperConfig{
			Year:              "2024",
			PageSizes:         []int{1000, 500, 100, 50},
			PageCap:           100,
			MaxAPIAttempts:    3,
			RetryBaseDelay:    1 * time.Second,
			RetryFactor:       2.0,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2.0,
			DOMFallbackRowCap: 20,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			},
			Viewports: []Viewport{
				{Width: 1920, Height: 1080},
				{Width: 1366, Height: 768},
				{Width: 1440, Height: 900},
			},
			Locale:   "en-US",
			Timezone: "America/Chicago",
		},
		Optimizer: OptimizerConfig{
			MinEfficiency:      5.0,
			MinSuccessRate:     0.5,
			RecentDays:         1,
			HighPerformerLimit: 30,
			SuggestionLimit:    20,
		},
		Driver: DriverConfig{
			BatchSize:            25,
			DelayBetweenBatches:  30 * time.Second,
			CheckInterval:        60 * time.Second,
			QueueRefillThreshold: 100,
			TargetProperties:     1_000_000,
			Concurrency:          5,
			ShutdownTimeout:      2 * time.Second,
			CleanStart:           false,
		},
	}
}

// LoadFromFiles decodes defaults, then overlays each TOML file in order
// (later files win), mirroring the teacher's common.LoadFromFiles layering.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", p, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", p, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks struct tags and a handful of cross-field invariants that
// validator tags can't express (e.g. non-empty page-size sequence).
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if len(c.Scraper.PageSizes) == 0 {
		return fmt.Errorf("scraper.page_sizes must not be empty")
	}
	for i := 1; i < len(c.Scraper.PageSizes); i++ {
		if c.Scraper.PageSizes[i] >= c.Scraper.PageSizes[i-1] {
			return fmt.Errorf("scraper.page_sizes must be strictly decreasing, got %v", c.Scraper.PageSizes)
		}
	}
	return nil
}
