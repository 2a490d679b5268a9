// Package config loads the single configuration record threaded through
// every component (DESIGN NOTES §9: no process-wide mutable state),
// following the teacher's YAML-load-then-Validate shape
// (internal/config/providers.go in sawpanic/cryptorun).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of recognized options from spec §6 plus the
// rotation/cache constants from spec §4.9.
type Config struct {
	DevMode         bool `yaml:"dev_mode"`
	DevTickersLimit int  `yaml:"dev_tickers_limit"`

	MinMarketCapUSD    float64 `yaml:"min_market_cap"`
	PriorityTopStocks  int     `yaml:"priority_top_stocks"`
	MaxTickersPerRun   int     `yaml:"max_tickers_per_run"`
	PriorityPerRun     int     `yaml:"priority_per_run"`
	RotationPerRun     int     `yaml:"rotation_per_run"`
	CoreETFs           []string `yaml:"core_etfs"`

	CacheTTL          map[string]time.Duration `yaml:"cache_ttl"`
	RequestTimeoutSec int                       `yaml:"request_timeout_sec"`

	UniverseCacheTTLSec int `yaml:"universe_cache_ttl_sec"`

	Fetch FetchConfig `yaml:"fetch"`

	Setups SetupsConfig `yaml:"setups"`

	Paths PathsConfig `yaml:"paths"`

	Concurrency int `yaml:"concurrency"`
}

// FetchConfig controls the bar fetcher's vendor-call shape (spec §4.3/§9).
type FetchConfig struct {
	// IntradayFallbackPeriods is the ordered chain of periods tried for
	// 60m requests. Spec §9 fixes the cap at 60 days but mandates this
	// stay a tunable, not a hard-coded constant.
	IntradayFallbackPeriods []string `yaml:"intraday_fallback_periods"`
	CircuitBreakerThreshold uint32   `yaml:"circuit_breaker_threshold"`
	RateLimitPerSecond      float64  `yaml:"rate_limit_per_second"`
}

// SetupsConfig toggles the non-default setup catalogue (spec §4.7).
type SetupsConfig struct {
	EnableTwoBarReversals bool `yaml:"enable_two_bar_reversals"`
	EnableContinuations   bool `yaml:"enable_continuations"`
}

// PathsConfig is where on-disk inputs/outputs live (spec §6).
type PathsConfig struct {
	CacheDir         string `yaml:"cache_dir"`
	SymbolsTable     string `yaml:"symbols_table"`
	ETFListing       string `yaml:"etf_listing"`
	SectorMap        string `yaml:"sector_map"`
	ETFHoldings      string `yaml:"etf_holdings"`
	ResultsCSV       string `yaml:"results_csv"`
	ResultsJSON      string `yaml:"results_json"`
	ContextCSV       string `yaml:"context_csv"`
	LastRunJSON      string `yaml:"last_run_json"`
	StateJSON        string `yaml:"state_json"`
}

// Default returns the built-in configuration used when no file is
// supplied (teacher pattern: NewThresholdRouterWithDefaults in
// internal/gates/thresholds.go).
func Default() Config {
	return Config{
		DevMode:           false,
		DevTickersLimit:   10,
		MinMarketCapUSD:   10_000_000,
		PriorityTopStocks: 100,
		MaxTickersPerRun:  500,
		PriorityPerRun:    50,
		RotationPerRun:    200,
		CoreETFs:          []string{"SPY", "QQQ", "IWM", "DIA"},
		CacheTTL: map[string]time.Duration{
			"1d":  12 * time.Hour,
			"60m": 2 * time.Hour,
		},
		RequestTimeoutSec:   20,
		UniverseCacheTTLSec: 24 * 3600,
		Fetch: FetchConfig{
			IntradayFallbackPeriods: []string{"60d", "30d", "7d"},
			CircuitBreakerThreshold: 5,
			RateLimitPerSecond:      5,
		},
		Setups: SetupsConfig{},
		Paths: PathsConfig{
			CacheDir:     "cache/ohlc",
			SymbolsTable: "data/stocks_biggest.csv",
			ETFListing:   "data/etf_listing.csv",
			SectorMap:    "data/sector_map.csv",
			ETFHoldings:  "data/core_etf_holdings.csv",
			ResultsCSV:   "out/results.csv",
			ResultsJSON:  "out/results.json",
			ContextCSV:   "out/context.csv",
			LastRunJSON:  "out/last_run.json",
			StateJSON:    "out/state.json",
		},
		Concurrency: 12,
	}
}

// Load reads and validates a YAML config file, merging it over Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate ensures the configuration is internally consistent, in the
// teacher's per-field validation style (internal/config/providers.go).
func (c Config) Validate() error {
	if c.MinMarketCapUSD < 0 {
		return fmt.Errorf("min_market_cap must be non-negative, got %f", c.MinMarketCapUSD)
	}
	if c.PriorityTopStocks < 0 {
		return fmt.Errorf("priority_top_stocks must be non-negative, got %d", c.PriorityTopStocks)
	}
	if c.MaxTickersPerRun <= 0 {
		return fmt.Errorf("max_tickers_per_run must be positive, got %d", c.MaxTickersPerRun)
	}
	if c.PriorityPerRun < 0 || c.RotationPerRun < 0 {
		return fmt.Errorf("priority_per_run/rotation_per_run must be non-negative")
	}
	if c.RequestTimeoutSec <= 0 {
		return fmt.Errorf("request_timeout_sec must be positive, got %d", c.RequestTimeoutSec)
	}
	if len(c.Fetch.IntradayFallbackPeriods) == 0 {
		return fmt.Errorf("fetch.intraday_fallback_periods must not be empty")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}
