// Command stratscan is the CLI entry point (spec §7): scan runs the
// full pipeline, gate runs the pre-flight check standalone, rotate
// prints the next rotation batch for debugging. Grounded on the
// teacher's cobra root-plus-subcommand layout and TTY-aware output
// (cmd/cryptorun/main.go).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/snoman23/strat-engine/internal/bars"
	"github.com/snoman23/strat-engine/internal/cache"
	"github.com/snoman23/strat-engine/internal/closedbar"
	"github.com/snoman23/strat-engine/internal/config"
	"github.com/snoman23/strat-engine/internal/enrich"
	"github.com/snoman23/strat-engine/internal/logx"
	"github.com/snoman23/strat-engine/internal/orchestrator"
	"github.com/snoman23/strat-engine/internal/reference"
	"github.com/snoman23/strat-engine/internal/rungate"
	"github.com/snoman23/strat-engine/internal/setups"
	"github.com/snoman23/strat-engine/internal/snapshot"
	"github.com/snoman23/strat-engine/internal/universe"
	"github.com/snoman23/strat-engine/internal/vendor"
)

// referenceSymbol is the fixed symbol C12's gate checks against (spec §4.12).
const referenceSymbol = "SPY"

const appName = "stratscan"

var version = "v0.1.0"

func main() {
	human := term.IsTerminal(int(os.Stderr.Fd()))
	log := logx.New(os.Stderr, human, zerolog.InfoLevel)

	var configPath string
	var vendorBaseURL string

	root := &cobra.Command{
		Use:     appName,
		Short:   "STRAT price-action scanner",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&vendorBaseURL, "vendor-url", "http://localhost:8080", "OHLC vendor base URL")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a full universe scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), configPath, vendorBaseURL, log)
		},
	}

	gateCmd := &cobra.Command{
		Use:   "gate",
		Short: "Run the pre-flight gate check standalone; exit code 2 means skip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGate(cmd.Context(), configPath, vendorBaseURL, log)
		},
	}

	rotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Print the next rotation batch and advance the persisted offset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRotate(configPath, log)
		},
	}

	root.AddCommand(scanCmd, gateCmd, rotateCmd)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	return config.Load(path)
}

func buildLoader(cfg config.Config, vendorBaseURL string, log zerolog.Logger) (*vendor.Loader, error) {
	store, err := cache.New(cfg.Paths.CacheDir)
	if err != nil {
		return nil, err
	}
	client := vendor.NewClient(
		vendorBaseURL,
		time.Duration(cfg.RequestTimeoutSec)*time.Second,
		cfg.Fetch.IntradayFallbackPeriods,
		cfg.Fetch.CircuitBreakerThreshold,
		cfg.Fetch.RateLimitPerSecond,
		log,
	)
	ttl := make(map[bars.Interval]time.Duration, len(cfg.CacheTTL))
	for k, v := range cfg.CacheTTL {
		ttl[bars.Interval(k)] = v
	}
	return vendor.NewLoader(store, client, ttl, log), nil
}

func buildUniverse(cfg config.Config) (*universe.Manager, error) {
	symbols, err := reference.LoadSymbols(cfg.Paths.SymbolsTable)
	if err != nil {
		return nil, err
	}
	etfs, err := reference.LoadSet(cfg.Paths.ETFListing)
	if err != nil {
		return nil, err
	}
	return universe.NewManager(symbols, etfs, universe.Config{
		MinMarketCapUSD:   cfg.MinMarketCapUSD,
		PriorityTopStocks: cfg.PriorityTopStocks,
		PriorityPerRun:    cfg.PriorityPerRun,
		RotationPerRun:    cfg.RotationPerRun,
		MaxTickersPerRun:  cfg.MaxTickersPerRun,
		CoreETFs:          cfg.CoreETFs,
		DevMode:           cfg.DevMode,
		DevTickersLimit:   cfg.DevTickersLimit,
	}, cfg.Paths.StateJSON), nil
}

func buildEnrichment(cfg config.Config) (*enrich.Source, error) {
	symbols, err := reference.LoadSymbols(cfg.Paths.SymbolsTable)
	if err != nil {
		return nil, err
	}
	etfs, err := reference.LoadSet(cfg.Paths.ETFListing)
	if err != nil {
		return nil, err
	}
	holdings, err := reference.LoadHoldings(cfg.Paths.ETFHoldings)
	if err != nil {
		return nil, err
	}
	return enrich.NewSource(symbols, etfs, holdings), nil
}

func runScan(ctx context.Context, configPath, vendorBaseURL string, log zerolog.Logger) error {
	runID := uuid.New().String()
	log = log.With().Str("run_id", runID).Logger()
	start := time.Now()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	loader, err := buildLoader(cfg, vendorBaseURL, log)
	if err != nil {
		return err
	}
	um, err := buildUniverse(cfg)
	if err != nil {
		return err
	}
	enrichment, err := buildEnrichment(cfg)
	if err != nil {
		return err
	}

	symbols, err := um.Select()
	if err != nil {
		return fmt.Errorf("stratscan: failed to select ticker batch: %w", err)
	}
	log.Info().Int("symbols", len(symbols)).Msg("selected run batch")

	orch := &orchestrator.Orchestrator{
		Loader:      loader,
		Enrichment:  enrichment,
		Options:     setups.Options{EnableTwoBarReversals: cfg.Setups.EnableTwoBarReversals, EnableContinuations: cfg.Setups.EnableContinuations},
		Concurrency: cfg.Concurrency,
		Log:         log,
	}

	now := time.Now()
	results, contexts := orch.Run(ctx, symbols, now)

	if err := snapshot.Write(snapshot.Paths{
		ResultsCSV:  cfg.Paths.ResultsCSV,
		ResultsJSON: cfg.Paths.ResultsJSON,
		ContextCSV:  cfg.Paths.ContextCSV,
	}, results, contexts); err != nil {
		return err
	}

	if err := advanceGate(ctx, cfg, loader, contexts); err != nil {
		log.Warn().Err(err).Msg("failed to advance run gate state")
	}

	elapsed := time.Since(start)
	log.Info().
		Str("elapsed", elapsed.Round(time.Millisecond).String()).
		Int("symbols_scanned", len(symbols)).
		Str("rows_emitted", humanize.Comma(int64(len(results)))).
		Str("context_rows", humanize.Comma(int64(len(contexts)))).
		Msg("scan complete")
	return nil
}

// referenceClosedState derives every target timeframe for the reference
// symbol (spec §4.12: "derive the target frames; for each timeframe
// compute its last-closed timestamp") and resolves each one's
// last-closed bar via closedbar.Oracle, mirroring
// orchestrator.buildFrames so the gate's notion of "closed" never
// drifts from the scan's. Both runGate's check and advanceGate's
// recorded baseline call this same function, so the two sides of the
// comparison are always computed identically.
func referenceClosedState(ctx context.Context, loader *vendor.Loader, now time.Time) map[bars.Timeframe]time.Time {
	daily := loader.Load(ctx, referenceSymbol, bars.IntervalDaily, "max")
	intraday := loader.Load(ctx, referenceSymbol, bars.Interval60Min, "60d")

	frames := make(map[bars.Timeframe]bars.Frame)
	if len(daily) > 0 {
		frames[bars.TFD] = daily
	}
	if len(intraday) > 0 {
		frames[bars.TF1H] = intraday
	}
	if len(intraday) > 0 && vendor.Plausible(intraday, time.Hour) {
		for _, tf := range []bars.Timeframe{bars.TF2H, bars.TF3H, bars.TF4H} {
			if f, err := bars.Resample(intraday, tf); err == nil && len(f) > 0 {
				frames[tf] = f
			}
		}
	}
	if len(daily) > 0 && vendor.Plausible(daily, 24*time.Hour) {
		for _, tf := range []bars.Timeframe{bars.TFW, bars.TFM, bars.TFQ, bars.TFY} {
			if f, err := bars.Resample(daily, tf); err == nil && len(f) > 0 {
				frames[tf] = f
			}
		}
	}

	closed := make(map[bars.Timeframe]time.Time, len(frames))
	for tf, f := range frames {
		if len(f) == 0 {
			continue
		}
		idx := closedbar.Oracle(tf, f, now)
		if i := f.IndexOf(idx); i >= 0 {
			closed[tf] = f[i].Timestamp
		}
	}
	return closed
}

func runGate(ctx context.Context, configPath, vendorBaseURL string, log zerolog.Logger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	loader, err := buildLoader(cfg, vendorBaseURL, log)
	if err != nil {
		return err
	}

	closed := referenceClosedState(ctx, loader, time.Now())
	if len(closed) == 0 {
		log.Warn().Msg("gate: no reference data available, proceeding with scan")
		return nil
	}

	gate := rungate.New(cfg.Paths.LastRunJSON)
	if gate.ShouldRun(rungate.ReferenceState(closed)) {
		log.Info().Msg("gate: new data since last run, proceeding")
		return nil
	}
	log.Info().Msg("gate: no new closed bars since last run, skipping")
	os.Exit(2)
	return nil
}

func advanceGate(ctx context.Context, cfg config.Config, loader *vendor.Loader, contexts []orchestrator.ContextRow) error {
	if len(contexts) == 0 {
		return nil
	}
	closed := referenceClosedState(ctx, loader, time.Now())
	if len(closed) == 0 {
		return nil
	}
	gate := rungate.New(cfg.Paths.LastRunJSON)
	return gate.Advance(rungate.ReferenceState(closed))
}

func runRotate(configPath string, log zerolog.Logger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	um, err := buildUniverse(cfg)
	if err != nil {
		return err
	}
	batch, err := um.Select()
	if err != nil {
		return err
	}
	for _, sym := range batch {
		fmt.Println(sym)
	}
	log.Info().Int("count", len(batch)).Msg("rotation batch printed")
	return nil
}
