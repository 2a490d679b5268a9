// Package orchestrator drives the per-symbol pipeline (spec §4.10):
// fetch, resample, classify, score bias, detect setups, enrich, and
// collect result rows, bounded across symbols by a semaphore in the
// teacher's concurrent-transfer style
// (internal/replication/executors_warm_cold.go).
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/snoman23/strat-engine/internal/bars"
	"github.com/snoman23/strat-engine/internal/bias"
	"github.com/snoman23/strat-engine/internal/classify"
	"github.com/snoman23/strat-engine/internal/closedbar"
	"github.com/snoman23/strat-engine/internal/enrich"
	"github.com/snoman23/strat-engine/internal/setups"
	"github.com/snoman23/strat-engine/internal/vendor"
)

// targetTimeframes mirrors original_source's TARGET_TFS: only 1H or
// coarser is ever reported (spec §4.10).
var targetTimeframes = bars.AllTimeframes

// ResultRow is one emitted setup row, matching the fixed column set
// spec §6 defines and §4.11 requires results.json to mirror.
type ResultRow struct {
	ScanTime       string   `json:"scan_time"`
	Symbol         string   `json:"ticker"`
	ChartURL       string   `json:"chart_url"`
	CurrentPrice   *float64 `json:"current_price"`
	TF             string   `json:"tf"`
	Pattern        string   `json:"pattern"`
	Setup          string   `json:"setup"`
	Direction      string   `json:"dir"`
	Entry          *float64 `json:"entry"`
	Stop           *float64 `json:"stop"`
	Score          int      `json:"score"`
	Aligned        *bool    `json:"aligned"`
	LastStrat      string   `json:"last_strat"`
	LastCandleType string   `json:"last_candle_type"`
	Actionable     string   `json:"actionable"`
	Note           string   `json:"note"`
	Sector         string   `json:"sector"`
	Industry       string   `json:"industry"`
	ETFs           string   `json:"etfs"`
	ETFsPretty     string   `json:"etfs_pretty"`
	CtxY           string   `json:"ctx_Y"`
	CtxQ           string   `json:"ctx_Q"`
	CtxM           string   `json:"ctx_M"`
	CtxW           string   `json:"ctx_W"`
	CtxD           string   `json:"ctx_D"`
}

// ContextRow is one symbol's higher-timeframe continuity snapshot
// (spec §6), emitted once per symbol regardless of whether any setup
// fired. Each bias timeframe carries both its last-closed classification
// and its currently in-progress ("live") one, so the heatmap can show a
// period's developing bias before it closes (spec §3).
type ContextRow struct {
	ScanTime     string   `json:"scan_time"`
	Symbol       string   `json:"ticker"`
	CurrentPrice *float64 `json:"current_price"`
	CtxYClosed   string   `json:"ctx_Y_closed"`
	CtxQClosed   string   `json:"ctx_Q_closed"`
	CtxMClosed   string   `json:"ctx_M_closed"`
	CtxWClosed   string   `json:"ctx_W_closed"`
	CtxDClosed   string   `json:"ctx_D_closed"`
	CtxYLive     string   `json:"ctx_Y_live"`
	CtxQLive     string   `json:"ctx_Q_live"`
	CtxMLive     string   `json:"ctx_M_live"`
	CtxWLive     string   `json:"ctx_W_live"`
	CtxDLive     string   `json:"ctx_D_live"`
	Score        int      `json:"score"`
	Sector       string   `json:"sector"`
	Industry     string   `json:"industry"`
}

// Orchestrator wires the pipeline's stages together.
type Orchestrator struct {
	Loader      *vendor.Loader
	Enrichment  *enrich.Source
	Options     setups.Options
	Concurrency int
	Log         zerolog.Logger
}

// Run scans symbols and returns every emitted result row plus one
// context row per symbol that produced usable data (spec §4.10). Rows
// are sorted by |score| descending then symbol/tf ascending, matching
// the UI's default sort (original_source/app.py).
func (o *Orchestrator) Run(ctx context.Context, symbols []string, now time.Time) ([]ResultRow, []ContextRow) {
	scanTime := now.In(bars.NY).Format("2006-01-02 15:04:05 MST")

	type out struct {
		results []ResultRow
		context *ContextRow
	}

	sem := make(chan struct{}, o.Concurrency)
	var wg sync.WaitGroup
	outputs := make([]out, len(symbols))

	for i, sym := range symbols {
		select {
		case <-ctx.Done():
			goto wait
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			defer func() { <-sem }()
			results, context := o.scanSymbol(ctx, sym, scanTime, now)
			outputs[i] = out{results: results, context: context}
		}(i, sym)
	}
wait:
	wg.Wait()

	var results []ResultRow
	var contexts []ContextRow
	for _, o := range outputs {
		results = append(results, o.results...)
		if o.context != nil {
			contexts = append(contexts, *o.context)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		ai, aj := abs(results[i].Score), abs(results[j].Score)
		if ai != aj {
			return ai > aj
		}
		if results[i].Symbol != results[j].Symbol {
			return results[i].Symbol < results[j].Symbol
		}
		return results[i].TF < results[j].TF
	})

	return results, contexts
}

func (o *Orchestrator) scanSymbol(ctx context.Context, sym, scanTime string, now time.Time) ([]ResultRow, *ContextRow) {
	frames, feeds := o.buildFrames(ctx, sym, now)

	daily, ok := frames[bars.TFD]
	if !ok || len(daily) < 50 {
		return nil, nil
	}

	price := currentPrice(feeds)

	classified := make(map[bars.Timeframe][]classify.Label, len(frames))
	for tf, f := range frames {
		if len(f) < 3 {
			continue
		}
		classified[tf] = classify.Classify(f)
	}

	bctx := make(bias.Context)
	live := make(bias.Context)
	for _, tf := range bars.BiasTimeframes {
		f, ok := frames[tf]
		labels, lok := classified[tf]
		if !ok || !lok || len(f) < 3 {
			continue
		}
		idx := closedbar.Oracle(tf, f, now)
		if i := f.IndexOf(idx); i >= 0 {
			bctx[tf] = labels[i]
		}
		if i, ok := closedbar.LiveIndex(tf, f, now); ok {
			live[tf] = labels[i]
		}
	}
	score := bias.Score(bctx)

	info := enrich.Info{}
	if o.Enrichment != nil {
		info = o.Enrichment.Enrich(sym)
	}

	var rows []ResultRow
	for _, tf := range targetTimeframes {
		f, ok := frames[tf]
		labels, lok := classified[tf]
		if !ok || !lok || len(f) < 3 {
			continue
		}
		for _, s := range setups.Detect(tf, f, labels, now, o.Options) {
			rows = append(rows, buildRow(sym, scanTime, price, score, bctx, info, s))
		}
	}

	context := &ContextRow{
		ScanTime:     scanTime,
		Symbol:       sym,
		CurrentPrice: price,
		CtxYClosed:   string(bctx[bars.TFY]),
		CtxQClosed:   string(bctx[bars.TFQ]),
		CtxMClosed:   string(bctx[bars.TFM]),
		CtxWClosed:   string(bctx[bars.TFW]),
		CtxDClosed:   string(bctx[bars.TFD]),
		CtxYLive:     string(live[bars.TFY]),
		CtxQLive:     string(live[bars.TFQ]),
		CtxMLive:     string(live[bars.TFM]),
		CtxWLive:     string(live[bars.TFW]),
		CtxDLive:     string(live[bars.TFD]),
		Score:        score,
		Sector:       info.Sector,
		Industry:     info.Industry,
	}
	return rows, context
}

// buildFrames fetches the two base intervals and assembles every
// timeframe the orchestrator evaluates (spec §4.10): direct passes for
// D/1H, resampled derivatives for everything else, guarded by a
// plausibility check on the 60m base before deriving 2H-4H.
func (o *Orchestrator) buildFrames(ctx context.Context, sym string, now time.Time) (map[bars.Timeframe]bars.Frame, map[bars.Interval]bars.Frame) {
	feeds := map[bars.Interval]bars.Frame{
		bars.IntervalDaily:  o.Loader.Load(ctx, sym, bars.IntervalDaily, "max"),
		bars.Interval60Min:  o.Loader.Load(ctx, sym, bars.Interval60Min, "60d"),
	}

	frames := make(map[bars.Timeframe]bars.Frame)
	if daily := feeds[bars.IntervalDaily]; len(daily) > 0 {
		frames[bars.TFD] = daily
	}
	if intraday := feeds[bars.Interval60Min]; len(intraday) > 0 {
		frames[bars.TF1H] = intraday
	}

	intraday := feeds[bars.Interval60Min]
	if len(intraday) > 0 && vendor.Plausible(intraday, time.Hour) {
		for _, tf := range []bars.Timeframe{bars.TF2H, bars.TF3H, bars.TF4H} {
			if f, err := bars.Resample(intraday, tf); err == nil && len(f) > 0 {
				frames[tf] = f
			}
		}
	}

	daily := feeds[bars.IntervalDaily]
	if len(daily) > 0 && vendor.Plausible(daily, 24*time.Hour) {
		for _, tf := range []bars.Timeframe{bars.TFW, bars.TFM, bars.TFQ, bars.TFY} {
			if f, err := bars.Resample(daily, tf); err == nil && len(f) > 0 {
				frames[tf] = f
			}
		}
	}

	return frames, feeds
}

// currentPrice centralizes the Open Question decision (SPEC_FULL.md
// §5): prefer the last 60m close, fall back to the last daily close,
// matching original_source's get_current_price.
func currentPrice(feeds map[bars.Interval]bars.Frame) *float64 {
	if f := feeds[bars.Interval60Min]; len(f) > 0 {
		v := f[len(f)-1].Close
		return &v
	}
	if f := feeds[bars.IntervalDaily]; len(f) > 0 {
		v := f[len(f)-1].Close
		return &v
	}
	return nil
}

func buildRow(sym, scanTime string, price *float64, score int, bctx bias.Context, info enrich.Info, s setups.Setup) ResultRow {
	entry, stop := s.Entry, s.Stop
	var aligned *bool
	if s.Direction == setups.Bull || s.Direction == setups.Bear {
		a := bias.Classify(score, s.Direction) == bias.Aligned
		aligned = &a
	}

	return ResultRow{
		ScanTime:       scanTime,
		Symbol:         sym,
		ChartURL:       fmt.Sprintf("https://finance.yahoo.com/quote/%s/chart", sym),
		CurrentPrice:   price,
		TF:             string(s.TF),
		Pattern:        s.Pattern,
		Setup:          s.Name,
		Direction:      string(s.Direction),
		Entry:          &entry,
		Stop:           &stop,
		Score:          score,
		Aligned:        aligned,
		LastStrat:      string(s.LastClass),
		LastCandleType: candleType(s.LastOpen, s.LastClose),
		Actionable:     s.Note,
		Note:           s.Note,
		Sector:         info.Sector,
		Industry:       info.Industry,
		ETFs:           joinETFs(info.ETFs),
		ETFsPretty:     info.ETFsPretty,
		CtxY:           string(bctx[bars.TFY]),
		CtxQ:           string(bctx[bars.TFQ]),
		CtxM:           string(bctx[bars.TFM]),
		CtxW:           string(bctx[bars.TFW]),
		CtxD:           string(bctx[bars.TFD]),
	}
}

// candleType classifies the last closed bar as bullish, bearish, or a
// doji by comparing its open and close (spec §6's last_candle_type
// column), independent of the STRAT label already reported as
// last_strat.
func candleType(open, close float64) string {
	switch {
	case close > open:
		return "bullish"
	case close < open:
		return "bearish"
	default:
		return "doji"
	}
}

func joinETFs(etfs []string) string {
	return strings.Join(etfs, "|")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
