// Package heatmap pivots scan results into a sector-by-timeframe
// bullish-percentage matrix (supplemental feature, SPEC_FULL.md §4),
// grounded on original_source's build_sector_heatmap and heat_color
// (original_source/app.py), carried over from the distillation since
// it is a pure function over already-computed rows and the dashboard
// it feeds is a natural companion to the CSV/JSON snapshot.
package heatmap

import (
	"github.com/snoman23/strat-engine/internal/reference"
)

// Timeframes is the fixed column order (spec: Daily or higher only).
var Timeframes = []string{"Y", "Q", "M", "W", "D"}

// Row is one scored setup contributing to the heatmap: its sector and
// timeframe, and whether it was bullish or bearish.
type Row struct {
	Sector string
	TF     string
	Bull   bool
}

// Cell is one sector/timeframe intersection's tally.
type Cell struct {
	Bull, Bear int
}

// BullPct returns the percentage of bullish setups in the cell,
// rounded to the nearest integer the way original_source does
// ((bull_pct * 100).round(0)), or 0 if the cell is empty.
func (c Cell) BullPct() int {
	total := c.Bull + c.Bear
	if total == 0 {
		return 0
	}
	return int(float64(c.Bull)/float64(total)*100.0 + 0.5)
}

// Matrix is the Sector x Timeframe pivot, keyed by sector then
// timeframe, restricted to Timeframes columns and Sectors11 rows.
type Matrix map[string]map[string]Cell

// Build pivots rows into a Matrix, counting only D/W/M/Q/Y entries
// (spec: "Only Daily or higher"). Sectors outside reference.Sectors11
// are dropped from the result, matching original_source's reindex
// onto the fixed 11-sector axis.
func Build(rows []Row) Matrix {
	allowed := make(map[string]bool, len(Timeframes))
	for _, tf := range Timeframes {
		allowed[tf] = true
	}
	sectors := make(map[string]bool, len(reference.Sectors11))
	for _, s := range reference.Sectors11 {
		sectors[s] = true
	}

	m := make(Matrix)
	for _, r := range rows {
		if !allowed[r.TF] || !sectors[r.Sector] {
			continue
		}
		if _, ok := m[r.Sector]; !ok {
			m[r.Sector] = make(map[string]Cell)
		}
		cell := m[r.Sector][r.TF]
		if r.Bull {
			cell.Bull++
		} else {
			cell.Bear++
		}
		m[r.Sector][r.TF] = cell
	}
	return m
}

// Band classifies a bull percentage into the four display bands from
// original_source's heat_color thresholds.
type Band string

const (
	DarkGreen  Band = "dark_green"  // >= 75
	LightGreen Band = "light_green" // 50-74
	LightRed   Band = "light_red"   // 26-49
	DarkRed    Band = "dark_red"    // <= 25
)

// Classify returns the display band for a bull percentage (0-100).
func Classify(pct int) Band {
	switch {
	case pct >= 75:
		return DarkGreen
	case pct >= 50:
		return LightGreen
	case pct <= 25:
		return DarkRed
	default:
		return LightRed
	}
}
