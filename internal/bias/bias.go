// Package bias computes the higher-timeframe directional bias score
// from last-closed classifications (spec §3/§4.8).
package bias

import (
	"github.com/snoman23/strat-engine/internal/bars"
	"github.com/snoman23/strat-engine/internal/classify"
	"github.com/snoman23/strat-engine/internal/setups"
)

// Weights per timeframe (spec §3): Y:5, Q:4, M:3, W:2, D:1.
var Weights = map[bars.Timeframe]int{
	bars.TFY: 5,
	bars.TFQ: 4,
	bars.TFM: 3,
	bars.TFW: 2,
	bars.TFD: 1,
}

// Context maps the bias timeframes to the classification of their last
// closed bar. Missing entries contribute 0 (spec §3).
type Context map[bars.Timeframe]classify.Label

// Score computes Σ weight(tf) * sign(context[tf]) over the timeframes in
// Weights (the same set as bars.BiasTimeframes).
// The result is invariant to the order timeframes are examined in (spec
// §8 invariant 5) because it is a pure sum. Range is [-15, +15].
func Score(ctx Context) int {
	total := 0
	for tf, w := range Weights {
		total += w * ctx[tf].Bias()
	}
	return total
}

// Alignment classifies a setup's relation to the bias score (spec §3).
type Alignment string

const (
	Aligned Alignment = "aligned"
	Counter Alignment = "counter"
	Neutral Alignment = "neutral"
)

// Classify returns the alignment of a directional setup given the
// symbol-level bias score.
func Classify(score int, dir setups.Direction) Alignment {
	switch {
	case score == 0:
		return Neutral
	case score > 0 && dir == setups.Bull, score < 0 && dir == setups.Bear:
		return Aligned
	default:
		return Counter
	}
}
