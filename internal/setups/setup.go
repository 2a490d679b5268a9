// Package setups detects the two-bar "NEXT" setup catalogue on the last
// closed pair of a classified frame (spec §4.7).
package setups

import (
	"fmt"
	"math"
	"time"

	"github.com/snoman23/strat-engine/internal/bars"
	"github.com/snoman23/strat-engine/internal/classify"
	"github.com/snoman23/strat-engine/internal/closedbar"
)

// Direction is the planned trade direction of a setup.
type Direction string

const (
	Bull Direction = "bull"
	Bear Direction = "bear"
)

// Setup is a single NEXT plan derived from (prev_closed, last_closed).
type Setup struct {
	TF        bars.Timeframe
	Pattern   string // "{prev_class}-{last_class}"
	Name      string
	Direction Direction
	Entry     float64
	Stop      float64

	PrevTimestamp time.Time
	PrevClass     classify.Label
	PrevOpen      float64
	PrevHigh      float64
	PrevLow       float64
	PrevClose     float64

	LastTimestamp time.Time
	LastClass     classify.Label
	LastOpen      float64
	LastHigh      float64
	LastLow       float64
	LastClose     float64

	Note string
}

// Options toggles the non-default setup catalogue extensions (spec §4.7):
// 2U-2D/2D-2U two-bar reversals and 2-2 continuations, disabled by
// default.
type Options struct {
	EnableTwoBarReversals bool
	EnableContinuations   bool
}

// Detect emits the NEXT setups for the last closed pair of frame on tf.
// Preconditions (spec §4.7): frame is sorted, length >= 3, and labels is
// Classify(frame).
func Detect(tf bars.Timeframe, frame bars.Frame, labels []classify.Label, now time.Time, opts Options) []Setup {
	if len(frame) < 3 || len(labels) != len(frame) {
		return nil
	}

	lastRel := closedbar.Oracle(tf, frame, now)
	lastIdx := frame.IndexOf(lastRel)
	prevIdx := lastIdx - 1
	if lastIdx < 0 || prevIdx < 0 {
		return nil
	}

	prev, last := frame[prevIdx], frame[lastIdx]
	prevClass, lastClass := labels[prevIdx], labels[lastIdx]

	// Noise filter (spec §4.7 step 2 / §8 invariant 6): pure 2U/2D pairs
	// emit nothing unless the continuation or two-bar reversal toggle is on.
	isNoise := prevClass != classify.Inside && prevClass != classify.Outside &&
		lastClass != classify.Inside && lastClass != classify.Outside
	if isNoise && !opts.EnableContinuations && !opts.EnableTwoBarReversals {
		return nil
	}

	base := Setup{
		TF:            tf,
		Pattern:       fmt.Sprintf("%s-%s", prevClass, lastClass),
		PrevTimestamp: prev.Timestamp, PrevClass: prevClass,
		PrevOpen: prev.Open, PrevHigh: prev.High, PrevLow: prev.Low, PrevClose: prev.Close,
		LastTimestamp: last.Timestamp, LastClass: lastClass,
		LastOpen: last.Open, LastHigh: last.High, LastLow: last.Low, LastClose: last.Close,
	}

	var out []Setup

	switch {
	case lastClass == classify.Inside:
		out = append(out,
			withPlan(base, "INSIDE_BREAK_UP", Bull, last.High, last.Low,
				fmt.Sprintf("Inside bar break UP: alert above %.2f, stop below %.2f", last.High, last.Low)),
			withPlan(base, "INSIDE_BREAK_DOWN", Bear, last.Low, last.High,
				fmt.Sprintf("Inside bar break DOWN: alert below %.2f, stop above %.2f", last.Low, last.High)),
		)

	case lastClass == classify.Outside:
		out = append(out,
			withPlan(base, "OUTSIDE_BREAK_UP", Bull, last.High, last.Low,
				fmt.Sprintf("Outside bar break UP: alert above %.2f, stop below %.2f", last.High, last.Low)),
			withPlan(base, "OUTSIDE_BREAK_DOWN", Bear, last.Low, last.High,
				fmt.Sprintf("Outside bar break DOWN: alert below %.2f, stop above %.2f", last.Low, last.High)),
		)

	case prevClass == classify.Inside && lastClass == classify.DirectionalUp:
		out = append(out, withPlan(base, "REVSTRAT_BEAR", Bear, last.Low, last.High,
			fmt.Sprintf("RevStrat watch after 1-2U: alert below %.2f, stop above %.2f", last.Low, last.High)))

	case prevClass == classify.Inside && lastClass == classify.DirectionalDown:
		out = append(out, withPlan(base, "REVSTRAT_BULL", Bull, last.High, last.Low,
			fmt.Sprintf("RevStrat watch after 1-2D: alert above %.2f, stop below %.2f", last.High, last.Low)))

	default:
		if opts.EnableTwoBarReversals {
			out = append(out, twoBarReversal(base, prevClass, lastClass, last)...)
		}
		if opts.EnableContinuations {
			if c := continuation(base, prevClass, lastClass, last); c != nil {
				out = append(out, *c)
			}
		}
	}

	return out
}

func twoBarReversal(base Setup, prevClass, lastClass classify.Label, last bars.Bar) []Setup {
	switch {
	case prevClass == classify.DirectionalUp && lastClass == classify.DirectionalDown:
		return []Setup{withPlan(base, "TWO_BAR_REVERSAL_BULL", Bull, last.High, last.Low,
			fmt.Sprintf("2U-2D reversal watch: alert above %.2f, stop below %.2f", last.High, last.Low))}
	case prevClass == classify.DirectionalDown && lastClass == classify.DirectionalUp:
		return []Setup{withPlan(base, "TWO_BAR_REVERSAL_BEAR", Bear, last.Low, last.High,
			fmt.Sprintf("2D-2U reversal watch: alert below %.2f, stop above %.2f", last.Low, last.High))}
	}
	return nil
}

func continuation(base Setup, prevClass, lastClass classify.Label, last bars.Bar) *Setup {
	switch {
	case prevClass == classify.DirectionalUp && lastClass == classify.DirectionalUp:
		s := withPlan(base, "CONTINUATION_BULL", Bull, last.High, last.Low,
			fmt.Sprintf("2U-2U continuation: alert above %.2f, stop below %.2f", last.High, last.Low))
		return &s
	case prevClass == classify.DirectionalDown && lastClass == classify.DirectionalDown:
		s := withPlan(base, "CONTINUATION_BEAR", Bear, last.Low, last.High,
			fmt.Sprintf("2D-2D continuation: alert below %.2f, stop above %.2f", last.Low, last.High))
		return &s
	}
	return nil
}

func withPlan(base Setup, name string, dir Direction, entry, stop float64, note string) Setup {
	s := base
	s.Name = name
	s.Direction = dir
	s.Entry = round2(entry)
	s.Stop = round2(stop)
	s.Note = note
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
