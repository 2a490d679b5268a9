// Package classify assigns the four-state STRAT label to each bar of a
// frame, relative to its immediate predecessor (spec §3/§4.6).
package classify

import "github.com/snoman23/strat-engine/internal/bars"

// Label is the STRAT classification of a single bar.
type Label string

const (
	Inside         Label = "1"
	Outside        Label = "3"
	DirectionalUp  Label = "2U"
	DirectionalDown Label = "2D"
	// None marks the first bar of a frame, which has no predecessor to
	// classify against.
	None Label = ""
)

// Bias maps a label to its directional sign, used by the bias scorer
// (spec §4.8): +1 for 2U, -1 for 2D, 0 for inside/outside/absent.
func (l Label) Bias() int {
	switch l {
	case DirectionalUp:
		return 1
	case DirectionalDown:
		return -1
	default:
		return 0
	}
}

// Classify returns one label per bar in frame, same length and index
// alignment as frame. frame[0] is always None. A bar's label is a pure
// function of its own and the immediately preceding bar's high/low
// (spec §8 invariant 2).
func Classify(frame bars.Frame) []Label {
	labels := make([]Label, len(frame))
	for i := 1; i < len(frame); i++ {
		labels[i] = classifyPair(frame[i-1], frame[i])
	}
	return labels
}

func classifyPair(prev, cur bars.Bar) Label {
	higher := cur.High > prev.High
	lower := cur.Low < prev.Low
	switch {
	case higher && lower:
		return Outside
	case higher:
		return DirectionalUp
	case lower:
		return DirectionalDown
	default:
		return Inside
	}
}
