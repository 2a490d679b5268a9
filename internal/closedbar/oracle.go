// Package closedbar implements the decision, per timeframe, of which
// bar is the last one that has fully closed (spec §4.5). This is the
// most error-prone area of the original system (spec §9): the label
// convention differs between vendor-native 1H bars (label = bar start)
// and synthesized 2H-4H bars (label = bar end, from the right-labeled
// resampler), and every calendar timeframe treats its current period as
// always open regardless of what the vendor's label says.
package closedbar

import (
	"time"

	"github.com/snoman23/strat-engine/internal/bars"
)

// Closed-bar oracle sentinels (spec §3/§8): -1 means the last row in the
// frame is closed, -2 means it is still in progress and callers must
// fall back to the previous row.
const (
	LastRowClosed = -1
	LastRowOpen   = -2
)

// closeHour/closeMinute is the 16:30 ET effective daily-close anchor
// used for D/W/M/Q/Y (spec §4.5).
const (
	closeHour   = 16
	closeMinute = 30
)

// Oracle returns LastRowClosed or LastRowOpen for frame under tf's
// closedness rule, evaluated at now (spec §4.5). The frame must be
// non-empty; callers are expected to have already checked length.
func Oracle(tf bars.Timeframe, frame bars.Frame, now time.Time) int {
	if len(frame) == 0 {
		return LastRowClosed
	}
	now = now.In(bars.NY)
	last := frame[len(frame)-1].Timestamp.In(bars.NY)

	switch tf {
	case bars.TFY, bars.TFQ, bars.TFM, bars.TFW:
		if last.After(now) {
			return LastRowOpen
		}
		if now.Before(periodCloseAnchor(last)) {
			return LastRowOpen
		}
		return LastRowClosed

	case bars.TFD:
		if sameDate(last, now) && now.Before(periodCloseAnchor(last)) {
			return LastRowOpen
		}
		return LastRowClosed

	case bars.TF1H:
		// Vendor-native: label is bar start.
		if now.Before(last.Add(time.Hour)) {
			return LastRowOpen
		}
		return LastRowClosed

	case bars.TF2H, bars.TF3H, bars.TF4H:
		// Synthesized by the resampler: label is bar end.
		if now.Before(last) {
			return LastRowOpen
		}
		return LastRowClosed

	default:
		return LastRowClosed
	}
}

// LiveIndex returns the index of the currently in-progress (not yet
// closed) bar for tf, if the vendor has already started writing one
// (spec §3: "the current period bar is always treated as open"). When
// Oracle reports the frame's last row as already closed, no bar for the
// current period exists yet in frame, and ok is false.
func LiveIndex(tf bars.Timeframe, frame bars.Frame, now time.Time) (int, bool) {
	if len(frame) == 0 {
		return -1, false
	}
	if Oracle(tf, frame, now) != LastRowOpen {
		return -1, false
	}
	return len(frame) - 1, true
}

// periodCloseAnchor is 16:30 ET on the calendar date of ts, the
// effective close instant for any calendar-period label (spec §4.5).
func periodCloseAnchor(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, closeHour, closeMinute, 0, 0, bars.NY)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
