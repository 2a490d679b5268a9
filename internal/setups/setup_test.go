package setups

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snoman23/strat-engine/internal/bars"
	"github.com/snoman23/strat-engine/internal/classify"
)

func dailyBar(day int, o, h, l, c float64) bars.Bar {
	return bars.Bar{
		Timestamp: time.Date(2024, 1, day, 0, 0, 0, 0, bars.NY),
		Open:      o, High: h, Low: l, Close: c, Volume: 100,
	}
}

// closedNow returns a time well after the daily close anchor of the
// frame's last bar, so Detect's oracle call resolves it as closed.
func closedNow(frame bars.Frame) time.Time {
	return frame[len(frame)-1].Timestamp.Add(20 * time.Hour)
}

func TestDetect_InsideBreak_BothDirections(t *testing.T) {
	frame := bars.Frame{
		dailyBar(1, 8, 15, 9, 12),
		dailyBar(2, 10, 20, 10, 15), // 2U relative to day 1
		dailyBar(3, 15, 18, 12, 16), // inside bar relative to day 2
	}
	labels := classify.Classify(frame)
	now := closedNow(frame)

	out := Detect(bars.TFD, frame, labels, now, Options{})
	require.Len(t, out, 2)

	var up, down *Setup
	for i := range out {
		switch out[i].Name {
		case "INSIDE_BREAK_UP":
			up = &out[i]
		case "INSIDE_BREAK_DOWN":
			down = &out[i]
		}
	}
	require.NotNil(t, up)
	require.NotNil(t, down)

	assert.Equal(t, Bull, up.Direction)
	assert.Equal(t, up.LastHigh, up.Entry) // invariant: bull entry = last.high
	assert.Equal(t, up.LastLow, up.Stop)

	assert.Equal(t, Bear, down.Direction)
	assert.Equal(t, down.LastLow, down.Entry) // invariant: bear entry = last.low
	assert.Equal(t, down.LastHigh, down.Stop)
}

func TestDetect_OutsideBreak_BothDirections(t *testing.T) {
	frame := bars.Frame{
		dailyBar(1, 9, 17, 10, 12),
		dailyBar(2, 10, 18, 12, 15), // 2U relative to day 1
		dailyBar(3, 15, 25, 8, 20),  // outside relative to day 2
	}
	labels := classify.Classify(frame)
	now := closedNow(frame)

	out := Detect(bars.TFD, frame, labels, now, Options{})
	require.Len(t, out, 2)
	names := []string{out[0].Name, out[1].Name}
	assert.Contains(t, names, "OUTSIDE_BREAK_UP")
	assert.Contains(t, names, "OUTSIDE_BREAK_DOWN")
}

func TestDetect_RevStratBear_After1_2U(t *testing.T) {
	frame := bars.Frame{
		dailyBar(1, 10, 20, 10, 15),
		dailyBar(2, 15, 18, 12, 16), // inside (1)
		dailyBar(3, 16, 25, 13, 22), // 2U relative to day 2 (higher high, not lower low)
	}
	labels := classify.Classify(frame)
	require.Equal(t, classify.Inside, labels[1])
	require.Equal(t, classify.DirectionalUp, labels[2])

	now := closedNow(frame)
	out := Detect(bars.TFD, frame, labels, now, Options{})
	require.Len(t, out, 1)
	assert.Equal(t, "REVSTRAT_BEAR", out[0].Name)
	assert.Equal(t, Bear, out[0].Direction)
}

func TestDetect_RevStratBull_After1_2D(t *testing.T) {
	frame := bars.Frame{
		dailyBar(1, 20, 30, 20, 25),
		dailyBar(2, 25, 28, 22, 24), // inside
		dailyBar(3, 24, 27, 15, 18), // 2D relative to day 2 (lower low, not higher high)
	}
	labels := classify.Classify(frame)
	require.Equal(t, classify.Inside, labels[1])
	require.Equal(t, classify.DirectionalDown, labels[2])

	now := closedNow(frame)
	out := Detect(bars.TFD, frame, labels, now, Options{})
	require.Len(t, out, 1)
	assert.Equal(t, "REVSTRAT_BULL", out[0].Name)
	assert.Equal(t, Bull, out[0].Direction)
}

func TestDetect_NoiseFilter_SuppressesPure2U2D(t *testing.T) {
	frame := bars.Frame{
		dailyBar(1, 10, 20, 10, 15),
		dailyBar(2, 15, 25, 12, 22), // 2U relative to day 1
		dailyBar(3, 22, 30, 18, 28), // 2U relative to day 2 - pure 2U-2U, noise
	}
	labels := classify.Classify(frame)
	require.Equal(t, classify.DirectionalUp, labels[1])
	require.Equal(t, classify.DirectionalUp, labels[2])

	now := closedNow(frame)
	out := Detect(bars.TFD, frame, labels, now, Options{})
	assert.Empty(t, out)
}

func TestDetect_ContinuationToggle_EmitsWhenEnabled(t *testing.T) {
	frame := bars.Frame{
		dailyBar(1, 10, 20, 10, 15),
		dailyBar(2, 15, 25, 12, 22),
		dailyBar(3, 22, 30, 18, 28),
	}
	labels := classify.Classify(frame)
	now := closedNow(frame)

	out := Detect(bars.TFD, frame, labels, now, Options{EnableContinuations: true})
	require.Len(t, out, 1)
	assert.Equal(t, "CONTINUATION_BULL", out[0].Name)
}

func TestDetect_TooShortFrame(t *testing.T) {
	frame := bars.Frame{dailyBar(1, 10, 20, 10, 15)}
	labels := classify.Classify(frame)
	assert.Empty(t, Detect(bars.TFD, frame, labels, time.Now(), Options{}))
}
