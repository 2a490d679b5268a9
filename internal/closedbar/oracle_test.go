package closedbar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/snoman23/strat-engine/internal/bars"
)

func daily(t time.Time) bars.Frame {
	return bars.Frame{{Timestamp: t, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 1}}
}

func TestOracle_Weekly_WednesdayStillOpen(t *testing.T) {
	// Week labeled by Friday close; evaluating on the preceding Wednesday
	// the current week bar must still be open (spec §8 worked example).
	friday := time.Date(2024, 1, 5, 0, 0, 0, 0, bars.NY) // a Friday
	frame := daily(friday)
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, bars.NY) // Wednesday same week

	assert.Equal(t, LastRowOpen, Oracle(bars.TFW, frame, now))
}

func TestOracle_Weekly_SaturdayAfterCloseIsClosed(t *testing.T) {
	friday := time.Date(2024, 1, 5, 0, 0, 0, 0, bars.NY)
	frame := daily(friday)
	now := time.Date(2024, 1, 6, 9, 0, 0, 0, bars.NY) // Saturday, well past 16:30 ET Friday

	assert.Equal(t, LastRowClosed, Oracle(bars.TFW, frame, now))
}

func TestOracle_Daily_SameDayBeforeClose(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, bars.NY)
	frame := daily(day)
	now := time.Date(2024, 1, 5, 15, 0, 0, 0, bars.NY) // before 16:30 ET

	assert.Equal(t, LastRowOpen, Oracle(bars.TFD, frame, now))
}

func TestOracle_Daily_SameDayAfterClose(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, bars.NY)
	frame := daily(day)
	now := time.Date(2024, 1, 5, 17, 0, 0, 0, bars.NY) // after 16:30 ET

	assert.Equal(t, LastRowClosed, Oracle(bars.TFD, frame, now))
}

func TestOracle_1H_LabelIsBarStart(t *testing.T) {
	start := time.Date(2024, 1, 5, 14, 0, 0, 0, bars.NY)
	frame := bars.Frame{{Timestamp: start, Open: 1, High: 2, Low: 0.5, Close: 1.5}}

	assert.Equal(t, LastRowOpen, Oracle(bars.TF1H, frame, start.Add(30*time.Minute)))
	assert.Equal(t, LastRowClosed, Oracle(bars.TF1H, frame, start.Add(time.Hour)))
}

func TestOracle_2H_LabelIsBarEnd(t *testing.T) {
	end := time.Date(2024, 1, 5, 16, 0, 0, 0, bars.NY)
	frame := bars.Frame{{Timestamp: end, Open: 1, High: 2, Low: 0.5, Close: 1.5}}

	assert.Equal(t, LastRowOpen, Oracle(bars.TF2H, frame, end.Add(-30*time.Minute)))
	assert.Equal(t, LastRowClosed, Oracle(bars.TF2H, frame, end.Add(time.Minute)))
}

func TestOracle_EmptyFrame(t *testing.T) {
	assert.Equal(t, LastRowClosed, Oracle(bars.TFD, nil, time.Now()))
}

func TestLiveIndex_OpenFrameReturnsLastRow(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, bars.NY)
	frame := daily(day)
	now := time.Date(2024, 1, 5, 15, 0, 0, 0, bars.NY) // before 16:30 ET: still open

	idx, ok := LiveIndex(bars.TFD, frame, now)
	assert.True(t, ok)
	assert.Equal(t, len(frame)-1, idx)
}

func TestLiveIndex_ClosedFrameHasNoLiveBar(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, bars.NY)
	frame := daily(day)
	now := time.Date(2024, 1, 5, 17, 0, 0, 0, bars.NY) // after 16:30 ET: closed

	_, ok := LiveIndex(bars.TFD, frame, now)
	assert.False(t, ok)
}

func TestLiveIndex_EmptyFrame(t *testing.T) {
	_, ok := LiveIndex(bars.TFD, nil, time.Now())
	assert.False(t, ok)
}
