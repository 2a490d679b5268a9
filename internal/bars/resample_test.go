package bars

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func min60(day int, hour, min int, o, h, l, c float64) Bar {
	return Bar{
		Timestamp: time.Date(2024, 1, day, hour, min, 0, 0, NY),
		Open:      o, High: h, Low: l, Close: c, Volume: 10,
	}
}

func TestResample_Direct(t *testing.T) {
	base := Frame{min60(2, 9, 30, 1, 2, 0.5, 1.5)}
	out, err := Resample(base, TF1H)
	require.NoError(t, err)
	assert.Equal(t, base, out)
}

func TestResample_FixedWidth2H_RightClosedRightLabeled(t *testing.T) {
	base := Frame{
		min60(2, 9, 30, 10, 12, 9, 11),
		min60(2, 10, 30, 11, 14, 10, 13), // same 2H bucket as above, ends 10:30
		min60(2, 11, 30, 13, 15, 12, 14), // next bucket, ends 12:30
	}
	out, err := Resample(base, TF2H)
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.NoError(t, out.Validate())
	first := out[0]
	assert.Equal(t, 10.0, first.Open)
	assert.Equal(t, 14.0, first.High)
	assert.Equal(t, 9.0, first.Low)
	assert.Equal(t, 13.0, first.Close)
	assert.True(t, first.High >= first.Low)

	second := out[1]
	assert.True(t, second.Timestamp.After(first.Timestamp))
}

func TestResample_DownsampleGuardRejectsFinerTarget(t *testing.T) {
	// Daily-spaced base cannot synthesize a 2H bucket grid.
	base := Frame{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, NY), Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, NY), Open: 1, High: 2, Low: 0.5, Close: 1.5},
	}
	out, err := Resample(base, TF2H)
	assert.True(t, errors.Is(err, ErrDownsample))
	assert.Empty(t, out)
}

func TestResample_Weekly_LabeledFriday(t *testing.T) {
	base := Frame{
		{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, NY), Open: 10, High: 12, Low: 9, Close: 11},  // Tuesday
		{Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, NY), Open: 11, High: 13, Low: 10, Close: 12},  // Wednesday
		{Timestamp: time.Date(2024, 1, 8, 0, 0, 0, 0, NY), Open: 12, High: 14, Low: 11, Close: 13},  // next Monday
	}
	out, err := Resample(base, TFW)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, time.January, out[0].Timestamp.Month())
	assert.Equal(t, 5, out[0].Timestamp.Day()) // Friday Jan 5
	assert.Equal(t, time.Friday, out[0].Timestamp.Weekday())
	assert.True(t, out[1].Timestamp.After(out[0].Timestamp))
}

func TestResample_Monthly_LabeledLastCalendarDay(t *testing.T) {
	base := Frame{
		{Timestamp: time.Date(2024, 2, 1, 0, 0, 0, 0, NY), Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Timestamp: time.Date(2024, 2, 29, 0, 0, 0, 0, NY), Open: 1, High: 2, Low: 0.5, Close: 1.5},
	}
	out, err := Resample(base, TFM)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 29, out[0].Timestamp.Day()) // 2024 is a leap year
}

func TestResample_Quarterly_And_Yearly(t *testing.T) {
	base := Frame{
		{Timestamp: time.Date(2024, 1, 15, 0, 0, 0, 0, NY), Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Timestamp: time.Date(2024, 4, 15, 0, 0, 0, 0, NY), Open: 1, High: 2, Low: 0.5, Close: 1.5},
	}
	q, err := Resample(base, TFQ)
	require.NoError(t, err)
	require.Len(t, q, 2)
	assert.Equal(t, time.March, q[0].Timestamp.Month())
	assert.Equal(t, 31, q[0].Timestamp.Day())

	y, err := Resample(base, TFY)
	require.NoError(t, err)
	require.Len(t, y, 1)
	assert.Equal(t, time.December, y[0].Timestamp.Month())
	assert.Equal(t, 31, y[0].Timestamp.Day())
}

func TestResample_EmptyBaseIsNilNoError(t *testing.T) {
	out, err := Resample(nil, TFW)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestFrame_Clean_SortsDedupsDropsNonFinite(t *testing.T) {
	t1 := time.Date(2024, 1, 2, 0, 0, 0, 0, NY)
	t2 := time.Date(2024, 1, 1, 0, 0, 0, 0, NY)
	in := []Bar{
		{Timestamp: t1, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Timestamp: t2, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Timestamp: t2, Open: 9, High: 9, Low: 9, Close: 9}, // duplicate ts, last wins
		{Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, NY), Open: math.NaN(), High: 1, Low: 1, Close: 1},
	}
	out := Clean(in)
	require.Len(t, out, 2)
	assert.True(t, out[0].Timestamp.Before(out[1].Timestamp))
	assert.Equal(t, 9.0, out[0].Open)
}
