package bars

import (
	"errors"
	"fmt"
	"time"
)

// ErrDownsample is returned (with an empty frame) when the requested
// timeframe is finer than the input's inferred resolution. Never fatal:
// callers skip the derived timeframe and continue (spec §7).
var ErrDownsample = errors.New("bars: refusing to resample down to a finer timeframe")

// NY is the market-local zone every closed-bar and resample decision is
// made in (spec §4.5).
var NY = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}()

var fixedWidth = map[Timeframe]time.Duration{
	TF2H: 2 * time.Hour,
	TF3H: 3 * time.Hour,
	TF4H: 4 * time.Hour,
}

// intradayOrigin carries the start-of-day + 30 minutes (00:30 ET) anchor
// of the right-closed/right-labeled bucket grid for 2H/3H/4H bars (spec
// §4.4). bucketEnd lays the grid out from this time of day on each
// bar's own local date, so the local edges are the same on standard-time
// and daylight-saving days: 08:30/10:30/12:30/... for 2H,
// 09:30/12:30/15:30/... for 3H, 08:30/12:30/16:30/... for 4H.
var intradayOrigin = time.Date(2000, 1, 1, 0, 30, 0, 0, NY)

// Resample derives target from a base frame per the rules in spec §3/§4.4.
// It never fabricates bars: a down-sampling attempt returns an empty
// frame and ErrDownsample rather than an error that would abort the run.
func Resample(base Frame, target Timeframe) (Frame, error) {
	if len(base) == 0 {
		return nil, nil
	}
	if target.Direct() {
		return base, nil
	}

	if width, ok := fixedWidth[target]; ok {
		if spacing := base.MedianSpacing(); spacing > 0 && spacing > width {
			return Frame{}, fmt.Errorf("%w: target=%s base median spacing=%s", ErrDownsample, target, spacing)
		}
		return resampleFixedWidth(base, width), nil
	}

	switch target {
	case TFW:
		return resampleCalendar(base, weekFridayKey), nil
	case TFM:
		return resampleCalendar(base, monthEndKey), nil
	case TFQ:
		return resampleCalendar(base, quarterEndKey), nil
	case TFY:
		return resampleCalendar(base, yearEndKey), nil
	default:
		return nil, fmt.Errorf("bars: unsupported resample target %q", target)
	}
}

func resampleFixedWidth(base Frame, width time.Duration) Frame {
	type bucket struct {
		end  time.Time
		bars []Bar
	}
	var buckets []*bucket
	byEnd := map[int64]*bucket{}

	for _, b := range base {
		end := bucketEnd(b.Timestamp, width)
		key := end.Unix()
		bk, ok := byEnd[key]
		if !ok {
			bk = &bucket{end: end}
			byEnd[key] = bk
			buckets = append(buckets, bk)
		}
		bk.bars = append(bk.bars, b)
	}

	out := make(Frame, 0, len(buckets))
	for _, bk := range buckets {
		out = append(out, aggregate(bk.bars, bk.end))
	}
	return Clean(out)
}

// bucketEnd returns the smallest instant of the form origin + k*width
// that is >= t, where origin is 00:30 ET on t's local date (the previous
// date for t before 00:30) (right-closed: t belongs to the bucket
// (end-width, end]).
func bucketEnd(t time.Time, width time.Duration) time.Time {
	t = t.In(NY)
	origin := time.Date(t.Year(), t.Month(), t.Day(), intradayOrigin.Hour(), intradayOrigin.Minute(), 0, 0, NY)
	if t.Before(origin) {
		origin = origin.AddDate(0, 0, -1)
	}
	delta := t.Sub(origin)
	k := delta / width
	if delta%width != 0 {
		k++
	}
	return origin.Add(k * width)
}

type calendarKeyFn func(time.Time) (key string, label time.Time)

func resampleCalendar(base Frame, keyFn calendarKeyFn) Frame {
	type bucket struct {
		label time.Time
		bars  []Bar
	}
	var order []string
	byKey := map[string]*bucket{}

	for _, b := range base {
		key, label := keyFn(b.Timestamp.In(NY))
		bk, ok := byKey[key]
		if !ok {
			bk = &bucket{label: label}
			byKey[key] = bk
			order = append(order, key)
		}
		bk.bars = append(bk.bars, b)
	}

	out := make(Frame, 0, len(order))
	for _, key := range order {
		bk := byKey[key]
		out = append(out, aggregate(bk.bars, bk.label))
	}
	return Clean(out)
}

func aggregate(bars []Bar, label time.Time) Bar {
	agg := Bar{
		Timestamp: label,
		Open:      bars[0].Open,
		High:      bars[0].High,
		Low:       bars[0].Low,
		Close:     bars[len(bars)-1].Close,
	}
	for _, b := range bars {
		if b.High > agg.High {
			agg.High = b.High
		}
		if b.Low < agg.Low {
			agg.Low = b.Low
		}
		agg.Volume += b.Volume
	}
	return agg
}

func weekFridayKey(t time.Time) (string, time.Time) {
	wd := int(t.Weekday()) // Sunday=0 ... Saturday=6
	daysToFriday := (5 - wd + 7) % 7
	friday := dateOnly(t).AddDate(0, 0, daysToFriday)
	return friday.Format("2006-01-02"), friday
}

func monthEndKey(t time.Time) (string, time.Time) {
	firstNextMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, NY).AddDate(0, 1, 0)
	lastDay := firstNextMonth.AddDate(0, 0, -1)
	return lastDay.Format("2006-01"), lastDay
}

func quarterEndKey(t time.Time) (string, time.Time) {
	qEndMonth := (((int(t.Month())-1)/3)+1)*3 + 1
	qEndYear := t.Year()
	if qEndMonth > 12 {
		qEndMonth -= 12
		qEndYear++
	}
	lastDay := time.Date(qEndYear, time.Month(qEndMonth), 1, 0, 0, 0, 0, NY).AddDate(0, 0, -1)
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%d-Q%d", t.Year(), q), lastDay
}

func yearEndKey(t time.Time) (string, time.Time) {
	lastDay := time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, NY)
	return lastDay.Format("2006"), lastDay
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, NY)
}
