package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snoman23/strat-engine/internal/bars"
)

func testFrame() bars.Frame {
	return bars.Frame{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 200},
	}
}

func TestStore_PutGet_RoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	frame := testFrame()
	require.NoError(t, store.PutErr("AAPL", bars.IntervalDaily, frame))

	got, ok := store.Get("AAPL", bars.IntervalDaily)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, frame[0].Close, got[0].Close)
	assert.True(t, got[0].Timestamp.Equal(frame[0].Timestamp))
}

func TestStore_Get_MissingIsMiss(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Get("NOPE", bars.IntervalDaily)
	assert.False(t, ok)
}

func TestStore_Get_CorruptFileIsMiss(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	path := store.Path("AAPL", bars.IntervalDaily)
	require.NoError(t, os.WriteFile(path, []byte("not a zstd stream"), 0o644))

	_, ok := store.Get("AAPL", bars.IntervalDaily)
	assert.False(t, ok)
}

func TestStore_Fresh(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	assert.False(t, store.Fresh("AAPL", bars.IntervalDaily, time.Hour))

	require.NoError(t, store.PutErr("AAPL", bars.IntervalDaily, testFrame()))
	assert.True(t, store.Fresh("AAPL", bars.IntervalDaily, time.Hour))
	assert.False(t, store.Fresh("AAPL", bars.IntervalDaily, -time.Second))
}

func TestStore_Path_SanitizesSymbolAndInterval(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	p := store.Path("BRK.B", bars.Interval("^GSPC"))
	assert.NotContains(t, p, "^")
	assert.NotContains(t, p, "/")
}
