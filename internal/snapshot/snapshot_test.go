package snapshot

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snoman23/strat-engine/internal/orchestrator"
)

func samplePrice() *float64 {
	v := 123.45
	return &v
}

func TestWrite_ProducesAllThreeFiles(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		ResultsCSV:  filepath.Join(dir, "results.csv"),
		ResultsJSON: filepath.Join(dir, "results.json"),
		ContextCSV:  filepath.Join(dir, "context.csv"),
	}

	results := []orchestrator.ResultRow{
		{ScanTime: "2024-01-02T00:00:00Z", Symbol: "AAPL", TF: "D", Pattern: "1-2U", Score: 5, CurrentPrice: samplePrice()},
		{ScanTime: "2024-01-02T00:00:00Z", Symbol: "MSFT", TF: "W", Pattern: "2U-2D", Score: -3},
	}
	contexts := []orchestrator.ContextRow{
		{ScanTime: "2024-01-02T00:00:00Z", Symbol: "AAPL", CtxYClosed: "2U", Score: 7},
	}

	require.NoError(t, Write(paths, results, contexts))

	for _, p := range []string{paths.ResultsCSV, paths.ResultsJSON, paths.ContextCSV} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestWriteResultsCSV_HeaderAndPointerFormatting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")

	results := []orchestrator.ResultRow{
		{Symbol: "AAPL", CurrentPrice: samplePrice()},
		{Symbol: "MSFT"}, // CurrentPrice nil
	}
	require.NoError(t, writeResultsCSV(path, results))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 rows
	assert.Equal(t, resultsHeader, rows[0])

	priceCol := 3
	assert.Equal(t, "123.45", rows[1][priceCol])
	assert.Equal(t, "", rows[2][priceCol])
}

func TestWriteResultsJSON_RecordStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")

	results := []orchestrator.ResultRow{
		{Symbol: "AAPL", Score: 5},
		{Symbol: "MSFT", Score: -3},
	}
	require.NoError(t, writeResultsJSON(path, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	var first orchestrator.ResultRow
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "AAPL", first.Symbol)

	var second orchestrator.ResultRow
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "MSFT", second.Symbol)
}

func TestFormatPtr_NilAndPresent(t *testing.T) {
	assert.Equal(t, "", formatPtr(nil))
	assert.Equal(t, "1.50", formatPtr(func() *float64 { v := 1.5; return &v }()))
}

func TestFormatBoolPtr_NilAndPresent(t *testing.T) {
	assert.Equal(t, "", formatBoolPtr(nil))
	v := true
	assert.Equal(t, "true", formatBoolPtr(&v))
}
