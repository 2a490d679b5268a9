// Package snapshot atomically publishes each run's results (spec
// §4.11): twin CSV/JSON result files and a context file, grounded on
// original_source's write_snapshot/_atomic_write_text
// (original_source/snapshot.py) and the teacher's write-temp-fsync-
// rename pattern (internal/artifacts/manifest/io.go's IO.Save). JSON
// encoding uses segmentio/encoding/json as a drop-in faster replacement
// for encoding/json, the way NimbleMarkets/dbn-go's CLI does for its
// own large result sets.
package snapshot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/segmentio/encoding/json"

	"github.com/snoman23/strat-engine/internal/orchestrator"
)

// Paths is where each output file is written (spec §6).
type Paths struct {
	ResultsCSV  string
	ResultsJSON string
	ContextCSV  string
}

// Write publishes results and contexts to every configured path. Each
// file is written independently via atomic temp-then-rename, so a
// reader never observes a partially-written file (spec §4.11
// invariant).
func Write(paths Paths, results []orchestrator.ResultRow, contexts []orchestrator.ContextRow) error {
	if err := writeResultsJSON(paths.ResultsJSON, results); err != nil {
		return err
	}
	if err := writeResultsCSV(paths.ResultsCSV, results); err != nil {
		return err
	}
	if err := writeContextCSV(paths.ContextCSV, contexts); err != nil {
		return err
	}
	return nil
}

// writeResultsJSON emits the record-stream form §4.11 calls for: one
// JSON object per line (NDJSON), not a single indented array, so a
// consumer can tail or stream it incrementally.
func writeResultsJSON(path string, results []orchestrator.ResultRow) error {
	var buf bytes.Buffer
	for _, r := range results {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("snapshot: failed to encode result row JSON: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return atomicWrite(path, buf.Bytes())
}

var resultsHeader = []string{
	"scan_time", "ticker", "chart_url", "current_price",
	"tf", "pattern", "setup", "dir",
	"entry", "stop", "score", "aligned",
	"last_strat", "last_candle_type",
	"actionable", "note",
	"sector", "industry", "etfs", "etfs_pretty",
	"ctx_Y", "ctx_Q", "ctx_M", "ctx_W", "ctx_D",
}

func writeResultsCSV(path string, results []orchestrator.ResultRow) error {
	rows := make([][]string, 0, len(results)+1)
	rows = append(rows, resultsHeader)
	for _, r := range results {
		rows = append(rows, []string{
			r.ScanTime, r.Symbol, r.ChartURL, formatPtr(r.CurrentPrice),
			r.TF, r.Pattern, r.Setup, r.Direction,
			formatPtr(r.Entry), formatPtr(r.Stop), strconv.Itoa(r.Score), formatBoolPtr(r.Aligned),
			r.LastStrat, r.LastCandleType,
			r.Actionable, r.Note,
			r.Sector, r.Industry, r.ETFs, r.ETFsPretty,
			r.CtxY, r.CtxQ, r.CtxM, r.CtxW, r.CtxD,
		})
	}
	return writeCSV(path, rows)
}

var contextHeader = []string{
	"scan_time", "ticker", "current_price",
	"ctx_Y_closed", "ctx_Q_closed", "ctx_M_closed", "ctx_W_closed", "ctx_D_closed",
	"ctx_Y_live", "ctx_Q_live", "ctx_M_live", "ctx_W_live", "ctx_D_live",
	"score", "sector", "industry",
}

func writeContextCSV(path string, contexts []orchestrator.ContextRow) error {
	rows := make([][]string, 0, len(contexts)+1)
	rows = append(rows, contextHeader)
	for _, c := range contexts {
		rows = append(rows, []string{
			c.ScanTime, c.Symbol, formatPtr(c.CurrentPrice),
			c.CtxYClosed, c.CtxQClosed, c.CtxMClosed, c.CtxWClosed, c.CtxDClosed,
			c.CtxYLive, c.CtxQLive, c.CtxMLive, c.CtxWLive, c.CtxDLive,
			strconv.Itoa(c.Score), c.Sector, c.Industry,
		})
	}
	return writeCSV(path, rows)
}

func formatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatBoolPtr(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func writeCSV(path string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: failed to create output dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-snapshot-*")
	if err != nil {
		return fmt.Errorf("snapshot: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: failed to write CSV rows to %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: CSV writer error for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: failed to close temp file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: failed to create output dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-snapshot-*")
	if err != nil {
		return fmt.Errorf("snapshot: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: failed to close temp file: %w", err)
	}
	return os.Rename(tmpPath, path)
}
