// Package cache is the disk-backed TTL bar cache (spec §4.2): one file
// per (symbol, interval), tolerant of partial or corrupt reads, with
// best-effort writes. Grounded on the original loader's
// _cache_path/_is_cache_fresh/_read_cache trio
// (original_source/loaders/yahoo.py) and on the teacher's file-backed
// persistence idiom in internal/data/cache/ttl.go, adapted from an
// in-memory map to on-disk files since spec §4.2 requires the cache to
// survive process restarts.
package cache

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/snoman23/strat-engine/internal/bars"
)

var replacer = strings.NewReplacer(
	"/", "_",
	"^", "",
	"=", "_",
	" ", "",
	".", "-",
)

// Store is a disk-backed cache rooted at Dir. Zero value is not usable;
// construct with New.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: failed to create cache dir %s: %w", dir, err)
	}
	return &Store{Dir: dir}, nil
}

// Path returns the deterministic on-disk path for (symbol, interval).
func (s *Store) Path(symbol string, interval bars.Interval) string {
	safeSymbol := replacer.Replace(symbol)
	safeInterval := replacer.Replace(string(interval))
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s.csv.zst", safeSymbol, safeInterval))
}

// Fresh reports whether the cache entry for (symbol, interval) exists
// and was modified within maxAge.
func (s *Store) Fresh(symbol string, interval bars.Interval, maxAge time.Duration) bool {
	info, err := os.Stat(s.Path(symbol, interval))
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) <= maxAge
}

// Get reads the cached frame for (symbol, interval). A missing, corrupt,
// or partially-written file is treated as a cache miss (ok=false),
// never an error (spec §4.2).
func (s *Store) Get(symbol string, interval bars.Interval) (bars.Frame, bool) {
	f, err := os.Open(s.Path(symbol, interval))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, false
	}
	defer zr.Close()

	frame, err := decodeCSV(zr)
	if err != nil || len(frame) == 0 {
		return nil, false
	}
	return frame, true
}

// Put best-effort writes frame to the cache for (symbol, interval). A
// write failure is swallowed (spec §4.2: cache writes never abort the
// pipeline); callers that want to observe it use PutErr.
func (s *Store) Put(symbol string, interval bars.Interval, frame bars.Frame) {
	_ = s.PutErr(symbol, interval, frame)
}

// PutErr is Put but returns the underlying error instead of discarding
// it, for callers (tests, diagnostics) that want to know.
func (s *Store) PutErr(symbol string, interval bars.Interval, frame bars.Frame) error {
	path := s.Path(symbol, interval)
	tmp, err := os.CreateTemp(s.Dir, ".tmp-cache-*")
	if err != nil {
		return fmt.Errorf("cache: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("cache: failed to open zstd writer: %w", err)
	}
	if err := encodeCSV(zw, frame); err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("cache: failed to encode frame: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: failed to flush zstd writer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("cache: failed to rename temp file into place: %w", err)
	}
	return nil
}

var csvHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

func encodeCSV(w io.Writer, frame bars.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range frame {
		row := []string{
			b.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func decodeCSV(r io.Reader) (bars.Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var out bars.Frame
	for _, row := range rows[1:] { // skip header
		if len(row) < 6 {
			continue // partial row: skip, don't fail the whole read
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			continue
		}
		o, e1 := strconv.ParseFloat(row[1], 64)
		h, e2 := strconv.ParseFloat(row[2], 64)
		l, e3 := strconv.ParseFloat(row[3], 64)
		c, e4 := strconv.ParseFloat(row[4], 64)
		v, e5 := strconv.ParseFloat(row[5], 64)
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
			continue
		}
		out = append(out, bars.Bar{Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	return bars.Clean(out), nil
}
