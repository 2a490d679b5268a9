// Package universe implements the per-run ticker selection scheduler
// (spec §4.9): a priority pool of the largest eligible stocks, plus a
// deterministic round-robin rotation over the remaining eligible
// stocks and ETFs, with a handful of core ETFs always included. The
// concurrency-bounded, mutex-guarded manager shape follows the
// teacher's universe.Manager (this file, pre-transform); the rotation
// offset's atomic persistence follows
// internal/artifacts/manifest/io.go's write-temp-fsync-rename pattern.
package universe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/snoman23/strat-engine/internal/reference"
)

// Manager selects each run's ticker batch from a fixed reference
// universe (spec §4.1/§4.9).
type Manager struct {
	mu sync.RWMutex

	priorityPool  []string // eligible stocks ranked by market cap desc, top N
	expansionPool []string // remaining eligible stocks + all listed ETFs (core ones included), stable order
	coreETFs      []string

	priorityPerRun   int
	rotationPerRun   int
	maxTickersPerRun int
	devMode          bool
	devTickersLimit  int

	offsetPath string
}

// Config is the subset of the global configuration the scheduler needs
// (kept narrow so this package doesn't import internal/config and
// create a dependency cycle with anything config-adjacent).
type Config struct {
	MinMarketCapUSD   float64
	PriorityTopStocks int
	PriorityPerRun    int
	RotationPerRun    int
	MaxTickersPerRun  int
	CoreETFs          []string
	DevMode           bool
	DevTickersLimit   int
}

// NewManager builds a Manager from the loaded symbol table and ETF
// listing (spec §4.1), partitioning it into the priority and expansion
// pools up front so each run's Select call is O(rotation_per_run).
func NewManager(symbols []reference.SymbolRecord, etfListing map[string]bool, cfg Config, offsetPath string) *Manager {
	eligible := make([]reference.SymbolRecord, 0, len(symbols))
	for _, s := range symbols {
		if etfListing[s.Symbol] {
			continue // ETFs are never subject to the market-cap filter
		}
		if s.MarketCap >= cfg.MinMarketCapUSD {
			eligible = append(eligible, s)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].MarketCap > eligible[j].MarketCap
	})

	cut := cfg.PriorityTopStocks
	if cut > len(eligible) {
		cut = len(eligible)
	}
	priority := make([]string, 0, cut)
	for _, s := range eligible[:cut] {
		priority = append(priority, s.Symbol)
	}

	expansion := make([]string, 0, len(eligible)-cut+len(etfListing))
	for _, s := range eligible[cut:] {
		expansion = append(expansion, s.Symbol)
	}
	etfNames := make([]string, 0, len(etfListing))
	for sym := range etfListing {
		etfNames = append(etfNames, sym)
	}
	sort.Strings(etfNames) // map iteration order is random; the rotation must be deterministic
	expansion = append(expansion, etfNames...)

	return &Manager{
		priorityPool:     priority,
		expansionPool:    expansion,
		coreETFs:         append([]string(nil), cfg.CoreETFs...),
		priorityPerRun:   cfg.PriorityPerRun,
		rotationPerRun:   cfg.RotationPerRun,
		maxTickersPerRun: cfg.MaxTickersPerRun,
		devMode:          cfg.DevMode,
		devTickersLimit:  cfg.DevTickersLimit,
		offsetPath:       offsetPath,
	}
}

// Select returns this run's ticker batch (spec §4.9): core ETFs, then
// the top priority_per_run of the priority pool, then rotation_per_run
// tickers from the expansion pool starting at the persisted offset
// (wrapping around), deduplicated in that precedence order and
// truncated to max_tickers_per_run (or dev_tickers_limit in dev mode).
// The rotation offset is advanced and persisted as a side effect, so a
// crash between Select calls loses at most the in-flight run's
// progress, never corrupts the sequence (spec §9).
func (m *Manager) Select() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	offset, err := loadOffset(m.offsetPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var batch []string
	add := func(sym string) {
		if !seen[sym] {
			seen[sym] = true
			batch = append(batch, sym)
		}
	}

	for _, sym := range m.coreETFs {
		add(sym)
	}

	priorityCount := m.priorityPerRun
	if priorityCount > len(m.priorityPool) {
		priorityCount = len(m.priorityPool)
	}
	for _, sym := range m.priorityPool[:priorityCount] {
		add(sym)
	}

	rotated, nextOffset := rotationSlice(m.expansionPool, offset, m.rotationPerRun)
	for _, sym := range rotated {
		add(sym)
	}

	if err := saveOffset(m.offsetPath, nextOffset); err != nil {
		return nil, err
	}

	limit := m.maxTickersPerRun
	if m.devMode && m.devTickersLimit < limit {
		limit = m.devTickersLimit
	}
	if limit > 0 && len(batch) > limit {
		batch = batch[:limit]
	}
	return batch, nil
}

// rotationSlice returns count consecutive entries of pool starting at
// offset, wrapping around the end (spec §4.9's worked example: pool
// [A,B,C,D,E], rotation_per_run=2, offset=4 -> [E,A], next offset=1).
// An empty pool or non-positive count yields no entries and leaves the
// offset unchanged.
func rotationSlice(pool []string, offset, count int) ([]string, int) {
	n := len(pool)
	if n == 0 || count <= 0 {
		return nil, offset
	}
	if count > n {
		count = n
	}
	offset = ((offset % n) + n) % n

	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, pool[(offset+i)%n])
	}
	return out, (offset + count) % n
}

type offsetFile struct {
	Offset int `json:"offset"`
}

func loadOffset(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("universe: failed to read rotation offset %s: %w", path, err)
	}
	var f offsetFile
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, nil // corrupt offset file: restart rotation rather than fail the run
	}
	return f.Offset, nil
}

func saveOffset(path string, offset int) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("universe: failed to create state dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-rotation-*")
	if err != nil {
		return fmt.Errorf("universe: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := json.NewEncoder(tmp).Encode(offsetFile{Offset: offset}); err != nil {
		tmp.Close()
		return fmt.Errorf("universe: failed to encode rotation offset: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("universe: failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("universe: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("universe: failed to rename temp file into place: %w", err)
	}
	return nil
}
