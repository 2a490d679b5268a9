// Package rungate is the reference-symbol pre-flight check (spec
// §4.12): before paying for a full universe scan, compare the last
// closed bar of a reference symbol across the target timeframes
// against what was recorded after the previous run, and skip the run
// entirely if nothing has advanced. Persistence follows the teacher's
// write-temp-fsync-rename pattern in
// internal/artifacts/manifest/io.go's IO.Save.
package rungate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/snoman23/strat-engine/internal/bars"
)

// State is the last-closed timestamp recorded per timeframe, keyed by
// Timeframe string for straightforward JSON round-tripping.
type State map[string]time.Time

// Load reads the persisted state, returning an empty State (not an
// error) if the file does not yet exist - the first run always
// proceeds (spec §4.12).
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rungate: failed to read %s: %w", path, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		// Corrupt state file: treat like "no prior state" rather than
		// failing the run (spec §9: ancillary state is never load-bearing
		// for correctness, only for the skip optimization).
		return State{}, nil
	}
	return s, nil
}

// Save atomically persists state to path.
func Save(path string, s State) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rungate: failed to create state dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-rungate-*")
	if err != nil {
		return fmt.Errorf("rungate: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		tmp.Close()
		return fmt.Errorf("rungate: failed to encode state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("rungate: failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("rungate: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rungate: failed to rename temp file into place: %w", err)
	}
	return nil
}

// Gate wraps the persisted state file at Path.
type Gate struct {
	Path string
}

// New returns a Gate persisting to path.
func New(path string) *Gate {
	return &Gate{Path: path}
}

// ShouldRun compares current (the reference symbol's freshly computed
// last-closed timestamps) against the persisted state and reports
// whether any tracked timeframe has advanced. A read error is
// swallowed in favor of running - a gate that can't be trusted must
// never block a scan (spec §9).
func (g *Gate) ShouldRun(current State) bool {
	prior, err := Load(g.Path)
	if err != nil || len(prior) == 0 {
		return true
	}
	for tf, ts := range current {
		if p, ok := prior[tf]; !ok || ts.After(p) {
			return true
		}
	}
	return false
}

// Advance persists current as the new baseline, called once a run has
// completed and its snapshot has been written.
func (g *Gate) Advance(current State) error {
	return Save(g.Path, current)
}

// ReferenceState builds the State a Gate compares, from a reference
// symbol's last-closed bar timestamp per timeframe (spec §4.12). The
// caller supplies the last-closed timestamp it already resolved per
// timeframe (via internal/closedbar.Oracle) so this package stays pure
// glue with no dependency on the fetch/classify stages.
func ReferenceState(closed map[bars.Timeframe]time.Time) State {
	s := make(State, len(closed))
	for tf, ts := range closed {
		s[string(tf)] = ts
	}
	return s
}
