package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snoman23/strat-engine/internal/reference"
)

func TestEnrich_SectorETFOverride(t *testing.T) {
	src := NewSource(nil, map[string]bool{"XLK": true}, nil)
	info := src.Enrich("XLK")
	assert.Equal(t, "Sector ETF", info.Industry)
	assert.Equal(t, "Information Technology", info.Sector)
}

func TestEnrich_SectorETFOverride_TakesPrecedenceOverSymbolsTable(t *testing.T) {
	// XLE's own symbols-table row (if present at all) must not win over
	// its known sector-ETF label.
	symbols := []reference.SymbolRecord{{Symbol: "XLE", SectorRaw: "Diversified"}}
	src := NewSource(symbols, map[string]bool{"XLE": true}, nil)
	info := src.Enrich("XLE")
	assert.Equal(t, "Energy", info.Sector)
	assert.Equal(t, "Sector ETF", info.Industry)
}

func TestEnrich_NonSectorETFGetsNoSectorOverride(t *testing.T) {
	// A broad-market ETF (e.g. a core ETF) has no single sector label.
	src := NewSource(nil, map[string]bool{"SPY": true}, nil)
	info := src.Enrich("SPY")
	assert.Equal(t, reference.Unknown, info.Industry)
	assert.Equal(t, reference.Unknown, info.Sector)
}

func TestEnrich_SymbolTableLookup(t *testing.T) {
	symbols := []reference.SymbolRecord{{Symbol: "AAPL", SectorRaw: "Technology"}}
	src := NewSource(symbols, map[string]bool{}, nil)
	info := src.Enrich("AAPL")
	assert.Equal(t, "Information Technology", info.Sector)
	assert.Equal(t, "Technology", info.Industry)
}

func TestEnrich_UnknownSymbolFallsBackToUnknown(t *testing.T) {
	src := NewSource(nil, map[string]bool{}, nil)
	info := src.Enrich("ZZZZ")
	assert.Equal(t, reference.Unknown, info.Sector)
	assert.Equal(t, reference.Unknown, info.Industry)
}

func TestEnrich_HoldingsJoin(t *testing.T) {
	holdings := map[string]reference.Holding{
		"AAPL": {Symbol: "AAPL", ETFs: []string{"SPY", "QQQ"}},
	}
	src := NewSource(nil, map[string]bool{}, holdings)
	info := src.Enrich("AAPL")
	assert.Equal(t, []string{"SPY", "QQQ"}, info.ETFs)
	assert.Equal(t, "SPY, QQQ", info.ETFsPretty)
}
