// Package enrich left-joins sector, industry, and ETF-membership
// reference data onto scan result rows (spec §4.13), grounded on
// original_source's enrich_sector_from_stockanalysis and
// enrich_etf_membership (original_source/app.py).
package enrich

import (
	"strings"

	"github.com/snoman23/strat-engine/internal/reference"
)

// Info is the enrichment payload attached to each result row.
type Info struct {
	Sector     string
	Industry   string
	ETFs       []string
	ETFsPretty string
}

// Source holds the reference tables an enrichment pass joins against.
type Source struct {
	Symbols    map[string]reference.SymbolRecord
	ETFListing map[string]bool
	Holdings   map[string]reference.Holding
}

// NewSource indexes the loaded reference tables by normalized symbol.
func NewSource(symbols []reference.SymbolRecord, etfListing map[string]bool, holdings map[string]reference.Holding) *Source {
	idx := make(map[string]reference.SymbolRecord, len(symbols))
	for _, s := range symbols {
		idx[s.Symbol] = s
	}
	return &Source{Symbols: idx, ETFListing: etfListing, Holdings: holdings}
}

// Enrich resolves the sector/industry/ETF-membership fields for sym
// (spec §4.13):
//   - a ticker that is itself a known sector ETF gets the "Sector ETF"
//     industry label and its sector overridden to that ETF's sector
//     label (reference.SectorETFs), taking precedence over whatever the
//     symbols table says about the ETF's own entry;
//   - everything else resolves via the symbols table, falling back to
//     Unknown when absent.
func (s *Source) Enrich(sym string) Info {
	info := Info{Sector: reference.Unknown, Industry: reference.Unknown}

	isETF := s.ETFListing[sym]

	if rec, ok := s.Symbols[sym]; ok {
		info.Sector = reference.Canonicalize(rec.SectorRaw)
		if info.Industry == reference.Unknown {
			info.Industry = rec.SectorRaw
		}
	}

	if isETF {
		if sector, ok := reference.SectorETFs[sym]; ok {
			info.Sector = sector
			info.Industry = "Sector ETF"
		}
	}

	if h, ok := s.Holdings[sym]; ok {
		info.ETFs = h.ETFs
		info.ETFsPretty = strings.Join(h.ETFs, ", ")
	}

	return info
}
