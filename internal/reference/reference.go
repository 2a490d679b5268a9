// Package reference loads the supporting CSV tables (symbol universe,
// ETF listing, sector map, core ETF holdings) that the universe
// scheduler and enrichment join depend on (spec §4.1/§4.13), grounded
// on original_source's CSV-backed tables in app.py
// (load_stocks_biggest/load_holdings) and config.py's SECTORS_11.
package reference

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/snoman23/strat-engine/internal/symbol"
)

// Sectors11 is the fixed 11-GICS-sector taxonomy every row is
// canonicalized into (spec §4.13), in original_source's SECTORS_11
// order.
var Sectors11 = []string{
	"Communication Services",
	"Consumer Discretionary",
	"Consumer Staples",
	"Energy",
	"Financials",
	"Health Care",
	"Industrials",
	"Information Technology",
	"Materials",
	"Real Estate",
	"Utilities",
}

// sectorSynonyms mirrors original_source's normalize_to_11_sector
// mapping table, including the vendor spellings that differ from the
// canonical GICS name ("Healthcare" -> "Health Care", "Technology" ->
// "Information Technology").
var sectorSynonyms = map[string]string{
	"communication services":  "Communication Services",
	"consumer discretionary":  "Consumer Discretionary",
	"consumer staples":        "Consumer Staples",
	"energy":                  "Energy",
	"financials":              "Financials",
	"health care":             "Health Care",
	"healthcare":              "Health Care",
	"industrials":             "Industrials",
	"information technology":  "Information Technology",
	"technology":              "Information Technology",
	"materials":               "Materials",
	"real estate":             "Real Estate",
	"utilities":               "Utilities",
}

// Unknown is the fallback sector for anything Canonicalize can't match.
const Unknown = "Unknown"

// SectorETFs is the reverse of original_source's config.SECTOR_TOP_ETFS
// (sector -> its representative ETFs): each of these tickers IS a sector
// ETF, so enrichment (spec §4.13) overrides its row's sector to this
// label rather than whatever the symbols table says about it.
var SectorETFs = map[string]string{
	"XLC":  "Communication Services",
	"XLY":  "Consumer Discretionary",
	"XLP":  "Consumer Staples",
	"XLE":  "Energy",
	"XLF":  "Financials",
	"XLV":  "Health Care",
	"XLI":  "Industrials",
	"XLK":  "Information Technology",
	"XLB":  "Materials",
	"XLRE": "Real Estate",
	"XLU":  "Utilities",
}

// Canonicalize maps a raw vendor sector/industry string onto one of
// Sectors11, or Unknown if nothing matches (spec §4.13). It tries an
// exact match first, then looks for a known sector name contained in
// the raw string; the reverse (raw string contained in a sector name)
// is not tried.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return Unknown
	}
	lower := strings.ToLower(s)
	if v, ok := sectorSynonyms[lower]; ok {
		return v
	}
	for k, v := range sectorSynonyms {
		if strings.Contains(lower, k) {
			return v
		}
	}
	return Unknown
}

// SymbolRecord is one row of the symbols-with-market-cap universe
// table (spec §4.1/§4.9).
type SymbolRecord struct {
	Symbol     string
	MarketCap  float64
	SectorRaw  string
}

// LoadSymbols reads the symbols table CSV. Expected columns (matching
// original_source's StockAnalysis export): Symbol, Market Cap, Sector
// (Sector or Industry, whichever is present). Malformed rows are
// skipped rather than aborting the whole load (spec §9).
func LoadSymbols(path string) ([]SymbolRecord, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	symCol := indexOf(header, "Symbol", "symbol", "Ticker", "ticker")
	capCol := indexOf(header, "Market Cap", "MarketCap", "market_cap")
	sectorCol := indexOf(header, "Sector", "sector", "Industry", "industry")
	if symCol < 0 {
		return nil, fmt.Errorf("reference: symbols table %s missing a Symbol/Ticker column", path)
	}

	var out []SymbolRecord
	for _, row := range rows {
		if symCol >= len(row) {
			continue
		}
		sym := symbol.Normalize(row[symCol])
		if sym == "" {
			continue
		}
		var cap float64
		if capCol >= 0 && capCol < len(row) {
			v, err := ParseMarketCap(row[capCol])
			if err != nil {
				continue // malformed market cap: drop the row
			}
			cap = v
		}
		var sectorRaw string
		if sectorCol >= 0 && sectorCol < len(row) {
			sectorRaw = row[sectorCol]
		}
		out = append(out, SymbolRecord{Symbol: sym, MarketCap: cap, SectorRaw: sectorRaw})
	}
	return out, nil
}

// LoadSet reads a single-column (or Symbol-headered) CSV into a set of
// normalized symbols - used for the ETF listing table.
func LoadSet(path string) (map[string]bool, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	col := indexOf(header, "Symbol", "symbol", "Ticker", "ticker")
	if col < 0 {
		col = 0
	}
	out := make(map[string]bool)
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		sym := symbol.Normalize(row[col])
		if sym != "" {
			out[sym] = true
		}
	}
	return out, nil
}

// Holding is one row of the core-ETF-holdings table (spec §4.13):
// which core ETFs a stock belongs to, pipe-delimited in the source file.
type Holding struct {
	Symbol string
	ETFs   []string
}

// LoadHoldings reads core_etf_holdings.csv (ticker, etfs columns),
// mirroring original_source's enrich_etf_membership.
func LoadHoldings(path string) (map[string]Holding, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	tickerCol := indexOf(header, "ticker", "Ticker", "Symbol", "symbol")
	etfsCol := indexOf(header, "etfs", "ETFs")
	if tickerCol < 0 || etfsCol < 0 {
		return map[string]Holding{}, nil
	}

	out := make(map[string]Holding)
	for _, row := range rows {
		if tickerCol >= len(row) || etfsCol >= len(row) {
			continue
		}
		sym := symbol.Normalize(row[tickerCol])
		if sym == "" {
			continue
		}
		var etfs []string
		for _, e := range strings.Split(row[etfsCol], "|") {
			e = strings.TrimSpace(e)
			if e != "" {
				etfs = append(etfs, e)
			}
		}
		out[sym] = Holding{Symbol: sym, ETFs: etfs}
	}
	return out, nil
}

// ParseMarketCap parses a market-cap figure that may carry a K/M/B/T
// suffix (e.g. "2.4T", "850M") or be a plain integer, as produced by
// StockAnalysis-style exports. Malformed input returns an error rather
// than silently zeroing the row, so callers can choose to skip it.
func ParseMarketCap(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("reference: empty market cap")
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	mult := 1.0
	suffix := s[len(s)-1]
	switch suffix {
	case 'K', 'k':
		mult = 1e3
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1e6
		s = s[:len(s)-1]
	case 'B', 'b':
		mult = 1e9
		s = s[:len(s)-1]
	case 'T', 't':
		mult = 1e12
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("reference: malformed market cap %q: %w", s, err)
	}
	return v * mult, nil
}

func readCSV(path string) (rows [][]string, header []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reference: failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("reference: failed to parse %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[1:], all[0], nil
}

func indexOf(header []string, candidates ...string) int {
	for i, h := range header {
		for _, c := range candidates {
			if strings.EqualFold(strings.TrimSpace(h), c) {
				return i
			}
		}
	}
	return -1
}
