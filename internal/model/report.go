package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ScanTimeLayout is the wall-clock format used in persisted reports.
const ScanTimeLayout = "2006-01-02 15:04:05"

// ScanReport is the result of one batch scan. It is the unit of persistence and export.
type ScanReport struct {
	ID             string
	Timeframe      string
	MinGap         float64
	ScanTime       time.Time
	SymbolsScanned int
	MatchesFound   int
	Results        []MatchRecord // sorted by GapPct descending
}

// Summary returns the history listing entry for the report.
func (r *ScanReport) Summary() HistorySummary {
	return HistorySummary{
		ID:             r.ID,
		ScanTime:       r.ScanTime.Format(ScanTimeLayout),
		Timeframe:      r.Timeframe,
		MinGap:         r.MinGap,
		SymbolsScanned: r.SymbolsScanned,
		MatchesFound:   r.MatchesFound,
	}
}

// HistorySummary is the listing view of a persisted report.
type HistorySummary struct {
	ID             string  `json:"id"`
	ScanTime       string  `json:"scan_time"`
	Timeframe      string  `json:"timeframe"`
	MinGap         float64 `json:"min_gap"`
	SymbolsScanned int     `json:"symbols_scanned"`
	MatchesFound   int     `json:"matches_found"`
}

// reportRecord is the flat wire shape consumed by the CSV/PDF/JSON sinks.
type reportRecord struct {
	ID             string        `json:"id,omitempty"`
	Timeframe      string        `json:"timeframe"`
	MinGap         float64       `json:"min_gap"`
	ScanTime       string        `json:"scan_time"`
	SymbolsScanned int           `json:"symbols_scanned"`
	MatchesFound   int           `json:"matches_found"`
	Results        []MatchRecord `json:"results"`
}

func (r ScanReport) MarshalJSON() ([]byte, error) {
	results := r.Results
	if results == nil {
		results = []MatchRecord{}
	}
	return json.Marshal(reportRecord{
		ID:             r.ID,
		Timeframe:      r.Timeframe,
		MinGap:         r.MinGap,
		ScanTime:       r.ScanTime.Format(ScanTimeLayout),
		SymbolsScanned: r.SymbolsScanned,
		MatchesFound:   r.MatchesFound,
		Results:        results,
	})
}

func (r *ScanReport) UnmarshalJSON(data []byte) error {
	var rec reportRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	var ts time.Time
	if rec.ScanTime != "" {
		parsed, err := time.ParseInLocation(ScanTimeLayout, rec.ScanTime, time.Local)
		if err != nil {
			return fmt.Errorf("parse scan_time: %w", err)
		}
		ts = parsed
	}
	*r = ScanReport{
		ID:             rec.ID,
		Timeframe:      rec.Timeframe,
		MinGap:         rec.MinGap,
		ScanTime:       ts,
		SymbolsScanned: rec.SymbolsScanned,
		MatchesFound:   rec.MatchesFound,
		Results:        rec.Results,
	}
	return nil
}

// MarshalJSON encodes the record as the positional tuple
// [symbol, close, fast, slow, gap_pct, direction].
func (m MatchRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{m.Symbol, m.Close, m.Fast, m.Slow, m.GapPct, string(m.Direction)})
}

func (m *MatchRecord) UnmarshalJSON(data []byte) error {
	var row []json.RawMessage
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	if len(row) != 6 {
		return fmt.Errorf("result row: expected 6 fields, got %d", len(row))
	}
	var dir string
	targets := []interface{}{&m.Symbol, &m.Close, &m.Fast, &m.Slow, &m.GapPct, &dir}
	for i, t := range targets {
		if err := json.Unmarshal(row[i], t); err != nil {
			return fmt.Errorf("result row field %d: %w", i, err)
		}
	}
	m.Direction = Direction(dir)
	return nil
}
