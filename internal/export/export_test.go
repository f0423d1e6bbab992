package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"IchimokuScanner/internal/model"
)

func sampleReport(n int) *model.ScanReport {
	r := &model.ScanReport{
		ID:             "20240701_113005",
		Timeframe:      "1h",
		MinGap:         3,
		ScanTime:       time.Date(2024, 7, 1, 11, 30, 5, 0, time.Local),
		SymbolsScanned: 500,
	}
	for i := 0; i < n; i++ {
		r.Results = append(r.Results, model.MatchRecord{
			Symbol: fmt.Sprintf("SYM%d.NS", i), Close: 100.2, Fast: 100, Slow: 95.5,
			GapPct: 10 - float64(i)*0.01, Direction: model.Bullish,
		})
	}
	r.MatchesFound = n
	return r
}

func TestNew(t *testing.T) {
	for _, f := range Formats {
		w, err := New(strings.ToUpper(f))
		if err != nil {
			t.Errorf("%s: %v", f, err)
			continue
		}
		if w.Extension() != f {
			t.Errorf("%s: extension %s", f, w.Extension())
		}
	}
	if _, err := New("xlsx"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (CSVWriter{}).Write(&buf, sampleReport(2)); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "Symbol,Close,Tenkan,Kijun,TK Gap %,Signal" {
		t.Errorf("unexpected header %v", records[0])
	}
	if strings.Join(records[1], ",") != "SYM0.NS,100.2,100,95.5,10,Bullish" {
		t.Errorf("unexpected row %v", records[1])
	}
}

func TestJSONWriter_FlatShape(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONWriter{}).Write(&buf, sampleReport(1)); err != nil {
		t.Fatal(err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if raw["scan_time"] != "2024-07-01 11:30:05" {
		t.Errorf("unexpected scan_time %v", raw["scan_time"])
	}
	rows := raw["results"].([]interface{})
	row := rows[0].([]interface{})
	if len(row) != 6 || row[0] != "SYM0.NS" || row[5] != "Bullish" {
		t.Errorf("unexpected row %v", row)
	}
}

func TestParquetWriter_ReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.parquet")
	if err := SaveFile(ParquetWriter{}, sampleReport(3), path); err != nil {
		t.Fatal(err)
	}
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Rank != 1 || rows[2].Symbol != "SYM2.NS" || rows[1].ReportID != "20240701_113005" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestPDFWriter(t *testing.T) {
	var small, large bytes.Buffer
	fixed := func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.Local) }
	if err := (PDFWriter{Now: fixed}).Write(&small, sampleReport(0)); err != nil {
		t.Fatal(err)
	}
	if err := (PDFWriter{Now: fixed}).Write(&large, sampleReport(80)); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(small.Bytes(), []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
	if large.Len() <= small.Len() {
		t.Errorf("expected table to add content: %d <= %d", large.Len(), small.Len())
	}
}
