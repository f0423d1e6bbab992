package export

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"IchimokuScanner/internal/model"
)

// Row is the parquet schema: one match per row with its report context.
type Row struct {
	ReportID  string  `parquet:"report_id"`
	ScanTime  string  `parquet:"scan_time"`
	Timeframe string  `parquet:"timeframe"`
	Rank      int32   `parquet:"rank"`
	Symbol    string  `parquet:"symbol"`
	Close     float64 `parquet:"close"`
	Tenkan    float64 `parquet:"tenkan"`
	Kijun     float64 `parquet:"kijun"`
	GapPct    float64 `parquet:"gap_pct"`
	Signal    string  `parquet:"signal"`
}

// ParquetWriter writes matches as a parquet file.
type ParquetWriter struct{}

func (ParquetWriter) Extension() string   { return "parquet" }
func (ParquetWriter) ContentType() string { return "application/vnd.apache.parquet" }

func (ParquetWriter) Write(w io.Writer, r *model.ScanReport) error {
	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(Rows(r)); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

// Rows flattens the report's results in ranking order.
func Rows(r *model.ScanReport) []Row {
	scanTime := r.ScanTime.Format(model.ScanTimeLayout)
	rows := make([]Row, len(r.Results))
	for i, m := range r.Results {
		rows[i] = Row{
			ReportID:  r.ID,
			ScanTime:  scanTime,
			Timeframe: r.Timeframe,
			Rank:      int32(i + 1),
			Symbol:    m.Symbol,
			Close:     m.Close,
			Tenkan:    m.Fast,
			Kijun:     m.Slow,
			GapPct:    m.GapPct,
			Signal:    string(m.Direction),
		}
	}
	return rows
}
