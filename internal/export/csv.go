package export

import (
	"encoding/csv"
	"io"

	"IchimokuScanner/internal/model"
)

// CSVHeader is the column order of CSV exports.
var CSVHeader = []string{"Symbol", "Close", "Tenkan", "Kijun", "TK Gap %", "Signal"}

// CSVWriter writes one row per match.
type CSVWriter struct{}

func (CSVWriter) Extension() string   { return "csv" }
func (CSVWriter) ContentType() string { return "text/csv" }

func (CSVWriter) Write(out io.Writer, r *model.ScanReport) error {
	w := csv.NewWriter(out)
	if err := w.Write(CSVHeader); err != nil {
		return err
	}
	for _, m := range r.Results {
		if err := w.Write([]string{
			m.Symbol,
			floatStr(m.Close),
			floatStr(m.Fast),
			floatStr(m.Slow),
			floatStr(m.GapPct),
			string(m.Direction),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
