package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"IchimokuScanner/internal/model"
)

// PDFMaxRows caps the results table.
const PDFMaxRows = 50

// PDFWriter renders a landscape A4 report with a results table.
type PDFWriter struct {
	Now func() time.Time
}

func (PDFWriter) Extension() string   { return "pdf" }
func (PDFWriter) ContentType() string { return "application/pdf" }

func (p PDFWriter) Write(w io.Writer, r *model.ScanReport) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Ichimoku Technical Analysis Scan Report", "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, "Scan Details", "", 1, "", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(60, 6, "Scan Time: "+r.ScanTime.Format(model.ScanTimeLayout), "", 0, "", false, 0, "")
	pdf.CellFormat(40, 6, "Timeframe: "+r.Timeframe, "", 0, "", false, 0, "")
	pdf.CellFormat(40, 6, fmt.Sprintf("Min Gap: %s%%", floatStr(r.MinGap)), "", 0, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Symbols Scanned: %d", r.SymbolsScanned), "", 1, "", false, 0, "")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 6, fmt.Sprintf("Matches Found: %d", r.MatchesFound), "", 1, "", false, 0, "")
	pdf.Ln(5)

	if len(r.Results) > 0 {
		widths := []float64{35, 25, 25, 25, 20, 25}
		headers := []string{"Symbol", "Close", "Tenkan", "Kijun", "Gap %", "Signal"}
		pdf.SetFont("Helvetica", "B", 10)
		for i, h := range headers {
			pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 9)
		rows := r.Results
		if len(rows) > PDFMaxRows {
			rows = rows[:PDFMaxRows]
		}
		for _, m := range rows {
			pdf.CellFormat(widths[0], 7, m.Symbol, "1", 0, "", false, 0, "")
			pdf.CellFormat(widths[1], 7, floatStr(m.Close), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[2], 7, floatStr(m.Fast), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[3], 7, floatStr(m.Slow), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[4], 7, floatStr(m.GapPct), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[5], 7, string(m.Direction), "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
	}

	pdf.Ln(5)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 6, "Generated on "+now().Format(model.ScanTimeLayout), "", 0, "C", false, 0, "")

	return pdf.Output(w)
}
