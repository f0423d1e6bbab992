package export

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"IchimokuScanner/internal/model"
)

// Writer renders a scan report in one output format.
type Writer interface {
	Write(w io.Writer, r *model.ScanReport) error
	Extension() string
	ContentType() string
}

// Formats lists the names accepted by New.
var Formats = []string{"csv", "json", "parquet", "pdf"}

// New returns the writer for format (csv, json, parquet, pdf).
func New(format string) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVWriter{}, nil
	case "json":
		return JSONWriter{}, nil
	case "parquet":
		return ParquetWriter{}, nil
	case "pdf":
		return PDFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (use: %s)", format, strings.Join(Formats, ", "))
	}
}

// SaveFile writes the report to path with the given writer.
func SaveFile(wr Writer, r *model.ScanReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := wr.Write(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
