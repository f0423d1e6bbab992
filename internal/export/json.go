package export

import (
	"encoding/json"
	"io"

	"IchimokuScanner/internal/model"
)

// JSONWriter writes the flat report record, indented.
type JSONWriter struct{}

func (JSONWriter) Extension() string   { return "json" }
func (JSONWriter) ContentType() string { return "application/json" }

func (JSONWriter) Write(w io.Writer, r *model.ScanReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
