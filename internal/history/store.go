package history

import (
	"context"
	"errors"
	"time"

	"IchimokuScanner/internal/model"
)

// DefaultMaxReports is how many reports are kept before the oldest are evicted.
const DefaultMaxReports = 3

// IDLayout formats a scan time into a report id.
const IDLayout = "20060102_150405"

// ErrNotFound is returned by Get for an unknown or evicted id.
var ErrNotFound = errors.New("scan not found")

// Store persists scan reports with a keep-last-N eviction policy.
type Store interface {
	// Save assigns report.ID, persists the report and evicts the oldest
	// reports beyond the retention limit.
	Save(ctx context.Context, report *model.ScanReport) (string, error)
	Get(ctx context.Context, id string) (*model.ScanReport, error)
	// List returns summaries newest first.
	List(ctx context.Context) ([]model.HistorySummary, error)
	Close() error
}

// NewID derives the base id for a report scanned at t.
func NewID(t time.Time) string {
	return t.Format(IDLayout)
}
