package history

import (
	"context"

	"IchimokuScanner/internal/model"
)

// NoopStore is used when history is disabled. Reports get an id but are not kept.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) Save(_ context.Context, r *model.ScanReport) (string, error) {
	r.ID = NewID(r.ScanTime)
	return r.ID, nil
}

func (n *NoopStore) Get(_ context.Context, _ string) (*model.ScanReport, error) {
	return nil, ErrNotFound
}

func (n *NoopStore) List(_ context.Context) ([]model.HistorySummary, error) {
	return []model.HistorySummary{}, nil
}

func (n *NoopStore) Close() error { return nil }
