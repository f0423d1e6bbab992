package collector

import (
	"context"
	"errors"

	"IchimokuScanner/internal/model"
)

// ErrFetch wraps every failure to obtain a price series: network, decode, or unknown symbol.
var ErrFetch = errors.New("price fetch failed")

// Fetcher defines the interface for fetching price history.
// Implementations may return fewer bars than the period implies.
type Fetcher interface {
	FetchSeries(ctx context.Context, symbol, interval, period string) (*model.PriceSeries, error)
	Name() string
}
