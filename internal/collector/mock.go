package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"IchimokuScanner/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols listed in Errors fail; symbols in Bars get those bars; anything else
// gets generated bars around Price.
type MockFetcher struct {
	Price  float64
	Count  int
	Bars   map[string][]model.OHLCV
	Errors map[string]error
	Delay  time.Duration

	mu    sync.Mutex
	calls []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchSeries(ctx context.Context, symbol, interval, period string) (*model.PriceSeries, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrFetch, symbol, ctx.Err())
		}
	}
	if err, ok := m.Errors[symbol]; ok {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, symbol, err)
	}
	bars, ok := m.Bars[symbol]
	if !ok {
		count := m.Count
		if count == 0 {
			count = 60
		}
		bars = generateMockBars(m.Price, count)
	}
	return &model.PriceSeries{Symbol: symbol, Interval: interval, Period: period, Bars: bars, FetchedAt: time.Now()}, nil
}

// Calls returns the symbols requested so far, in request order.
func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func generateMockBars(basePrice float64, count int) []model.OHLCV {
	if basePrice == 0 {
		basePrice = 100
	}
	bars := make([]model.OHLCV, count)
	start := time.Now().Add(-time.Duration(count) * time.Hour)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
