package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"IchimokuScanner/internal/calculator"
	"IchimokuScanner/internal/collector"
	"IchimokuScanner/internal/model"
)

// ErrInsufficientData marks a symbol that cannot be evaluated yet. It is a
// soft condition: the symbol simply does not match.
var ErrInsufficientData = errors.New("insufficient data")

// ErrScanPanic wraps a panic raised while fetching or evaluating one symbol.
var ErrScanPanic = errors.New("symbol scan panicked")

// Outcome is the per-symbol result of a scan. Err and Skipped are mutually
// exclusive; Match is nil unless both thresholds held.
type Outcome struct {
	Symbol  string
	Match   *model.MatchRecord
	Metrics *model.SignalMetrics
	Err     error
	Skipped string
}

// Scanner evaluates one symbol at a time.
type Scanner struct {
	Fetcher      collector.Fetcher
	Params       Params
	FetchTimeout time.Duration
}

// Scan fetches the symbol's history and applies both thresholds to its latest bar.
// It never panics and never returns an error to the caller; failures, including
// a recovered panic, are reported through Outcome.Err.
func (s *Scanner) Scan(ctx context.Context, symbol string) (out Outcome) {
	out = Outcome{Symbol: symbol}
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Symbol: symbol, Err: fmt.Errorf("%w: %v", ErrScanPanic, r)}
		}
	}()

	fctx := ctx
	if s.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.FetchTimeout)
		defer cancel()
	}
	series, err := s.Fetcher.FetchSeries(fctx, symbol, s.Params.Timeframe, s.Params.Period)
	if err != nil {
		if !errors.Is(err, collector.ErrFetch) {
			err = fmt.Errorf("%w: %w", collector.ErrFetch, err)
		}
		out.Err = err
		return out
	}

	match, metrics, err := EvaluateSeries(series, s.Params)
	switch {
	case errors.Is(err, ErrInsufficientData):
		out.Skipped = err.Error()
	case err != nil:
		out.Err = err
	default:
		out.Metrics = &metrics
		if match != nil {
			match.Symbol = symbol
		}
		out.Match = match
	}
	return out
}

// EvaluateSeries runs the indicator lines and the signal evaluator on the last
// bar of series. It returns a MatchRecord only when gap >= MinGapPct and
// proximity <= ProximityLimitPct, compared at full precision.
func EvaluateSeries(series *model.PriceSeries, p Params) (*model.MatchRecord, model.SignalMetrics, error) {
	if series.Len() < p.MinDataPoints {
		return nil, model.SignalMetrics{}, fmt.Errorf("%w: %d bars, need %d", ErrInsufficientData, series.Len(), p.MinDataPoints)
	}
	fast, slow, err := calculator.ComputeLines(series, p.FastWindow, p.SlowWindow)
	if err != nil {
		return nil, model.SignalMetrics{}, err
	}
	last, _ := series.Last()
	fastV, okF := fast.Last()
	slowV, okS := slow.Last()
	if !okF || !okS {
		return nil, model.SignalMetrics{}, fmt.Errorf("%w: lines undefined at last bar", ErrInsufficientData)
	}

	metrics, err := calculator.Evaluate(last.Close, fastV, slowV)
	if err != nil {
		return nil, model.SignalMetrics{}, err
	}
	if !p.Matches(metrics) {
		return nil, metrics, nil
	}
	return &model.MatchRecord{
		Symbol:    series.Symbol,
		Close:     round2(last.Close),
		Fast:      round2(fastV),
		Slow:      round2(slowV),
		GapPct:    round2(metrics.GapPct),
		Direction: metrics.Direction,
	}, metrics, nil
}

// Matches applies the two-condition filter.
func (p Params) Matches(m model.SignalMetrics) bool {
	return m.GapPct >= p.MinGapPct && m.ProximityPct <= p.ProximityLimitPct
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
