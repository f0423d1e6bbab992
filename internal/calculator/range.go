package calculator

import (
	"fmt"
	"math"

	"IchimokuScanner/internal/model"
)

// highLow returns the highest high and the lowest low of the given bars.
func highLow(bars []model.OHLCV) (high, low float64) {
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low
}

// RollingMidpoint returns (max(high) + min(low)) / 2 over a trailing window ending at each bar.
// Positions with fewer than window bars hold NaN.
func RollingMidpoint(bars []model.OHLCV, window int) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive, got %d", ErrInput, window)
	}
	out := make([]float64, len(bars))
	for i := range bars {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		high, low := highLow(bars[i-window+1 : i+1])
		out[i] = (high + low) / 2
	}
	return out, nil
}

// validateHighLow rejects bars whose high or low is missing.
func validateHighLow(bars []model.OHLCV) error {
	for i, b := range bars {
		if math.IsNaN(b.High) || math.IsInf(b.High, 0) {
			return fmt.Errorf("%w: bar %d has no high", ErrInput, i)
		}
		if math.IsNaN(b.Low) || math.IsInf(b.Low, 0) {
			return fmt.Errorf("%w: bar %d has no low", ErrInput, i)
		}
	}
	return nil
}
