package calculator

import (
	"errors"
	"fmt"
	"math"

	"IchimokuScanner/internal/model"
)

// ErrZeroDenominator is returned when the slow line or the close is zero.
var ErrZeroDenominator = errors.New("zero denominator")

// Evaluate derives gap/proximity metrics and direction from a close and the two line values.
// Denominators are taken by magnitude so both percentages stay non-negative.
func Evaluate(close, fast, slow float64) (model.SignalMetrics, error) {
	for _, v := range []float64{close, fast, slow} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.SignalMetrics{}, fmt.Errorf("%w: non-finite input", ErrInput)
		}
	}
	if slow == 0 {
		return model.SignalMetrics{}, fmt.Errorf("%w: slow line is zero", ErrZeroDenominator)
	}
	if close == 0 {
		return model.SignalMetrics{}, fmt.Errorf("%w: close is zero", ErrZeroDenominator)
	}
	return model.SignalMetrics{
		GapPct:       math.Abs(fast-slow) / math.Abs(slow) * 100,
		ProximityPct: math.Abs(close-fast) / math.Abs(close) * 100,
		Direction:    ClassifyDirection(fast, slow),
	}, nil
}

// ClassifyDirection compares the fast line against the slow line.
func ClassifyDirection(fast, slow float64) model.Direction {
	switch {
	case fast > slow:
		return model.Bullish
	case fast < slow:
		return model.Bearish
	default:
		return model.Neutral
	}
}
