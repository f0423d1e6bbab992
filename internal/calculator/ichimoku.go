package calculator

import (
	"errors"
	"math"

	"IchimokuScanner/internal/model"
)

// ErrInput reports a price series that cannot be used for line computation.
var ErrInput = errors.New("malformed price series")

const (
	DefaultTenkanWindow = 9
	DefaultKijunWindow  = 26
)

// Line is a rolling-window indicator aligned 1:1 with the bars it was computed from.
// The first Window-1 positions are undefined.
type Line struct {
	Name   string
	Window int
	values []float64
}

// Len returns the number of positions in the line.
func (l Line) Len() int { return len(l.values) }

// At returns the value at position i and whether it is defined.
func (l Line) At(i int) (float64, bool) {
	if i < 0 || i >= len(l.values) || math.IsNaN(l.values[i]) {
		return 0, false
	}
	return l.values[i], true
}

// Last returns the value at the most recent position.
func (l Line) Last() (float64, bool) {
	return l.At(len(l.values) - 1)
}

// ComputeLines computes the Tenkan (fast) and Kijun (slow) lines of a series.
// The windows are computed independently; their ordering is not enforced.
func ComputeLines(series *model.PriceSeries, fastWindow, slowWindow int) (Line, Line, error) {
	if series == nil {
		return Line{}, Line{}, ErrInput
	}
	if err := validateHighLow(series.Bars); err != nil {
		return Line{}, Line{}, err
	}
	fast, err := RollingMidpoint(series.Bars, fastWindow)
	if err != nil {
		return Line{}, Line{}, err
	}
	slow, err := RollingMidpoint(series.Bars, slowWindow)
	if err != nil {
		return Line{}, Line{}, err
	}
	return Line{Name: "tenkan", Window: fastWindow, values: fast},
		Line{Name: "kijun", Window: slowWindow, values: slow},
		nil
}
