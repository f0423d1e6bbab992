package scanner

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"IchimokuScanner/internal/calculator"
)

// ErrInvalidParams is returned for threshold or window values a scan cannot run with.
var ErrInvalidParams = errors.New("invalid scan parameters")

const (
	DefaultTimeframe         = "1h"
	DefaultPeriod            = "3mo"
	DefaultMinGapPct         = 3.0
	DefaultProximityLimitPct = 0.4
	DefaultMinDataPoints     = 30
)

// Timeframe is a selectable bar interval.
type Timeframe struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Timeframes lists the supported intervals in display order.
var Timeframes = []Timeframe{
	{Value: "30m", Label: "30 Minutes"},
	{Value: "1h", Label: "1 Hour"},
	{Value: "4h", Label: "4 Hours"},
	{Value: "1d", Label: "1 Day"},
}

// ValidTimeframe reports whether v is one of Timeframes.
func ValidTimeframe(v string) bool {
	for _, tf := range Timeframes {
		if tf.Value == v {
			return true
		}
	}
	return false
}

// Params is the full set of tunables for one scan. It is passed explicitly
// so concurrent scans can run with different thresholds.
type Params struct {
	Timeframe         string
	Period            string
	MinGapPct         float64
	ProximityLimitPct float64
	FastWindow        int
	SlowWindow        int
	MinDataPoints     int
}

// DefaultParams returns the stock configuration: 1h bars over 3 months, 9/26 windows.
func DefaultParams() Params {
	return Params{
		Timeframe:         DefaultTimeframe,
		Period:            DefaultPeriod,
		MinGapPct:         DefaultMinGapPct,
		ProximityLimitPct: DefaultProximityLimitPct,
		FastWindow:        calculator.DefaultTenkanWindow,
		SlowWindow:        calculator.DefaultKijunWindow,
		MinDataPoints:     DefaultMinDataPoints,
	}
}

// Validate rejects parameters before any symbol is fetched.
func (p Params) Validate() error {
	if !ValidTimeframe(p.Timeframe) {
		return fmt.Errorf("%w: timeframe %q", ErrInvalidParams, p.Timeframe)
	}
	if p.Period == "" {
		return fmt.Errorf("%w: period is empty", ErrInvalidParams)
	}
	if math.IsNaN(p.MinGapPct) || p.MinGapPct < 0 || p.MinGapPct > 100 {
		return fmt.Errorf("%w: min gap %.2f outside [0,100]", ErrInvalidParams, p.MinGapPct)
	}
	if math.IsNaN(p.ProximityLimitPct) || p.ProximityLimitPct < 0 || p.ProximityLimitPct > 100 {
		return fmt.Errorf("%w: proximity limit %.2f outside [0,100]", ErrInvalidParams, p.ProximityLimitPct)
	}
	if p.FastWindow <= 0 || p.SlowWindow <= 0 {
		return fmt.Errorf("%w: windows must be positive (%d/%d)", ErrInvalidParams, p.FastWindow, p.SlowWindow)
	}
	if p.MinDataPoints <= 0 {
		return fmt.Errorf("%w: min data points must be positive", ErrInvalidParams)
	}
	return nil
}

// RequestError is a user-facing validation failure for an ad-hoc scan request.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string { return e.Msg }

// Messages returned for rejected scan requests.
const (
	MsgInvalidTimeframe = "Invalid timeframe"
	MsgInvalidMinGap    = "Invalid minimum gap value"
	MsgMinGapRange      = "Minimum gap must be between 0 and 100"
)

// WithRequest overlays a user-supplied timeframe and minimum gap on p.
// Empty values keep the current setting.
func (p Params) WithRequest(timeframe, minGap string) (Params, error) {
	if timeframe != "" {
		if !ValidTimeframe(timeframe) {
			return p, &RequestError{Msg: MsgInvalidTimeframe}
		}
		p.Timeframe = timeframe
	}
	if minGap != "" {
		gap, err := strconv.ParseFloat(strings.TrimSpace(minGap), 64)
		if err != nil || math.IsNaN(gap) || math.IsInf(gap, 0) {
			return p, &RequestError{Msg: MsgInvalidMinGap}
		}
		if gap < 0 || gap > 100 {
			return p, &RequestError{Msg: MsgMinGapRange}
		}
		p.MinGapPct = gap
	}
	return p, nil
}
