package model

// Direction is the relative position of the fast line against the slow line.
type Direction string

const (
	Bullish Direction = "Bullish"
	Bearish Direction = "Bearish"
	Neutral Direction = "Neutral"
)

// SignalMetrics is derived from one bar's close and the latest line values.
type SignalMetrics struct {
	GapPct       float64   // |fast - slow| / slow * 100
	ProximityPct float64   // |close - fast| / close * 100
	Direction    Direction
}

// MatchRecord is emitted for a symbol whose latest bar passed both thresholds.
// Numeric fields are rounded to 2 decimals.
type MatchRecord struct {
	Symbol    string
	Close     float64
	Fast      float64
	Slow      float64
	GapPct    float64
	Direction Direction
}
