package collector

import "IchimokuScanner/internal/model"

// Resample merges consecutive bars into groups of n. Groups never span a
// calendar day, so the last group of a session may hold fewer than n bars.
func Resample(bars []model.OHLCV, n int) []model.OHLCV {
	if len(bars) == 0 || n <= 1 {
		return bars
	}
	var out []model.OHLCV
	var cur model.OHLCV
	count := 0

	for _, b := range bars {
		if count > 0 && (count == n || !sameDay(cur, b)) {
			out = append(out, cur)
			count = 0
		}
		if count == 0 {
			cur = b
			count = 1
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
		count++
	}
	if count > 0 {
		out = append(out, cur)
	}
	return out
}

func sameDay(a, b model.OHLCV) bool {
	ay, am, ad := a.Time.Date()
	by, bm, bd := b.Time.Date()
	return ay == by && am == bm && ad == bd
}
