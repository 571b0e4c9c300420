package market

import "time"

// IsOpen reports whether the FX market trades at t. The weekend gap runs
// from Friday 21:00 UTC through Sunday 21:00 UTC: closed when Friday after
// 20h, all of Saturday, or Sunday up to and including 20h.
func IsOpen(t time.Time) bool {
	t = t.UTC()
	day := t.Weekday()
	hour := t.Hour()
	if day == time.Friday && hour > 20 {
		return false
	}
	if day == time.Saturday {
		return false
	}
	if day == time.Sunday && hour <= 20 {
		return false
	}
	return true
}

// TradingWindow is one permitted trading interval: the listed weekdays,
// from Start hour (inclusive) to End hour (exclusive), UTC.
type TradingWindow struct {
	Days  []time.Weekday
	Start int
	End   int
}

func (w TradingWindow) allows(t time.Time) bool {
	t = t.UTC()
	h := t.Hour()
	if h < w.Start || h >= w.End {
		return false
	}
	if len(w.Days) == 0 {
		return true
	}
	for _, d := range w.Days {
		if t.Weekday() == d {
			return true
		}
	}
	return false
}

// Windows is the strategy's set of permitted trading-hour windows.
// An empty set allows trading at any time the market is open.
type Windows []TradingWindow

func (ws Windows) Allows(t time.Time) bool {
	if len(ws) == 0 {
		return true
	}
	for _, w := range ws {
		if w.allows(t) {
			return true
		}
	}
	return false
}
