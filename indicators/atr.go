package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/igtrader/market"
)

// ATR calculates the Average True Range over the quotes' mid prices using
// Wilder's smoothing. Needs at least period+1 quotes because the true
// range of a bar references the previous close.
func ATR(quotes []market.Quote, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("atr: period must be positive, got %d", period)
	}
	if len(quotes) < period+1 {
		return 0, fmt.Errorf("atr: not enough quotes: need %d, got %d", period+1, len(quotes))
	}

	trueRanges := make([]float64, 0, len(quotes)-1)
	for i := 1; i < len(quotes); i++ {
		trueRanges = append(trueRanges, trueRange(quotes[i], quotes[i-1]))
	}

	// Initial ATR is the plain average of the first period true ranges.
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += trueRanges[i]
	}
	atr := sum / float64(period)

	// Wilder's smoothing over the remainder.
	for i := period; i < len(trueRanges); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}

	return atr, nil
}

func trueRange(current, previous market.Quote) float64 {
	highLow := current.MidHigh() - current.MidLow()
	highClose := math.Abs(current.MidHigh() - previous.MidClose())
	lowClose := math.Abs(current.MidLow() - previous.MidClose())

	return math.Max(highLow, math.Max(highClose, lowClose))
}
