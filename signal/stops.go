package signal

import (
	"math"

	"github.com/rustyeddy/igtrader/indicators"
	"github.com/rustyeddy/igtrader/market"
)

// StopDistance resolves the stop-loss distance in pips from recent
// volatility: ATR over lookback bars, scaled by ratio, converted to pips
// with the market's contract and lot sizes. Callers pass roughly
// 2*lookback quotes so Wilder's smoothing has history to settle on.
func StopDistance(quotes []market.Quote, lookback int, ratio float64, m market.Market) (float64, error) {
	atr, err := indicators.ATR(quotes, lookback)
	if err != nil {
		return 0, err
	}
	pips := atr * ratio * m.ContractSize / m.LotSize
	return round1(pips), nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
