package backtest

import "github.com/rustyeddy/igtrader/ledger"

// ExpectancyReport summarizes a trade list in pips. Expectancy is the
// classic per-unit-risked figure: (1 + avgWin/avgLoss) * winRate - 1.
// When no trade lost, the ratio is undefined and Expectancy falls back
// to the mean pips per trade.
type ExpectancyReport struct {
	Trades int
	Wins   int
	Losses int

	WinRate   float64
	AvgWin    float64 // pips, winners only
	AvgLoss   float64 // pips, magnitude, losers only
	TotalPips float64
	TotalCcy  float64

	Expectancy float64
}

func Expectancy(trades []ledger.ClosedPosition) ExpectancyReport {
	r := ExpectancyReport{Trades: len(trades)}
	if len(trades) == 0 {
		return r
	}

	var winPips, lossPips float64
	for _, t := range trades {
		r.TotalPips += t.Profit
		r.TotalCcy += t.ProfitCcy
		if t.Profit > 0 {
			r.Wins++
			winPips += t.Profit
		} else {
			r.Losses++
			lossPips += -t.Profit
		}
	}

	r.WinRate = float64(r.Wins) / float64(r.Trades)
	if r.Wins > 0 {
		r.AvgWin = winPips / float64(r.Wins)
	}
	if r.Losses > 0 {
		r.AvgLoss = lossPips / float64(r.Losses)
	}

	if r.AvgLoss > 0 {
		r.Expectancy = (1+r.AvgWin/r.AvgLoss)*r.WinRate - 1
	} else {
		r.Expectancy = r.TotalPips / float64(r.Trades)
	}
	return r
}
