// Package ledger is the in-memory account and position model: one cash
// balance and at most one open position per market. Profit is tracked in
// pips on the position and realized into the account only at close.
package ledger

import (
	"math"
	"time"

	"github.com/rustyeddy/igtrader/market"
)

// Direction of a position or order.
type Direction int

const (
	Long Direction = iota + 1
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "SELL"
	}
	return "BUY"
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// Position is the single open position for a market. Created by Open,
// repriced every cycle while held, replaced by a ClosedPosition at close.
type Position struct {
	DealID    string
	Epic      string
	Direction Direction
	Size      float64

	OpenTime  time.Time
	OpenPrice float64

	CurrentTime  time.Time
	CurrentPrice float64

	// Profit is in pips, ProfitCcy in the account currency. Both are
	// recomputed on every Reprice before any stop/target check runs.
	Profit    float64
	ProfitCcy float64

	// Excursions: best and worst pip profit seen while the position was
	// held, for post-trade analysis.
	MaxProfit float64
	MinProfit float64

	// Stop and target distances in pips. StopPips is re-resolved each
	// cycle when the strategy derives it from ATR.
	StopPips   float64
	TargetPips float64

	LotSize      float64
	ContractSize float64
}

// Reprice marks the position to the given tick: longs value at bid,
// shorts at ask. Profit and the excursion extremes are recomputed here and
// nowhere else.
func (p *Position) Reprice(bid, ask float64, at time.Time) {
	if p.Direction == Long {
		p.CurrentPrice = bid
	} else {
		p.CurrentPrice = ask
	}
	p.CurrentTime = at

	p.Profit = PipProfit(p.Direction, p.OpenPrice, p.CurrentPrice, p.ContractSize, p.LotSize)
	p.ProfitCcy = p.Profit / p.CurrentPrice * p.Size * p.LotSize

	if p.MaxProfit == 0 || p.Profit > p.MaxProfit {
		p.MaxProfit = p.Profit
	}
	if p.MinProfit == 0 || p.Profit < p.MinProfit {
		p.MinProfit = p.Profit
	}
}

// IsStopped reports whether the position must be closed this cycle: the
// pip profit fell to the stop distance, reached the target distance, or
// the cycle time left the permitted trading windows (session exit).
// Pure: calling it twice on an unchanged position gives the same answer.
func (p *Position) IsStopped(now time.Time, windows market.Windows) (bool, ExitCause) {
	switch {
	case p.StopPips > 0 && p.Profit <= -p.StopPips:
		return true, CauseStop
	case p.TargetPips > 0 && p.Profit >= p.TargetPips:
		return true, CauseTarget
	case !windows.Allows(now):
		return true, CauseSession
	}
	return false, ""
}

// PipProfit converts a price move into pips for the given market scale,
// sign-flipped for shorts. Rounded to a tenth of a pip, matching venue
// reporting.
func PipProfit(d Direction, openPrice, currentPrice, contractSize, lotSize float64) float64 {
	pips := (currentPrice - openPrice) * contractSize / lotSize
	if d == Short {
		pips = -pips
	}
	return math.Round(pips*10) / 10
}
