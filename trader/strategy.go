package trader

import (
	"fmt"

	"github.com/rustyeddy/igtrader/market"
)

// Strategy holds the tunable parameters of the SMA-cross strategy. One
// value is shared by live trading and backtests so both modes make
// identical decisions.
type Strategy struct {
	// Resolution is the bar sampling period; signals are only computed on
	// its boundaries.
	Resolution market.Resolution

	// SMA is the crossing window. SMATrend, when > 0, enables the longer
	// trend filter a cross must agree with.
	SMA      int
	SMATrend int

	// Risk is the fraction of balance put at risk per trade.
	Risk float64

	// StopPips > 0 fixes the stop distance. At zero the distance is
	// derived per cycle from ATR(ATRLookback) * ATRRatio.
	StopPips    float64
	ATRLookback int
	ATRRatio    float64

	// TargetPips is the take-profit distance; zero disables the target.
	TargetPips float64

	// SpreadPips is the backtest spread assumption, applied when the
	// stored history carries no real bid/ask spread. Ignored live.
	SpreadPips float64

	// TradingHours gates new opens and forces session-end exits. Empty
	// means no restriction.
	TradingHours market.Windows
}

func (s Strategy) Validate() error {
	if s.Resolution.N <= 0 {
		return fmt.Errorf("strategy: resolution not set")
	}
	if s.SMA < 2 {
		return fmt.Errorf("strategy: sma window must be at least 2, got %d", s.SMA)
	}
	if s.Risk <= 0 || s.Risk > 1 {
		return fmt.Errorf("strategy: risk must be in (0, 1], got %g", s.Risk)
	}
	if s.StopPips <= 0 && (s.ATRLookback <= 0 || s.ATRRatio <= 0) {
		return fmt.Errorf("strategy: need either stop_pips or atr lookback+ratio")
	}
	return nil
}
