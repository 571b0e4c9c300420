package ledger

import "time"

// ExitCause records which rule closed a position.
type ExitCause string

const (
	CauseSignal  ExitCause = "SIGNAL"  // reversal signal against the position
	CauseStop    ExitCause = "STOP"    // stop distance hit
	CauseTarget  ExitCause = "TARGET"  // target distance hit
	CauseSession ExitCause = "SESSION" // forced exit at session end
	CauseEnd     ExitCause = "END"     // end of backtest interval
)

// OpenOrder is a market order to open a position, priced at the tick the
// decision was made on.
type OpenOrder struct {
	Epic      string
	Direction Direction
	Time      time.Time
	Bid       float64
	Ask       float64
	Size      float64

	StopPips   float64
	TargetPips float64

	LotSize      float64
	ContractSize float64
	Currency     string
}

// ClosedPosition is the immutable trade record taken when a position
// closes. Appended to the trade ledger, never mutated.
type ClosedPosition struct {
	DealID    string
	Epic      string
	Direction Direction
	Size      float64

	OpenTime   time.Time
	OpenPrice  float64
	CloseTime  time.Time
	ClosePrice float64

	Profit    float64 // pips
	ProfitCcy float64 // account currency
	MaxProfit float64
	MinProfit float64

	Cause ExitCause
}
