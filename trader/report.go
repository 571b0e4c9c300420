package trader

import (
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/igtrader/ledger"
	"github.com/rustyeddy/igtrader/signal"
)

// Report is the observable outcome of one analysis cycle.
type Report struct {
	Epic string
	UTM  time.Time

	Bid, Ask, Price float64
	Balance         float64

	StopPips   float64
	TargetPips float64

	Signal     signal.Signal
	SMAValue   float64
	Trend      signal.Trend
	TrendValue float64

	Position    *PositionSummary
	Opened      bool
	Closed      bool
	ClosedTrade *ledger.ClosedPosition
}

// PositionSummary is the report's view of the open position after the
// cycle's repricing.
type PositionSummary struct {
	DealID    string
	Direction ledger.Direction
	Size      float64
	OpenPrice float64
	Profit    float64
}

func summarize(p *ledger.Position) *PositionSummary {
	if p == nil {
		return nil
	}
	return &PositionSummary{
		DealID:    p.DealID,
		Direction: p.Direction,
		Size:      p.Size,
		OpenPrice: p.OpenPrice,
		Profit:    p.Profit,
	}
}

// logReport emits the cycle summary. Live cycles and top-of-hour
// backtest cycles log at info, the rest at debug to keep long backtests
// readable.
func (t *Trader) logReport(r *Report) {
	fields := []zap.Field{
		zap.Time("utm", r.UTM),
		zap.Float64("price", r.Price),
		zap.Float64("balance", r.Balance),
		zap.Stringer("signal", r.Signal),
	}
	if r.Position != nil {
		fields = append(fields,
			zap.Stringer("dir", r.Position.Direction),
			zap.Float64("profit", r.Position.Profit))
	}
	if r.Closed && r.ClosedTrade != nil {
		fields = append(fields,
			zap.String("closed", string(r.ClosedTrade.Cause)),
			zap.Float64("pips", r.ClosedTrade.Profit))
	}
	if t.live || r.UTM.Minute() == 0 {
		t.log.Info("cycle", fields...)
		return
	}
	t.log.Debug("cycle", fields...)
}
