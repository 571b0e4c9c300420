package ledger

import (
	"fmt"
	"math"
	"time"
)

// InsufficientSizeError means the computed order size rounded below the
// venue minimum; the open step is skipped and the cycle continues.
type InsufficientSizeError struct {
	Size float64
	Min  float64
}

func (e *InsufficientSizeError) Error() string {
	return fmt.Sprintf("ledger: order size %.2f below minimum deal size %.2f", e.Size, e.Min)
}

// CalcPositionSize sizes an order from the risk fraction of balance:
// floor(|balance * risk * price / stopPips| / lotSize).
func CalcPositionSize(balance, price, risk, stopPips, lotSize float64) float64 {
	if stopPips == 0 || lotSize == 0 {
		return 0
	}
	return math.Floor(math.Abs(balance*risk*price/stopPips) / lotSize)
}

// Ledger owns one account, at most one open position, and the trade
// history for one market. Not safe for concurrent use; each engine
// instance drives its own ledger sequentially.
type Ledger struct {
	Account     Account
	Position    *Position
	Trades      []ClosedPosition
	MinDealSize float64

	nextDeal int
}

func New(acct Account, minDealSize float64) *Ledger {
	return &Ledger{Account: acct, MinDealSize: minDealSize}
}

// Open creates the position from an order. Fails with
// InsufficientSizeError when the size is below the venue minimum, and
// refuses to open while a position exists.
func (l *Ledger) Open(order OpenOrder) (*Position, error) {
	if l.Position != nil {
		return nil, fmt.Errorf("ledger: position already open for %s", l.Position.Epic)
	}
	min := l.MinDealSize
	if min < 1 {
		min = 1
	}
	if order.Size < min {
		return nil, &InsufficientSizeError{Size: order.Size, Min: min}
	}

	openPrice := order.Ask
	currentPrice := order.Bid
	if order.Direction == Short {
		openPrice = order.Bid
		currentPrice = order.Ask
	}

	l.nextDeal++
	p := &Position{
		DealID:       fmt.Sprintf("SIM-%06d", l.nextDeal),
		Epic:         order.Epic,
		Direction:    order.Direction,
		Size:         order.Size,
		OpenTime:     order.Time,
		OpenPrice:    openPrice,
		CurrentTime:  order.Time,
		CurrentPrice: currentPrice,
		StopPips:     order.StopPips,
		TargetPips:   order.TargetPips,
		LotSize:      order.LotSize,
		ContractSize: order.ContractSize,
	}
	l.Position = p
	return p, nil
}

// Close realizes the open position at the given tick and appends the
// trade record. Exactly-once: closing with no open position is a
// programming error, which is the guard against a stop and a reversal
// both firing in one cycle.
func (l *Ledger) Close(bid, ask float64, at time.Time, cause ExitCause) (ClosedPosition, error) {
	p := l.Position
	if p == nil {
		return ClosedPosition{}, fmt.Errorf("ledger: no open position to close")
	}

	p.Reprice(bid, ask, at)

	closed := ClosedPosition{
		DealID:     p.DealID,
		Epic:       p.Epic,
		Direction:  p.Direction,
		Size:       p.Size,
		OpenTime:   p.OpenTime,
		OpenPrice:  p.OpenPrice,
		CloseTime:  at,
		ClosePrice: p.CurrentPrice,
		Profit:     p.Profit,
		ProfitCcy:  p.ProfitCcy,
		MaxProfit:  p.MaxProfit,
		MinProfit:  p.MinProfit,
		Cause:      cause,
	}

	l.Account.Balance += closed.ProfitCcy
	l.Account.Realized += closed.ProfitCcy
	l.Trades = append(l.Trades, closed)
	l.Position = nil

	return closed, nil
}
