// Package sim is the simulated broker: the broker port implemented purely
// against the in-process ledger, with no I/O and no failure path beyond
// the ledger's own invariants. Backtests run on it; its decisions are
// deterministic by construction.
package sim

import (
	"context"

	"github.com/rustyeddy/igtrader/broker"
	"github.com/rustyeddy/igtrader/ledger"
	"github.com/rustyeddy/igtrader/market"
)

type Broker struct {
	ledger *ledger.Ledger

	// lastTick is the snapshot from the most recent RefreshPosition call;
	// opens and closes within the cycle fill against it.
	lastTick market.Tick
}

var _ broker.Broker = (*Broker)(nil)

func New(l *ledger.Ledger) *Broker {
	return &Broker{ledger: l}
}

// Ledger exposes the backing ledger so the backtest driver can read the
// accumulated trade history after a run.
func (b *Broker) Ledger() *ledger.Ledger { return b.ledger }

func (b *Broker) RefreshAccount(ctx context.Context) (ledger.Account, error) {
	return b.ledger.Account, nil
}

func (b *Broker) RefreshPosition(ctx context.Context, tick market.Tick) (*ledger.Position, error) {
	b.lastTick = tick
	p := b.ledger.Position
	if p == nil {
		return nil, nil
	}
	p.Reprice(tick.Bid, tick.Ask, tick.Time)
	return p, nil
}

func (b *Broker) Open(ctx context.Context, order ledger.OpenOrder) (*ledger.Position, error) {
	return b.ledger.Open(order)
}

func (b *Broker) Close(ctx context.Context, pos *ledger.Position, cause ledger.ExitCause) (ledger.ClosedPosition, error) {
	at := b.lastTick.Time
	if at.IsZero() {
		at = pos.CurrentTime
	}
	return b.ledger.Close(b.lastTick.Bid, b.lastTick.Ask, at, cause)
}
