// Package broker defines the capability port the strategy engine trades
// through. Two implementations exist: the in-process simulator (package
// sim) used by backtests, and the IG REST adapter (package ig) used live.
// The engine treats both identically.
package broker

import (
	"context"
	"fmt"

	"github.com/rustyeddy/igtrader/ledger"
	"github.com/rustyeddy/igtrader/market"
)

// Broker is the port between the strategy engine and a trading venue.
// Every method is a suspension point: live implementations may block on
// network I/O, simulated ones resolve in-process.
type Broker interface {
	// RefreshAccount returns the current balance and realized PnL.
	RefreshAccount(ctx context.Context) (ledger.Account, error)

	// RefreshPosition returns the open position repriced to the tick, or
	// nil when the market is flat.
	RefreshPosition(ctx context.Context, tick market.Tick) (*ledger.Position, error)

	// Open submits a market order and returns the created position.
	Open(ctx context.Context, order ledger.OpenOrder) (*ledger.Position, error)

	// Close closes the position and returns the realized trade record.
	Close(ctx context.Context, pos *ledger.Position, cause ledger.ExitCause) (ledger.ClosedPosition, error)
}

// RejectedError means the venue refused an order. The cycle aborts and
// position state is reconciled on the next cycle's refresh; it is never
// assumed.
type RejectedError struct {
	Op     string
	Status int
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("broker: %s rejected (status %d): %s", e.Op, e.Status, e.Reason)
}
