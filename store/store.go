// Package store is the price/bar store: aggregated quotes and tick
// snapshots keyed by epic and resolution. The engine only consumes closed
// bars and upserts the ones it aggregates; it never writes raw venue
// ticks.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/igtrader/market"
)

// ErrDataUnavailable means no price or quote exists for a required
// window. The current cycle aborts; the next tick retries from a fresh
// read.
var ErrDataUnavailable = errors.New("store: no price data for requested window")

// ErrAggregation means no quote could be built from the window's ticks.
// The cycle skips signal computation but the stop check still runs.
var ErrAggregation = errors.New("store: no ticks to aggregate into a quote")

// PriceStore serves the engine's read path and the live aggregation
// write path.
type PriceStore interface {
	// ClosedPrices returns the mid close of the last n quotes at or
	// before the given time, ordered oldest to newest.
	ClosedPrices(ctx context.Context, epic string, res market.Resolution, before time.Time, n int) ([]float64, error)

	// Quotes returns the last n quotes at or before the given time,
	// oldest to newest.
	Quotes(ctx context.Context, epic string, res market.Resolution, before time.Time, n int) ([]market.Quote, error)

	// LatestTick returns the freshest known bid/ask at or before the
	// given instant, falling back to quote closes when no raw tick is
	// stored.
	LatestTick(ctx context.Context, epic string, at time.Time) (market.Tick, error)

	// UpsertQuote inserts or replaces the quote for its (epic,
	// resolution, time) key.
	UpsertQuote(ctx context.Context, q market.Quote) error

	// AggregateQuote builds the quote closing at boundary from the ticks
	// inside its window, upserts it, and returns it.
	AggregateQuote(ctx context.Context, epic string, res market.Resolution, boundary time.Time) (market.Quote, error)

	// SaveMarket persists instrument metadata refreshed at engine start.
	SaveMarket(ctx context.Context, m market.Market) error

	// InsertTick records a raw tick (live price polling).
	InsertTick(ctx context.Context, t market.Tick) error
}
