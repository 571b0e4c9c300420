// Package backtest replays the analysis pipeline over stored history,
// one cycle per resolution step, against the simulated broker.
package backtest

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/igtrader/journal"
	"github.com/rustyeddy/igtrader/ledger"
	"github.com/rustyeddy/igtrader/market"
	"github.com/rustyeddy/igtrader/sim"
	"github.com/rustyeddy/igtrader/trader"
)

// closedMarketJump is how far the clock advances when it lands in the
// weekend gap. Two days clears the gap from any point inside it.
const closedMarketJump = 48 * time.Hour

// Driver steps a trader through a historical interval. The interval
// clock is the only time source, so two runs over the same data produce
// identical ledgers.
type Driver struct {
	trader  *trader.Trader
	broker  *sim.Broker
	res     market.Resolution
	journal journal.Journal
	log     *zap.Logger
}

func New(t *trader.Trader, b *sim.Broker, res market.Resolution, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{trader: t, broker: b, res: res, log: log}
}

// WithJournal also records the end-of-run close, which happens outside
// the pipeline.
func (d *Driver) WithJournal(j journal.Journal) *Driver {
	d.journal = j
	return d
}

// Result is the outcome of a run. On a cycle error it still carries the
// ledger state reached so far.
type Result struct {
	RunID      string
	Start, End time.Time
	Cycles     int
	Skipped    int

	Account    ledger.Account
	Trades     []ledger.ClosedPosition
	Expectancy ExpectancyReport
}

// Run replays [start, end) on resolution boundaries. Steps that land in
// the weekend gap advance the clock two days instead of analysing. A
// position still open when the interval ends is closed at the last
// known price.
func (d *Driver) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	utm := d.res.Truncate(start.UTC())
	end = end.UTC()
	res := &Result{RunID: d.trader.RunID(), Start: utm, End: end}
	step := d.res.Step()

	d.log.Info("backtest starting",
		zap.String("run", res.RunID),
		zap.Time("start", utm), zap.Time("end", end),
		zap.String("resolution", d.res.String()))

	for utm.Before(end) {
		if err := ctx.Err(); err != nil {
			return d.finish(res), err
		}
		if !market.IsOpen(utm) {
			res.Skipped++
			utm = utm.Add(closedMarketJump)
			continue
		}
		if _, err := d.trader.Analyse(ctx, utm); err != nil {
			return d.finish(res), errors.Wrapf(err, "backtest cycle at %s", utm)
		}
		res.Cycles++
		utm = utm.Add(step)
	}

	if err := d.closeOut(ctx); err != nil {
		return d.finish(res), err
	}
	out := d.finish(res)
	d.log.Info("backtest finished",
		zap.Int("cycles", out.Cycles),
		zap.Int("trades", len(out.Trades)),
		zap.Float64("balance", out.Account.Balance),
		zap.Float64("expectancy", out.Expectancy.Expectancy))
	return out, nil
}

// closeOut closes any position left open at the end of the interval so
// every run's ledger is fully realized.
func (d *Driver) closeOut(ctx context.Context) error {
	led := d.broker.Ledger()
	if led.Position == nil {
		return nil
	}
	closed, err := d.broker.Close(ctx, led.Position, ledger.CauseEnd)
	if err != nil {
		return errors.Wrap(err, "close at end of interval")
	}
	if d.journal != nil {
		if err := d.journal.RecordTrade(journal.FromClosed(d.trader.RunID(), closed)); err != nil {
			d.log.Error("journal end-of-run trade", zap.Error(err))
		}
	}
	return nil
}

func (d *Driver) finish(res *Result) *Result {
	led := d.broker.Ledger()
	res.Account = led.Account
	res.Trades = led.Trades
	res.Expectancy = Expectancy(led.Trades)
	return res
}
