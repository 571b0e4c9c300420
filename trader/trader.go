package trader

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/igtrader/broker"
	"github.com/rustyeddy/igtrader/journal"
	"github.com/rustyeddy/igtrader/ledger"
	"github.com/rustyeddy/igtrader/market"
	"github.com/rustyeddy/igtrader/notify"
	"github.com/rustyeddy/igtrader/signal"
	"github.com/rustyeddy/igtrader/store"
)

// Trader runs the per-cycle analysis pipeline for a single market.
// The same pipeline serves live trading and backtests; only the broker
// and price store behind it differ.
type Trader struct {
	market   market.Market
	strategy Strategy
	broker   broker.Broker
	store    store.PriceStore
	journal  journal.Journal
	notifier notify.Notifier
	bars     BarSource
	log      *zap.Logger

	runID string
	live  bool
	busy  atomic.Bool
}

// BarSource polls the venue for recently closed bars. Live mode uses it
// on every boundary to keep the store current; backtests read bars the
// store already holds and leave it nil.
type BarSource interface {
	GetPrices(ctx context.Context, epic string, res market.Resolution, n int) ([]market.Quote, error)
}

// Options carries the optional collaborators. Zero values are replaced
// with no-op implementations.
type Options struct {
	Journal  journal.Journal
	Notifier notify.Notifier
	Bars     BarSource
	RunID    string
	Live     bool
}

func New(m market.Market, s Strategy, b broker.Broker, ps store.PriceStore, log *zap.Logger, opts Options) (*Trader, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if opts.Journal == nil {
		opts.Journal = journal.NewMemory()
	}
	if opts.RunID == "" {
		opts.RunID = journal.NewRunID()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Trader{
		market:   m,
		strategy: s,
		broker:   b,
		store:    ps,
		journal:  opts.Journal,
		notifier: opts.Notifier,
		bars:     opts.Bars,
		log:      log.With(zap.String("epic", m.Epic), zap.String("run", opts.RunID)),
		runID:    opts.RunID,
		live:     opts.Live,
	}, nil
}

func (t *Trader) RunID() string { return t.runID }

// Analyse executes one pipeline cycle at utm: refresh context, check
// stops, compute the signal, filter by trend, decide, submit. Stops are
// checked on every cycle; signals only on resolution boundaries.
func (t *Trader) Analyse(ctx context.Context, utm time.Time) (*Report, error) {
	r := &Report{Epic: t.market.Epic, UTM: utm, TargetPips: t.strategy.TargetPips}

	// 1. Refresh context. On a live boundary poll the venue's closed
	// bars and roll any collected ticks into a bar of our own; if
	// neither produced the boundary bar the signal step is skipped this
	// cycle.
	boundary := t.strategy.Resolution.IsBoundary(utm)
	barReady := boundary
	if boundary && t.live {
		t.pollBars(ctx)
		if _, err := t.store.AggregateQuote(ctx, t.market.Epic, t.strategy.Resolution, utm); err != nil {
			if !errors.Is(err, store.ErrAggregation) {
				return r, errors.Wrap(err, "aggregate quote")
			}
			barReady = t.hasBar(ctx, utm)
			if !barReady {
				t.log.Warn("boundary bar missing, skipping signal", zap.Time("utm", utm))
			}
		}
	}

	tick, err := t.store.LatestTick(ctx, t.market.Epic, utm)
	if err != nil {
		return r, errors.Wrap(err, "refresh price")
	}
	// Mid-only history has no spread of its own; in backtests widen the
	// tick by the configured assumption so fills pay a realistic cost.
	if !t.live && t.strategy.SpreadPips > 0 && tick.Bid == tick.Ask && t.market.ContractSize > 0 {
		half := t.strategy.SpreadPips / 2 * t.market.LotSize / t.market.ContractSize
		tick.Bid -= half
		tick.Ask += half
	}
	r.Bid, r.Ask, r.Price = tick.Bid, tick.Ask, tick.Mid()

	acct, err := t.broker.RefreshAccount(ctx)
	if err != nil {
		return r, errors.Wrap(err, "refresh account")
	}
	r.Balance = acct.Balance

	pos, err := t.broker.RefreshPosition(ctx, tick)
	if err != nil {
		return r, errors.Wrap(err, "refresh position")
	}

	stopPips := t.stopDistance(ctx, utm, pos)
	r.StopPips = stopPips

	// 2. Stop check, before any signal handling.
	if pos != nil {
		pos.StopPips = stopPips
		pos.TargetPips = t.strategy.TargetPips
		r.Position = summarize(pos)
		if stopped, cause := pos.IsStopped(utm, t.strategy.TradingHours); stopped {
			closed, err := t.broker.Close(ctx, pos, cause)
			if err != nil {
				return r, errors.Wrap(err, "close stopped position")
			}
			t.recordClose(ctx, r, closed)
			pos = nil
			r.Position = nil
			if a, err := t.broker.RefreshAccount(ctx); err == nil {
				acct = a
				r.Balance = a.Balance
			}
		}
	}

	// 3. Signal, boundaries only.
	var sig signal.Signal
	if barReady {
		prices, err := t.store.ClosedPrices(ctx, t.market.Epic, t.strategy.Resolution, utm, t.strategy.SMA+1)
		if err != nil {
			return r, errors.Wrap(err, "load signal prices")
		}
		var meta signal.Meta
		sig, meta = signal.CrossSMA(prices, t.strategy.SMA)
		r.Signal = sig
		r.SMAValue = meta.CurrentSMA
	}

	// 4. Trend filter.
	accepted := sig != signal.None
	if accepted && t.strategy.SMATrend > 0 {
		prices, err := t.store.ClosedPrices(ctx, t.market.Epic, t.strategy.Resolution, utm, t.strategy.SMATrend)
		if err != nil {
			return r, errors.Wrap(err, "load trend prices")
		}
		trend, meta := signal.TrendSMA(prices, t.strategy.SMATrend)
		r.Trend = trend
		r.TrendValue = meta.CurrentSMA
		accepted = trend.Agrees(sig)
	}

	// 5. Decision. A surviving signal opens in its direction; a position
	// on the other side is closed first. New opens respect trading hours.
	var open *ledger.OpenOrder
	closeOnSignal := false
	if accepted && t.strategy.TradingHours.Allows(utm) {
		dir := ledger.Long
		if sig == signal.CrossDown {
			dir = ledger.Short
		}
		if pos != nil && pos.Direction != dir {
			closeOnSignal = true
		}
		if pos == nil || closeOnSignal {
			price := tick.Ask
			if dir == ledger.Short {
				price = tick.Bid
			}
			size := ledger.CalcPositionSize(acct.Balance, price, t.strategy.Risk, stopPips, t.market.LotSize)
			open = &ledger.OpenOrder{
				Epic:         t.market.Epic,
				Direction:    dir,
				Time:         utm,
				Bid:          tick.Bid,
				Ask:          tick.Ask,
				Size:         size,
				StopPips:     stopPips,
				TargetPips:   t.strategy.TargetPips,
				LotSize:      t.market.LotSize,
				ContractSize: t.market.ContractSize,
				Currency:     t.market.Currency,
			}
		}
	}

	// 6. Submission, close before open.
	if closeOnSignal {
		closed, err := t.broker.Close(ctx, pos, ledger.CauseSignal)
		if err != nil {
			return r, errors.Wrap(err, "close on signal")
		}
		t.recordClose(ctx, r, closed)
		r.Position = nil
	}
	if open != nil {
		p, err := t.broker.Open(ctx, *open)
		var sizeErr *ledger.InsufficientSizeError
		switch {
		case errors.As(err, &sizeErr):
			t.log.Warn("open skipped, size below minimum",
				zap.Float64("size", sizeErr.Size), zap.Float64("min", sizeErr.Min))
		case err != nil:
			return r, errors.Wrap(err, "open position")
		default:
			r.Opened = true
			r.Position = summarize(p)
			t.notify(ctx, notify.KindOpen, utm)
		}
	}

	t.logReport(r)
	return r, nil
}

// pollBars upserts the venue's most recent closed bars. Best effort: a
// failed poll leaves whatever the store already holds.
func (t *Trader) pollBars(ctx context.Context) {
	if t.bars == nil {
		return
	}
	quotes, err := t.bars.GetPrices(ctx, t.market.Epic, t.strategy.Resolution, 2)
	if err != nil {
		t.log.Warn("bar poll failed", zap.Error(err))
		return
	}
	for _, q := range quotes {
		if err := t.store.UpsertQuote(ctx, q); err != nil {
			t.log.Error("upsert polled bar", zap.Error(err))
		}
	}
}

// hasBar reports whether the store holds the bar that closes at utm.
func (t *Trader) hasBar(ctx context.Context, utm time.Time) bool {
	quotes, err := t.store.Quotes(ctx, t.market.Epic, t.strategy.Resolution, utm, 1)
	return err == nil && len(quotes) == 1 && quotes[0].Time.Equal(utm)
}

// stopDistance resolves the stop for this cycle: the fixed override if
// set, otherwise ATR-derived. When the ATR cannot be computed an open
// position keeps its last known distance; with no position the distance
// is zero, which sizes new opens to nothing and so skips them.
func (t *Trader) stopDistance(ctx context.Context, utm time.Time, pos *ledger.Position) float64 {
	if t.strategy.StopPips > 0 {
		return t.strategy.StopPips
	}
	quotes, err := t.store.Quotes(ctx, t.market.Epic, t.strategy.Resolution, utm, 2*t.strategy.ATRLookback)
	if err == nil {
		var d float64
		if d, err = signal.StopDistance(quotes, t.strategy.ATRLookback, t.strategy.ATRRatio, t.market); err == nil {
			return d
		}
	}
	t.log.Debug("stop distance unavailable", zap.Error(err))
	if pos != nil && pos.StopPips > 0 {
		return pos.StopPips
	}
	return 0
}

func (t *Trader) recordClose(ctx context.Context, r *Report, closed ledger.ClosedPosition) {
	r.Closed = true
	r.ClosedTrade = &closed
	if err := t.journal.RecordTrade(journal.FromClosed(t.runID, closed)); err != nil {
		t.log.Error("journal trade", zap.Error(err))
	}
	t.notify(ctx, notify.KindClose, closed.CloseTime)
}

func (t *Trader) notify(ctx context.Context, kind notify.EventKind, at time.Time) {
	if t.notifier == nil {
		return
	}
	t.notifier.Notify(ctx, notify.Event{Epic: t.market.Epic, Kind: kind, Time: at})
}
