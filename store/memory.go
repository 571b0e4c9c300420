package store

import (
	"context"
	"sort"
	"time"

	"github.com/rustyeddy/igtrader/market"
)

// Memory is an in-process PriceStore for tests and synthetic backtests.
// Quotes are kept sorted by time per (epic, resolution).
type Memory struct {
	quotes  map[string][]market.Quote
	ticks   map[string][]market.Tick
	markets map[string]market.Market
}

var _ PriceStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		quotes:  make(map[string][]market.Quote),
		ticks:   make(map[string][]market.Tick),
		markets: make(map[string]market.Market),
	}
}

func quoteKey(epic string, res market.Resolution) string {
	return epic + "|" + res.String()
}

func (m *Memory) SaveMarket(ctx context.Context, mkt market.Market) error {
	m.markets[mkt.Epic] = mkt
	return nil
}

func (m *Memory) InsertTick(ctx context.Context, t market.Tick) error {
	ts := append(m.ticks[t.Epic], t)
	sort.Slice(ts, func(i, j int) bool { return ts[i].Time.Before(ts[j].Time) })
	m.ticks[t.Epic] = ts
	return nil
}

func (m *Memory) UpsertQuote(ctx context.Context, q market.Quote) error {
	key := quoteKey(q.Epic, q.Resolution)
	qs := m.quotes[key]
	for i := range qs {
		if qs[i].Time.Equal(q.Time) {
			qs[i] = q
			return nil
		}
	}
	qs = append(qs, q)
	sort.Slice(qs, func(i, j int) bool { return qs[i].Time.Before(qs[j].Time) })
	m.quotes[key] = qs
	return nil
}

func (m *Memory) Quotes(ctx context.Context, epic string, res market.Resolution, before time.Time, n int) ([]market.Quote, error) {
	qs := m.quotes[quoteKey(epic, res)]

	var window []market.Quote
	for _, q := range qs {
		if !q.Time.After(before) {
			window = append(window, q)
		}
	}
	if len(window) == 0 {
		return nil, ErrDataUnavailable
	}
	if len(window) > n {
		window = window[len(window)-n:]
	}
	out := make([]market.Quote, len(window))
	copy(out, window)
	return out, nil
}

func (m *Memory) ClosedPrices(ctx context.Context, epic string, res market.Resolution, before time.Time, n int) ([]float64, error) {
	quotes, err := m.Quotes(ctx, epic, res, before, n)
	if err != nil {
		return nil, err
	}
	prices := make([]float64, len(quotes))
	for i, q := range quotes {
		prices[i] = q.MidClose()
	}
	return prices, nil
}

func (m *Memory) LatestTick(ctx context.Context, epic string, at time.Time) (market.Tick, error) {
	var (
		best  market.Tick
		found bool
	)
	for _, t := range m.ticks[epic] {
		if t.Time.After(at) {
			break
		}
		best, found = t, true
	}
	if found {
		return best, nil
	}

	// Fall back to quote closes, any resolution. Keys are walked in
	// sorted order so equal timestamps resolve the same way every run.
	keys := make([]string, 0, len(m.quotes))
	for key := range m.quotes {
		if len(key) < len(epic) || key[:len(epic)] != epic {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, q := range m.quotes[key] {
			if q.Time.After(at) {
				continue
			}
			if !found || q.Time.After(best.Time) {
				best = market.Tick{Epic: epic, Time: q.Time, Bid: q.BidClose, Ask: q.AskClose}
				found = true
			}
		}
	}
	if !found {
		return market.Tick{}, ErrDataUnavailable
	}
	return best, nil
}

func (m *Memory) AggregateQuote(ctx context.Context, epic string, res market.Resolution, boundary time.Time) (market.Quote, error) {
	from := boundary.Add(-res.Step())

	q := market.Quote{Epic: epic, Resolution: res, Time: boundary.UTC()}
	for _, t := range m.ticks[epic] {
		if !t.Time.After(from) || t.Time.After(boundary) {
			continue
		}
		if q.Volume == 0 {
			q.BidOpen, q.AskOpen = t.Bid, t.Ask
			q.BidHigh, q.AskHigh = t.Bid, t.Ask
			q.BidLow, q.AskLow = t.Bid, t.Ask
		}
		if t.Bid > q.BidHigh {
			q.BidHigh, q.AskHigh = t.Bid, t.Ask
		}
		if t.Bid < q.BidLow {
			q.BidLow, q.AskLow = t.Bid, t.Ask
		}
		q.BidClose, q.AskClose = t.Bid, t.Ask
		q.Volume++
	}
	if q.Volume == 0 {
		return market.Quote{}, ErrAggregation
	}
	if err := m.UpsertQuote(ctx, q); err != nil {
		return market.Quote{}, err
	}
	return q, nil
}

// SeedMidCloses loads a synthetic quote series from mid close prices, one
// quote per resolution step ending at last, applying a flat spread in
// pips. Intended for tests and strategy experiments.
func (m *Memory) SeedMidCloses(epic string, res market.Resolution, last time.Time, mids []float64, spreadPips float64, mkt market.Market) {
	half := 0.0
	if mkt.ContractSize > 0 {
		half = spreadPips / 2 * mkt.LotSize / mkt.ContractSize
	}
	step := res.Step()
	start := last.Add(-time.Duration(len(mids)-1) * step)
	for i, mid := range mids {
		at := start.Add(time.Duration(i) * step)
		bid := mid - half
		ask := mid + half
		_ = m.UpsertQuote(context.Background(), market.Quote{
			Epic:       epic,
			Resolution: res,
			Time:       at,
			BidOpen:    bid, BidHigh: bid, BidLow: bid, BidClose: bid,
			AskOpen: ask, AskHigh: ask, AskLow: ask, AskClose: ask,
			Volume: 1,
		})
	}
}
