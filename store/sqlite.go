package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/rustyeddy/igtrader/market"
)

const schema = `
CREATE TABLE IF NOT EXISTS markets (
    epic          TEXT PRIMARY KEY,
    name          TEXT,
    lot_size      REAL NOT NULL,
    contract_size REAL NOT NULL,
    currency      TEXT NOT NULL,
    min_deal_size REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS ticks (
    epic TEXT    NOT NULL,
    utm  INTEGER NOT NULL,
    bid  REAL    NOT NULL,
    ask  REAL    NOT NULL,
    PRIMARY KEY (epic, utm)
);

CREATE TABLE IF NOT EXISTS quotes (
    epic       TEXT    NOT NULL,
    resolution TEXT    NOT NULL,
    utm        INTEGER NOT NULL,
    bid_open   REAL NOT NULL,
    bid_high   REAL NOT NULL,
    bid_low    REAL NOT NULL,
    bid_close  REAL NOT NULL,
    ask_open   REAL NOT NULL,
    ask_high   REAL NOT NULL,
    ask_low    REAL NOT NULL,
    ask_close  REAL NOT NULL,
    volume     INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (epic, resolution, utm)
);
`

// SQLite is the on-disk PriceStore, one database per deployment.
type SQLite struct {
	db *sql.DB
}

var _ PriceStore = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open price store")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create price store schema")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) SaveMarket(ctx context.Context, m market.Market) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO markets (epic, name, lot_size, contract_size, currency, min_deal_size)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(epic) DO UPDATE SET
			name = excluded.name,
			lot_size = excluded.lot_size,
			contract_size = excluded.contract_size,
			currency = excluded.currency,
			min_deal_size = excluded.min_deal_size`,
		m.Epic, m.Name, m.LotSize, m.ContractSize, m.Currency, m.MinDealSize,
	)
	return errors.Wrap(err, "save market")
}

// Market loads persisted instrument metadata, for offline backtests
// against a previously refreshed market.
func (s *SQLite) Market(ctx context.Context, epic string) (market.Market, error) {
	var m market.Market
	err := s.db.QueryRowContext(ctx, `
		SELECT epic, name, lot_size, contract_size, currency, min_deal_size
		FROM markets WHERE epic = ?`, epic,
	).Scan(&m.Epic, &m.Name, &m.LotSize, &m.ContractSize, &m.Currency, &m.MinDealSize)
	if err == sql.ErrNoRows {
		return market.Market{}, ErrDataUnavailable
	}
	return m, errors.Wrap(err, "load market")
}

func (s *SQLite) InsertTick(ctx context.Context, t market.Tick) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ticks (epic, utm, bid, ask) VALUES (?, ?, ?, ?)`,
		t.Epic, t.Time.UTC().Unix(), t.Bid, t.Ask,
	)
	return errors.Wrap(err, "insert tick")
}

func (s *SQLite) UpsertQuote(ctx context.Context, q market.Quote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO quotes
		(epic, resolution, utm,
		 bid_open, bid_high, bid_low, bid_close,
		 ask_open, ask_high, ask_low, ask_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Epic, q.Resolution.String(), q.Time.UTC().Unix(),
		q.BidOpen, q.BidHigh, q.BidLow, q.BidClose,
		q.AskOpen, q.AskHigh, q.AskLow, q.AskClose, q.Volume,
	)
	return errors.Wrap(err, "upsert quote")
}

func (s *SQLite) Quotes(ctx context.Context, epic string, res market.Resolution, before time.Time, n int) ([]market.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT utm,
		       bid_open, bid_high, bid_low, bid_close,
		       ask_open, ask_high, ask_low, ask_close, volume
		FROM quotes
		WHERE epic = ? AND resolution = ? AND utm <= ?
		ORDER BY utm DESC LIMIT ?`,
		epic, res.String(), before.UTC().Unix(), n,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query quotes")
	}
	defer rows.Close()

	var quotes []market.Quote
	for rows.Next() {
		var utm int64
		q := market.Quote{Epic: epic, Resolution: res}
		if err := rows.Scan(&utm,
			&q.BidOpen, &q.BidHigh, &q.BidLow, &q.BidClose,
			&q.AskOpen, &q.AskHigh, &q.AskLow, &q.AskClose, &q.Volume,
		); err != nil {
			return nil, errors.Wrap(err, "scan quote")
		}
		q.Time = time.Unix(utm, 0).UTC()
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "quotes rows")
	}
	if len(quotes) == 0 {
		return nil, ErrDataUnavailable
	}

	// Newest first out of the query; callers want oldest to newest.
	reverse(quotes)
	return quotes, nil
}

func (s *SQLite) ClosedPrices(ctx context.Context, epic string, res market.Resolution, before time.Time, n int) ([]float64, error) {
	quotes, err := s.Quotes(ctx, epic, res, before, n)
	if err != nil {
		return nil, err
	}
	prices := make([]float64, len(quotes))
	for i, q := range quotes {
		prices[i] = q.MidClose()
	}
	return prices, nil
}

// LatestTick prefers a raw tick at or before the instant, and falls back
// to the close of the freshest quote at any resolution, the way the
// original context update falls back from ticks to minute bars.
func (s *SQLite) LatestTick(ctx context.Context, epic string, at time.Time) (market.Tick, error) {
	var (
		utm      int64
		bid, ask float64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT utm, bid, ask FROM ticks
		WHERE epic = ? AND utm <= ?
		ORDER BY utm DESC LIMIT 1`,
		epic, at.UTC().Unix(),
	).Scan(&utm, &bid, &ask)
	if err == nil {
		return market.Tick{Epic: epic, Time: time.Unix(utm, 0).UTC(), Bid: bid, Ask: ask}, nil
	}
	if err != sql.ErrNoRows {
		return market.Tick{}, errors.Wrap(err, "query tick")
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT utm, bid_close, ask_close FROM quotes
		WHERE epic = ? AND utm <= ?
		ORDER BY utm DESC LIMIT 1`,
		epic, at.UTC().Unix(),
	).Scan(&utm, &bid, &ask)
	if err == sql.ErrNoRows {
		return market.Tick{}, ErrDataUnavailable
	}
	if err != nil {
		return market.Tick{}, errors.Wrap(err, "query quote fallback")
	}
	return market.Tick{Epic: epic, Time: time.Unix(utm, 0).UTC(), Bid: bid, Ask: ask}, nil
}

// AggregateQuote builds the bar that closes at boundary from the ticks in
// (boundary-step, boundary], upserts it, and returns it.
func (s *SQLite) AggregateQuote(ctx context.Context, epic string, res market.Resolution, boundary time.Time) (market.Quote, error) {
	from := boundary.Add(-res.Step())

	rows, err := s.db.QueryContext(ctx, `
		SELECT bid, ask FROM ticks
		WHERE epic = ? AND utm > ? AND utm <= ?
		ORDER BY utm ASC`,
		epic, from.UTC().Unix(), boundary.UTC().Unix(),
	)
	if err != nil {
		return market.Quote{}, errors.Wrap(err, "query ticks for aggregation")
	}
	defer rows.Close()

	q := market.Quote{Epic: epic, Resolution: res, Time: boundary.UTC()}
	for rows.Next() {
		var bid, ask float64
		if err := rows.Scan(&bid, &ask); err != nil {
			return market.Quote{}, errors.Wrap(err, "scan tick")
		}
		if q.Volume == 0 {
			q.BidOpen, q.AskOpen = bid, ask
			q.BidHigh, q.AskHigh = bid, ask
			q.BidLow, q.AskLow = bid, ask
		}
		if bid > q.BidHigh {
			q.BidHigh, q.AskHigh = bid, ask
		}
		if bid < q.BidLow {
			q.BidLow, q.AskLow = bid, ask
		}
		q.BidClose, q.AskClose = bid, ask
		q.Volume++
	}
	if err := rows.Err(); err != nil {
		return market.Quote{}, errors.Wrap(err, "aggregation rows")
	}
	if q.Volume == 0 {
		return market.Quote{}, ErrAggregation
	}

	if err := s.UpsertQuote(ctx, q); err != nil {
		return market.Quote{}, err
	}
	return q, nil
}

func reverse(quotes []market.Quote) {
	for i, j := 0, len(quotes)-1; i < j; i, j = i+1, j-1 {
		quotes[i], quotes[j] = quotes[j], quotes[i]
	}
}
