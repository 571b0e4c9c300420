package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    run_id      TEXT    NOT NULL,
    deal_id     TEXT    NOT NULL,
    epic        TEXT    NOT NULL,
    direction   TEXT    NOT NULL,
    size        REAL    NOT NULL,
    entry_price REAL    NOT NULL,
    exit_price  REAL    NOT NULL,
    open_time   INTEGER NOT NULL,
    close_time  INTEGER NOT NULL,
    profit      REAL    NOT NULL,
    profit_ccy  REAL    NOT NULL,
    cause       TEXT    NOT NULL,
    PRIMARY KEY (run_id, deal_id)
);
`

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create journal schema")
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO trades
		(run_id, deal_id, epic, direction, size, entry_price, exit_price,
		 open_time, close_time, profit, profit_ccy, cause)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.DealID, t.Epic, t.Direction, t.Size, t.EntryPrice, t.ExitPrice,
		t.OpenTime.UTC().Unix(), t.CloseTime.UTC().Unix(), t.Profit, t.ProfitCcy, t.Cause,
	)
	return errors.Wrap(err, "record trade")
}

func (j *SQLite) Trades(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, deal_id, epic, direction, size, entry_price, exit_price,
		       open_time, close_time, profit, profit_ccy, cause
		FROM trades
		WHERE run_id = ? OR ? = ''
		ORDER BY close_time ASC`, runID, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query trades")
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			t                   TradeRecord
			openUnix, closeUnix int64
		)
		if err := rows.Scan(&t.RunID, &t.DealID, &t.Epic, &t.Direction, &t.Size,
			&t.EntryPrice, &t.ExitPrice, &openUnix, &closeUnix,
			&t.Profit, &t.ProfitCcy, &t.Cause); err != nil {
			return nil, errors.Wrap(err, "scan trade")
		}
		t.OpenTime = time.Unix(openUnix, 0).UTC()
		t.CloseTime = time.Unix(closeUnix, 0).UTC()
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "trades rows")
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
