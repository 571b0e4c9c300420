// Package journal records closed trades. A run ID groups everything one
// live session or one backtest produced.
package journal

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rustyeddy/igtrader/ledger"
)

// TradeRecord is the persisted form of one closed trade.
type TradeRecord struct {
	RunID      string
	DealID     string
	Epic       string
	Direction  string
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	Profit     float64 // pips
	ProfitCcy  float64
	Cause      string
}

// FromClosed converts a ledger record to its journal row.
func FromClosed(runID string, c ledger.ClosedPosition) TradeRecord {
	return TradeRecord{
		RunID:      runID,
		DealID:     c.DealID,
		Epic:       c.Epic,
		Direction:  c.Direction.String(),
		Size:       c.Size,
		EntryPrice: c.OpenPrice,
		ExitPrice:  c.ClosePrice,
		OpenTime:   c.OpenTime,
		CloseTime:  c.CloseTime,
		Profit:     c.Profit,
		ProfitCcy:  c.ProfitCcy,
		Cause:      string(c.Cause),
	}
}

type Journal interface {
	RecordTrade(TradeRecord) error
	Trades(runID string) ([]TradeRecord, error)
	Close() error
}

// NewRunID returns a fresh, time-sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// Memory is the no-persistence journal used by tests and throwaway runs.
type Memory struct {
	records []TradeRecord
}

var _ Journal = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.records = append(m.records, t)
	return nil
}

func (m *Memory) Trades(runID string) ([]TradeRecord, error) {
	var out []TradeRecord
	for _, r := range m.records {
		if runID == "" || r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
