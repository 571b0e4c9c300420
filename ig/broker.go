package ig

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/igtrader/broker"
	"github.com/rustyeddy/igtrader/ledger"
	"github.com/rustyeddy/igtrader/market"
)

// Broker adapts the IG client to the engine's broker port for one
// market. Venue state is authoritative: every refresh rebuilds the
// position from GET /positions, never from what we think we submitted.
type Broker struct {
	client *Client
	market market.Market
	log    *zap.Logger

	// last seen position, kept to carry profit excursions across cycles;
	// pure in-memory bookkeeping, dropped when the deal ID changes.
	prev *ledger.Position
}

var _ broker.Broker = (*Broker)(nil)

func NewBroker(c *Client, m market.Market, log *zap.Logger) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{client: c, market: m, log: log.With(zap.String("epic", m.Epic))}
}

func (b *Broker) RefreshAccount(ctx context.Context) (ledger.Account, error) {
	return b.client.GetAccount(ctx)
}

// RefreshPosition rebuilds the open position for our epic from the
// venue and reprices it at the tick. Returns nil when flat.
func (b *Broker) RefreshPosition(ctx context.Context, tick market.Tick) (*ledger.Position, error) {
	all, err := b.client.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.Market.Epic != b.market.Epic {
			continue
		}
		dir := ledger.Long
		if p.Position.Direction == "SELL" {
			dir = ledger.Short
		}
		pos := &ledger.Position{
			DealID:       p.Position.DealID,
			Epic:         b.market.Epic,
			Direction:    dir,
			Size:         p.Position.Size,
			OpenPrice:    p.Position.Level,
			LotSize:      b.market.LotSize,
			ContractSize: b.market.ContractSize,
		}
		if at, err := time.Parse("2006-01-02T15:04:05", p.Position.CreatedAt); err == nil {
			pos.OpenTime = at.UTC()
		}
		if b.prev != nil && b.prev.DealID == pos.DealID {
			pos.MaxProfit = b.prev.MaxProfit
			pos.MinProfit = b.prev.MinProfit
		}
		pos.Reprice(tick.Bid, tick.Ask, tick.Time)
		b.prev = pos
		return pos, nil
	}
	b.prev = nil
	return nil, nil
}

// Open submits the order and returns the venue's view of the new
// position. A deal IG confirms as rejected maps to RejectedError.
func (b *Broker) Open(ctx context.Context, order ledger.OpenOrder) (*ledger.Position, error) {
	if order.Size < b.market.MinDealSize {
		return nil, &ledger.InsufficientSizeError{Size: order.Size, Min: b.market.MinDealSize}
	}
	dealID, err := b.client.OpenPosition(ctx, order)
	if err != nil {
		var rej *RejectedDeal
		if errors.As(err, &rej) {
			return nil, &broker.RejectedError{Op: "open", Reason: rej.Reason}
		}
		return nil, err
	}
	b.log.Info("position opened",
		zap.String("deal", dealID),
		zap.Stringer("dir", order.Direction),
		zap.Float64("size", order.Size))

	price := order.Ask
	if order.Direction == ledger.Short {
		price = order.Bid
	}
	pos := &ledger.Position{
		DealID:       dealID,
		Epic:         order.Epic,
		Direction:    order.Direction,
		Size:         order.Size,
		OpenTime:     order.Time,
		OpenPrice:    price,
		StopPips:     order.StopPips,
		TargetPips:   order.TargetPips,
		LotSize:      order.LotSize,
		ContractSize: order.ContractSize,
	}
	pos.Reprice(order.Bid, order.Ask, order.Time)
	b.prev = pos
	return pos, nil
}

// Close closes the deal at the venue and returns the trade record built
// from the position's last repricing.
func (b *Broker) Close(ctx context.Context, pos *ledger.Position, cause ledger.ExitCause) (ledger.ClosedPosition, error) {
	if err := b.client.ClosePosition(ctx, pos); err != nil {
		var rej *RejectedDeal
		if errors.As(err, &rej) {
			return ledger.ClosedPosition{}, &broker.RejectedError{Op: "close", Reason: rej.Reason}
		}
		return ledger.ClosedPosition{}, err
	}
	b.prev = nil
	b.log.Info("position closed",
		zap.String("deal", pos.DealID),
		zap.String("cause", string(cause)),
		zap.Float64("pips", pos.Profit))
	return ledger.ClosedPosition{
		DealID:     pos.DealID,
		Epic:       pos.Epic,
		Direction:  pos.Direction,
		Size:       pos.Size,
		OpenTime:   pos.OpenTime,
		OpenPrice:  pos.OpenPrice,
		CloseTime:  pos.CurrentTime,
		ClosePrice: pos.CurrentPrice,
		Profit:     pos.Profit,
		ProfitCcy:  pos.ProfitCcy,
		MaxProfit:  pos.MaxProfit,
		MinProfit:  pos.MinProfit,
		Cause:      cause,
	}, nil
}
