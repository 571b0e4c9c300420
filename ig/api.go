package ig

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"github.com/rustyeddy/igtrader/ledger"
	"github.com/rustyeddy/igtrader/market"
)

// Session is the account snapshot returned by Login.
type Session struct {
	AccountID string
	Currency  string
	Balance   float64
}

type sessionResponse struct {
	CurrentAccountID string `json:"currentAccountId"`
	CurrencyISOCode  string `json:"currencyIsoCode"`
	AccountInfo      struct {
		Balance   float64 `json:"balance"`
		Available float64 `json:"available"`
	} `json:"accountInfo"`
}

// GetAccount returns the balance of the dealing account.
func (c *Client) GetAccount(ctx context.Context) (ledger.Account, error) {
	var out struct {
		Accounts []struct {
			AccountID string `json:"accountId"`
			Currency  string `json:"currency"`
			Balance   struct {
				Balance    float64 `json:"balance"`
				ProfitLoss float64 `json:"profitLoss"`
			} `json:"balance"`
		} `json:"accounts"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/accounts", 1, nil, &out, true); err != nil {
		return ledger.Account{}, err
	}
	for _, a := range out.Accounts {
		if a.AccountID == c.accountID {
			return ledger.Account{
				ID:       a.AccountID,
				Currency: a.Currency,
				Balance:  a.Balance.Balance,
				Realized: a.Balance.ProfitLoss,
			}, nil
		}
	}
	return ledger.Account{}, errors.Errorf("ig: account %s not found", c.accountID)
}

// GetMarket returns the instrument details and dealing rules for an epic.
func (c *Client) GetMarket(ctx context.Context, epic string) (market.Market, error) {
	var out struct {
		Instrument struct {
			Name         string  `json:"name"`
			LotSize      float64 `json:"lotSize"`
			ContractSize string  `json:"contractSize"`
			Currencies   []struct {
				Code string `json:"code"`
			} `json:"currencies"`
		} `json:"instrument"`
		DealingRules struct {
			MinDealSize struct {
				Value float64 `json:"value"`
			} `json:"minDealSize"`
		} `json:"dealingRules"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/markets/"+epic, 3, nil, &out, true); err != nil {
		return market.Market{}, err
	}
	cs, err := strconv.ParseFloat(out.Instrument.ContractSize, 64)
	if err != nil {
		return market.Market{}, errors.Wrapf(err, "ig: contract size for %s", epic)
	}
	m := market.Market{
		Epic:         epic,
		Name:         out.Instrument.Name,
		LotSize:      out.Instrument.LotSize,
		ContractSize: cs,
		MinDealSize:  out.DealingRules.MinDealSize.Value,
	}
	if len(out.Instrument.Currencies) > 0 {
		m.Currency = out.Instrument.Currencies[0].Code
	}
	return m, nil
}

// igPosition is one entry of GET /positions.
type igPosition struct {
	Position struct {
		DealID    string  `json:"dealId"`
		Direction string  `json:"direction"`
		Size      float64 `json:"size"`
		Level     float64 `json:"level"`
		CreatedAt string  `json:"createdDateUTC"`
	} `json:"position"`
	Market struct {
		Epic string  `json:"epic"`
		Bid  float64 `json:"bid"`
		Ask  float64 `json:"offer"`
	} `json:"market"`
}

// GetPositions returns all open positions on the account.
func (c *Client) GetPositions(ctx context.Context) ([]igPosition, error) {
	var out struct {
		Positions []igPosition `json:"positions"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/positions", 2, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// resolutionName maps a bar resolution onto IG's price resolution enum.
func resolutionName(r market.Resolution) string {
	switch r.Unit {
	case market.UnitMinute:
		if r.N == 1 {
			return "MINUTE"
		}
		return fmt.Sprintf("MINUTE_%d", r.N)
	case market.UnitHour:
		if r.N == 1 {
			return "HOUR"
		}
		return fmt.Sprintf("HOUR_%d", r.N)
	default:
		return "DAY"
	}
}

// GetPrices fetches the last n closed bars for an epic, oldest first,
// converted to quotes for the price store.
func (c *Client) GetPrices(ctx context.Context, epic string, res market.Resolution, n int) ([]market.Quote, error) {
	path := fmt.Sprintf("/prices/%s?resolution=%s&max=%d&pageSize=%d", epic, resolutionName(res), n, n)
	var out struct {
		Prices []struct {
			SnapshotTimeUTC  string `json:"snapshotTimeUTC"`
			OpenPrice        igLeg  `json:"openPrice"`
			HighPrice        igLeg  `json:"highPrice"`
			LowPrice         igLeg  `json:"lowPrice"`
			ClosePrice       igLeg  `json:"closePrice"`
			LastTradedVolume int    `json:"lastTradedVolume"`
		} `json:"prices"`
	}
	if _, err := c.do(ctx, http.MethodGet, path, 3, nil, &out, true); err != nil {
		return nil, err
	}
	quotes := make([]market.Quote, 0, len(out.Prices))
	for _, p := range out.Prices {
		at, err := time.Parse("2006-01-02T15:04:05", p.SnapshotTimeUTC)
		if err != nil {
			return nil, errors.Wrap(err, "ig: parse snapshot time")
		}
		quotes = append(quotes, market.Quote{
			Epic:       epic,
			Resolution: res,
			Time:       at.UTC(),
			BidOpen:    p.OpenPrice.Bid, AskOpen: p.OpenPrice.Ask,
			BidHigh: p.HighPrice.Bid, AskHigh: p.HighPrice.Ask,
			BidLow: p.LowPrice.Bid, AskLow: p.LowPrice.Ask,
			BidClose: p.ClosePrice.Bid, AskClose: p.ClosePrice.Ask,
			Volume: p.LastTradedVolume,
		})
	}
	return quotes, nil
}

type igLeg struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// OpenPosition submits a market order and confirms it, returning the
// created deal ID.
func (c *Client) OpenPosition(ctx context.Context, order ledger.OpenOrder) (string, error) {
	ref := "igt" + ulid.Make().String()
	body := map[string]interface{}{
		"epic":           order.Epic,
		"expiry":         "-",
		"direction":      order.Direction.String(),
		"size":           order.Size,
		"orderType":      "MARKET",
		"currencyCode":   order.Currency,
		"forceOpen":      true,
		"guaranteedStop": false,
		"dealReference":  ref,
	}
	var out struct {
		DealReference string `json:"dealReference"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/positions/otc", 2, body, &out, true); err != nil {
		return "", err
	}
	return c.confirm(ctx, out.DealReference)
}

// ClosePosition closes a deal with an opposite market order. IG routes
// deletes through POST with a method override header.
func (c *Client) ClosePosition(ctx context.Context, pos *ledger.Position) error {
	body := map[string]interface{}{
		"dealId":    pos.DealID,
		"direction": pos.Direction.Opposite().String(),
		"size":      pos.Size,
		"orderType": "MARKET",
	}
	var out struct {
		DealReference string `json:"dealReference"`
	}
	_, err := c.do(ctx, http.MethodPost, "/positions/otc", 1, body, &out, true,
		func(r *http.Request) { r.Header.Set(headerMethod, http.MethodDelete) })
	if err != nil {
		return err
	}
	_, err = c.confirm(ctx, out.DealReference)
	return err
}

// confirm polls the deal confirmation and fails on a rejected deal.
func (c *Client) confirm(ctx context.Context, ref string) (string, error) {
	var out struct {
		DealID     string `json:"dealId"`
		DealStatus string `json:"dealStatus"`
		Reason     string `json:"reason"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/confirms/"+ref, 1, nil, &out, true); err != nil {
		return "", err
	}
	if out.DealStatus != "ACCEPTED" {
		return "", &RejectedDeal{Reference: ref, Reason: out.Reason}
	}
	return out.DealID, nil
}

// RejectedDeal means IG confirmed the deal as rejected.
type RejectedDeal struct {
	Reference string
	Reason    string
}

func (e *RejectedDeal) Error() string {
	return fmt.Sprintf("ig: deal %s rejected: %s", e.Reference, e.Reason)
}
