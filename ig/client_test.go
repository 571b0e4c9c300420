package ig

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/igtrader/broker"
	"github.com/rustyeddy/igtrader/ledger"
	"github.com/rustyeddy/igtrader/market"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:     "test-key",
		Identifier: "trader",
		Password:   "hunter2",
		BaseURL:    srv.URL,
	}, nil)
}

func TestLoginCapturesSessionTokens(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get(headerAPIKey))
		assert.Equal(t, "2", r.Header.Get(headerVersion))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "trader", body["identifier"])

		w.Header().Set(headerCST, "cst-value")
		w.Header().Set(headerToken, "xst-value")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"currentAccountId": "ABC123",
			"currencyIsoCode":  "GBP",
			"accountInfo":      map[string]float64{"balance": 1500},
		})
	})
	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		// Later calls must carry the captured tokens.
		assert.Equal(t, "cst-value", r.Header.Get(headerCST))
		assert.Equal(t, "xst-value", r.Header.Get(headerToken))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"positions": []interface{}{}})
	})

	c := testClient(t, mux)
	sess, err := c.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC123", sess.AccountID)
	assert.Equal(t, "GBP", sess.Currency)
	assert.InDelta(t, 1500, sess.Balance, 1e-9)

	_, err = c.GetPositions(context.Background())
	require.NoError(t, err)
}

func TestLoginAuthErrorIsFatal(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"errorCode": "error.security.invalid-details",
		})
	}))

	_, err := c.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, authErr.Fatal())
	assert.Equal(t, "error.security.invalid-details", authErr.Code)
}

func TestGetMarketParsesInstrument(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/CS.D.EURUSD.MINI.IP", r.URL.Path)
		assert.Equal(t, "3", r.Header.Get(headerVersion))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"instrument": map[string]interface{}{
				"name":         "EUR/USD Mini",
				"lotSize":      10.0,
				"contractSize": "100000",
				"currencies":   []map[string]string{{"code": "USD"}},
			},
			"dealingRules": map[string]interface{}{
				"minDealSize": map[string]float64{"value": 1},
			},
		})
	}))

	m, err := c.GetMarket(context.Background(), "CS.D.EURUSD.MINI.IP")
	require.NoError(t, err)
	assert.Equal(t, "EUR/USD Mini", m.Name)
	assert.InDelta(t, 10, m.LotSize, 1e-9)
	assert.InDelta(t, 100000, m.ContractSize, 1e-9)
	assert.Equal(t, "USD", m.Currency)
	assert.InDelta(t, 1, m.MinDealSize, 1e-9)
}

func TestGetPricesConvertsBars(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices/CS.D.EURUSD.MINI.IP", r.URL.Path)
		assert.Equal(t, "MINUTE_10", r.URL.Query().Get("resolution"))
		assert.Equal(t, "3", r.Header.Get(headerVersion))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"prices": []map[string]interface{}{{
				"snapshotTimeUTC":  "2024-03-05T09:00:00",
				"openPrice":        map[string]float64{"bid": 1.1000, "ask": 1.1002},
				"highPrice":        map[string]float64{"bid": 1.1010, "ask": 1.1012},
				"lowPrice":         map[string]float64{"bid": 1.0990, "ask": 1.0992},
				"closePrice":       map[string]float64{"bid": 1.1005, "ask": 1.1007},
				"lastTradedVolume": 742,
			}},
		})
	}))

	res := market.Resolution{Unit: market.UnitMinute, N: 10}
	quotes, err := c.GetPrices(context.Background(), "CS.D.EURUSD.MINI.IP", res, 2)
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	q := quotes[0]
	assert.Equal(t, "CS.D.EURUSD.MINI.IP", q.Epic)
	assert.Equal(t, res, q.Resolution)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), q.Time)
	assert.InDelta(t, 1.1000, q.BidOpen, 1e-9)
	assert.InDelta(t, 1.1012, q.AskHigh, 1e-9)
	assert.InDelta(t, 1.0990, q.BidLow, 1e-9)
	assert.InDelta(t, 1.1007, q.AskClose, 1e-9)
	assert.Equal(t, 742, q.Volume)
}

func TestBrokerOpenRejectedDeal(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/positions/otc", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "MARKET", body["orderType"])
		assert.Equal(t, "BUY", body["direction"])
		_ = json.NewEncoder(w).Encode(map[string]string{"dealReference": body["dealReference"].(string)})
	})
	mux.HandleFunc("/confirms/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"dealStatus": "REJECTED",
			"reason":     "MARKET_CLOSED_WITH_EDITS",
		})
	})
	c := testClient(t, mux)
	b := NewBroker(c, market.Market{Epic: "CS.D.EURUSD.MINI.IP", LotSize: 10, ContractSize: 100000, MinDealSize: 1}, nil)

	_, err := b.Open(context.Background(), ledger.OpenOrder{
		Epic: "CS.D.EURUSD.MINI.IP", Direction: ledger.Long, Size: 2,
		Bid: 1.1, Ask: 1.1002, Currency: "USD", LotSize: 10, ContractSize: 100000,
	})
	var rej *broker.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "open", rej.Op)
	assert.Equal(t, "MARKET_CLOSED_WITH_EDITS", rej.Reason)
}

func TestBrokerCloseUsesMethodOverride(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/positions/otc", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, http.MethodDelete, r.Header.Get(headerMethod))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "DEAL-1", body["dealId"])
		assert.Equal(t, "SELL", body["direction"]) // closing a long
		_ = json.NewEncoder(w).Encode(map[string]string{"dealReference": "ref-1"})
	})
	mux.HandleFunc("/confirms/ref-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"dealId": "DEAL-1", "dealStatus": "ACCEPTED"})
	})
	c := testClient(t, mux)
	b := NewBroker(c, market.Market{Epic: "CS.D.EURUSD.MINI.IP", LotSize: 10, ContractSize: 100000}, nil)

	pos := &ledger.Position{
		DealID: "DEAL-1", Epic: "CS.D.EURUSD.MINI.IP", Direction: ledger.Long,
		Size: 2, OpenPrice: 1.1, LotSize: 10, ContractSize: 100000,
	}
	pos.Reprice(1.101, 1.1012, pos.OpenTime)

	closed, err := b.Close(context.Background(), pos, ledger.CauseSignal)
	require.NoError(t, err)
	assert.Equal(t, "DEAL-1", closed.DealID)
	assert.Equal(t, ledger.CauseSignal, closed.Cause)
	assert.InDelta(t, pos.Profit, closed.Profit, 1e-9)
}

func TestBrokerRefreshPositionCarriesExcursions(t *testing.T) {
	t.Parallel()
	bid := 1.2
	mux := http.NewServeMux()
	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"positions": []map[string]interface{}{{
				"position": map[string]interface{}{
					"dealId": "DEAL-9", "direction": "BUY", "size": 1.0,
					"level": 1.19, "createdDateUTC": "2024-03-05T09:00:00",
				},
				"market": map[string]interface{}{"epic": "CS.D.EURUSD.MINI.IP"},
			}},
		})
	})
	c := testClient(t, mux)
	mkt := market.Market{Epic: "CS.D.EURUSD.MINI.IP", LotSize: 10, ContractSize: 100000}
	b := NewBroker(c, mkt, nil)
	ctx := context.Background()

	p1, err := b.RefreshPosition(ctx, market.Tick{Epic: mkt.Epic, Bid: bid, Ask: bid + 0.0002})
	require.NoError(t, err)
	require.NotNil(t, p1)
	high := p1.Profit

	// Price retreats; the max excursion from the earlier refresh sticks.
	p2, err := b.RefreshPosition(ctx, market.Tick{Epic: mkt.Epic, Bid: bid - 0.005, Ask: bid - 0.0048})
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.Less(t, p2.Profit, high)
	assert.InDelta(t, high, p2.MaxProfit, 1e-9)
}

func TestResolutionName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "MINUTE", resolutionName(market.Resolution{Unit: market.UnitMinute, N: 1}))
	assert.Equal(t, "MINUTE_10", resolutionName(market.Resolution{Unit: market.UnitMinute, N: 10}))
	assert.Equal(t, "HOUR_4", resolutionName(market.Resolution{Unit: market.UnitHour, N: 4}))
	assert.Equal(t, "DAY", resolutionName(market.Resolution{Unit: market.UnitDay, N: 1}))
}
