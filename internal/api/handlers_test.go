package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"stocktrack/pkg/stocktrack"
)

// stubQuotes implements stocktrack.HTTPDoer with one canned body per URL prefix.
type stubQuotes map[string]string

func (s stubQuotes) Do(req *http.Request) (*http.Response, error) {
	target := req.URL.String()
	for prefix, body := range s {
		if strings.HasPrefix(target, prefix) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(body)),
				Header:     make(http.Header),
			}, nil
		}
	}
	return &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
	}, nil
}

const yahooChart = "https://query1.finance.yahoo.com/v8/finance/chart/"

// setupTestRouter creates a router over a Core in a temporary directory.
func setupTestRouter(t *testing.T, quotes stubQuotes) (http.Handler, *stocktrack.Core) {
	t.Helper()
	core, err := stocktrack.OpenWithOptions(stocktrack.Options{
		DBPath:     filepath.Join(t.TempDir(), "test.db"),
		Logger:     discardLogger(),
		HTTPClient: quotes,
	})
	if err != nil {
		t.Fatalf("failed to open test core: %v", err)
	}
	t.Cleanup(func() { _ = core.Close() })
	return NewRouter(core), core
}

// doRequest performs a request and returns the response.
func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func expectErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code stocktrack.ErrorCode) {
	t.Helper()
	expectStatus(t, rr, status)
	var resp ErrorResponse
	decodeResponse(t, rr, &resp)
	if resp.ErrorCode != string(code) {
		t.Fatalf("expected error_code %s, got %+v", code, resp)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t, nil)
	rr := doRequest(router, http.MethodGet, "/api/health", nil)
	expectStatus(t, rr, http.StatusOK)
	var body map[string]string
	decodeResponse(t, rr, &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestTransactionLifecycle(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	rr := doRequest(router, http.MethodPost, "/api/holdings/2330/transactions", map[string]any{
		"name": "TSMC", "market": "TW", "type": "buy", "quantity": 10, "price": 100, "date": 1700000000000,
	})
	expectStatus(t, rr, http.StatusCreated)
	var holding stocktrack.Holding
	decodeResponse(t, rr, &holding)
	if holding.Symbol != "2330" || holding.Market != stocktrack.MarketTW || holding.TotalShares != 10 {
		t.Fatalf("unexpected holding %+v", holding)
	}

	rr = doRequest(router, http.MethodPost, "/api/holdings/2330/transactions", map[string]any{
		"type": "BUY", "quantity": 10, "price": 200,
	})
	expectStatus(t, rr, http.StatusCreated)
	decodeResponse(t, rr, &holding)
	if holding.AverageCost != 150 || len(holding.Transactions) != 2 {
		t.Fatalf("unexpected holding after second buy %+v", holding)
	}
	firstID := holding.Transactions[0].ID

	rr = doRequest(router, http.MethodGet, "/api/holdings/2330", nil)
	expectStatus(t, rr, http.StatusOK)

	rr = doRequest(router, http.MethodGet, "/api/portfolio", nil)
	expectStatus(t, rr, http.StatusOK)
	var portfolio []stocktrack.Holding
	decodeResponse(t, rr, &portfolio)
	if len(portfolio) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(portfolio))
	}

	rr = doRequest(router, http.MethodDelete, "/api/holdings/2330/transactions/"+firstID, nil)
	expectStatus(t, rr, http.StatusOK)
	var del deleteTransactionResponse
	decodeResponse(t, rr, &del)
	if !del.Deleted || del.Holding == nil || del.Holding.AverageCost != 200 {
		t.Fatalf("unexpected delete response %+v", del)
	}

	rr = doRequest(router, http.MethodDelete, "/api/holdings/NOPE/transactions/x", nil)
	expectStatus(t, rr, http.StatusOK)
	decodeResponse(t, rr, &del)
	if del.Deleted || del.Holding != nil {
		t.Fatalf("expected no-op delete, got %+v", del)
	}
}

func TestAddTransactionRejectsBadInput(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	cases := []struct {
		name string
		body any
	}{
		{"negative quantity", map[string]any{"type": "buy", "quantity": -1, "price": 1}},
		{"unknown type", map[string]any{"type": "short", "quantity": 1, "price": 1}},
		{"unknown field", map[string]any{"type": "buy", "quantity": 1, "price": 1, "fee": 3}},
		{"malformed", "{"},
		{"empty body", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(router, http.MethodPost, "/api/holdings/AAPL/transactions", tc.body)
			expectErrorCode(t, rr, http.StatusBadRequest, stocktrack.ErrCodeInvalidInput)
		})
	}
}

func TestGetHoldingNotFound(t *testing.T) {
	router, _ := setupTestRouter(t, nil)
	rr := doRequest(router, http.MethodGet, "/api/holdings/MISSING", nil)
	expectErrorCode(t, rr, http.StatusNotFound, stocktrack.ErrCodeNotFound)
}

func TestPortfolioSummaryEndpoints(t *testing.T) {
	router, core := setupTestRouter(t, stubQuotes{
		yahooChart + "AAPL": `{"chart":{"result":[{"meta":{"regularMarketPrice":120}}]}}`,
	})
	_, err := core.AddTransaction(context.Background(), stocktrack.AddTransactionRequest{
		Symbol: "AAPL", Market: stocktrack.MarketUS, Type: stocktrack.Buy, Quantity: 10, Price: 100,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rr := doRequest(router, http.MethodPost, "/api/portfolio/summary", map[string]any{
		"prices": map[string]float64{"AAPL": 110},
	})
	expectStatus(t, rr, http.StatusOK)
	var summary stocktrack.PortfolioSummary
	decodeResponse(t, rr, &summary)
	if summary.Summary.TotalValue != 1100 || summary.Summary.TotalProfitLoss != 100 {
		t.Fatalf("unexpected summary %+v", summary.Summary)
	}

	rr = doRequest(router, http.MethodPost, "/api/portfolio/summary", nil)
	expectStatus(t, rr, http.StatusOK)
	decodeResponse(t, rr, &summary)
	if summary.Summary.TotalValue != 0 || summary.Summary.TotalCost != 1000 {
		t.Fatalf("expected unpriced summary, got %+v", summary.Summary)
	}

	rr = doRequest(router, http.MethodGet, "/api/portfolio/summary/live", nil)
	expectStatus(t, rr, http.StatusOK)
	decodeResponse(t, rr, &summary)
	if summary.Holdings[0].CurrentPrice != 120 || summary.Summary.TotalValue != 1200 {
		t.Fatalf("unexpected live summary %+v", summary)
	}
}

func TestBacktestEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t, stubQuotes{
		yahooChart + "AAPL": `{"chart":{"result":[{"timestamp":[1704153600,1704240000,1704326400],
			"indicators":{"quote":[{"close":[100,80,120]}]}}]}}`,
	})

	rr := doRequest(router, http.MethodPost, "/api/backtest", map[string]any{"closes": []float64{100}})
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"totalReturn":null`) || !strings.Contains(rr.Body.String(), `"trades":0`) {
		t.Fatalf("expected null statistics, got %s", rr.Body.String())
	}

	rr = doRequest(router, http.MethodPost, "/api/backtest", map[string]any{"closes": []float64{100, 110}})
	expectStatus(t, rr, http.StatusOK)
	var result stocktrack.BacktestResult
	decodeResponse(t, rr, &result)
	if result.TotalReturn < 9.999 || result.TotalReturn > 10.001 || result.WinRate != 100 || result.Trades != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	rr = doRequest(router, http.MethodPost, "/api/backtest", map[string]any{"closes": []float64{1, 2}, "trading_days_per_year": -1})
	expectErrorCode(t, rr, http.StatusBadRequest, stocktrack.ErrCodeInvalidInput)

	rr = doRequest(router, http.MethodGet, "/api/backtest/us/AAPL", nil)
	expectStatus(t, rr, http.StatusOK)
	var sym symbolBacktestResponse
	decodeResponse(t, rr, &sym)
	if sym.Market != stocktrack.MarketUS || len(sym.Closes) != 3 || sym.Result.MaxDrawdown > -19.999 || sym.TradingDaysPerYear != 240 {
		t.Fatalf("unexpected symbol backtest %+v", sym)
	}

	rr = doRequest(router, http.MethodGet, "/api/backtest/US/MSFT", nil)
	expectErrorCode(t, rr, http.StatusBadGateway, stocktrack.ErrCodeUpstream)
}

func TestQuoteEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t, stubQuotes{
		"https://mis.twse.com.tw/": `{"msgArray":[{"c":"2330","z":"-","y":"580.00"}]}`,
	})

	rr := doRequest(router, http.MethodGet, "/api/quotes/tw/2330", nil)
	expectStatus(t, rr, http.StatusOK)
	var q stocktrack.Quote
	decodeResponse(t, rr, &q)
	if q.Price != 580 || q.Source != "TWSE" {
		t.Fatalf("unexpected quote %+v", q)
	}

	rr = doRequest(router, http.MethodGet, "/api/quotes/hk/0700", nil)
	expectErrorCode(t, rr, http.StatusBadRequest, stocktrack.ErrCodeInvalidInput)
}

func TestWatchlistEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	rr := doRequest(router, http.MethodPost, "/api/watchlist/2330/toggle", nil)
	expectStatus(t, rr, http.StatusOK)
	var toggle watchlistToggleResponse
	decodeResponse(t, rr, &toggle)
	if !toggle.Watching || len(toggle.Symbols) != 1 {
		t.Fatalf("unexpected toggle %+v", toggle)
	}

	rr = doRequest(router, http.MethodPost, "/api/watchlist/2330/toggle", nil)
	decodeResponse(t, rr, &toggle)
	if toggle.Watching || len(toggle.Symbols) != 0 {
		t.Fatalf("unexpected second toggle %+v", toggle)
	}

	rr = doRequest(router, http.MethodGet, "/api/watchlist", nil)
	expectStatus(t, rr, http.StatusOK)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rr.Body.String())
	}
}

func TestAlertEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	rr := doRequest(router, http.MethodPost, "/api/alerts", map[string]any{
		"symbol": "AAPL", "name": "Apple", "target_price": 200, "condition": "above",
	})
	expectStatus(t, rr, http.StatusCreated)
	var alert stocktrack.PriceAlert
	decodeResponse(t, rr, &alert)

	rr = doRequest(router, http.MethodPost, "/api/alerts", map[string]any{
		"symbol": "AAPL", "target_price": 200, "condition": "sideways",
	})
	expectErrorCode(t, rr, http.StatusBadRequest, stocktrack.ErrCodeInvalidInput)

	rr = doRequest(router, http.MethodPut, "/api/alerts/"+alert.ID+"/status", map[string]any{"is_active": false})
	expectStatus(t, rr, http.StatusOK)
	rr = doRequest(router, http.MethodPut, "/api/alerts/"+alert.ID+"/status", map[string]any{})
	expectErrorCode(t, rr, http.StatusBadRequest, stocktrack.ErrCodeInvalidInput)
	rr = doRequest(router, http.MethodPut, "/api/alerts/unknown/status", map[string]any{"is_active": true})
	expectErrorCode(t, rr, http.StatusNotFound, stocktrack.ErrCodeNotFound)

	rr = doRequest(router, http.MethodPost, "/api/alerts/check", map[string]any{"prices": map[string]float64{"AAPL": 250}})
	expectStatus(t, rr, http.StatusOK)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("inactive alert must not trigger, got %s", rr.Body.String())
	}

	doRequest(router, http.MethodPut, "/api/alerts/"+alert.ID+"/status", map[string]any{"is_active": true})
	rr = doRequest(router, http.MethodPost, "/api/alerts/check", map[string]any{"prices": map[string]float64{"AAPL": 250}})
	var triggered []stocktrack.PriceAlert
	decodeResponse(t, rr, &triggered)
	if len(triggered) != 1 || triggered[0].ID != alert.ID {
		t.Fatalf("unexpected triggered %+v", triggered)
	}

	rr = doRequest(router, http.MethodGet, "/api/alerts?symbol=AAPL", nil)
	var alerts []stocktrack.PriceAlert
	decodeResponse(t, rr, &alerts)
	if len(alerts) != 1 || alerts[0].IsActive || alerts[0].TriggeredAt == nil {
		t.Fatalf("expected triggered alert stored, got %+v", alerts)
	}

	rr = doRequest(router, http.MethodDelete, "/api/alerts/"+alert.ID, nil)
	expectStatus(t, rr, http.StatusNoContent)
	rr = doRequest(router, http.MethodGet, "/api/alerts", nil)
	decodeResponse(t, rr, &alerts)
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %+v", alerts)
	}
}

func TestSearchHistoryEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	for _, item := range []map[string]string{
		{"symbol": "2330", "name": "TSMC", "market": "tw"},
		{"symbol": "AAPL", "market": "US"},
	} {
		rr := doRequest(router, http.MethodPost, "/api/search-history", item)
		expectStatus(t, rr, http.StatusOK)
	}

	rr := doRequest(router, http.MethodGet, "/api/search-history", nil)
	var items []stocktrack.SearchHistoryItem
	decodeResponse(t, rr, &items)
	if len(items) != 2 || items[0].Symbol != "AAPL" || items[1].Market != stocktrack.MarketTW {
		t.Fatalf("unexpected history %+v", items)
	}

	rr = doRequest(router, http.MethodDelete, "/api/search-history/TW/2330", nil)
	expectStatus(t, rr, http.StatusOK)
	decodeResponse(t, rr, &items)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %+v", items)
	}

	rr = doRequest(router, http.MethodDelete, "/api/search-history", nil)
	expectStatus(t, rr, http.StatusNoContent)
	rr = doRequest(router, http.MethodGet, "/api/search-history", nil)
	decodeResponse(t, rr, &items)
	if len(items) != 0 {
		t.Fatalf("expected cleared history, got %+v", items)
	}
}

func TestOperationLogsAndStorageEndpoints(t *testing.T) {
	router, core := setupTestRouter(t, nil)
	doRequest(router, http.MethodPost, "/api/holdings/AAPL/transactions", map[string]any{"type": "buy", "quantity": 1, "price": 1})
	doRequest(router, http.MethodPost, "/api/holdings/MSFT/transactions", map[string]any{"type": "buy", "quantity": 1, "price": 1})

	rr := doRequest(router, http.MethodGet, "/api/operation-logs?limit=1", nil)
	expectStatus(t, rr, http.StatusOK)
	var logs []stocktrack.OperationLog
	decodeResponse(t, rr, &logs)
	if len(logs) != 1 || logs[0].Symbol == nil || *logs[0].Symbol != "MSFT" {
		t.Fatalf("unexpected logs %+v", logs)
	}

	rr = doRequest(router, http.MethodGet, "/api/storage", nil)
	expectStatus(t, rr, http.StatusOK)
	var info storageInfoResponse
	decodeResponse(t, rr, &info)
	if info.DBPath != core.DBPath() || info.CostBasisOrder != stocktrack.OrderInsertion {
		t.Fatalf("unexpected storage info %+v", info)
	}
	if len(info.DBFiles) != 1 || info.DBFiles[0] != "test.db" {
		t.Fatalf("unexpected db files %v", info.DBFiles)
	}
}
