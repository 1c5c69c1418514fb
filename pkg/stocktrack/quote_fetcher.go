package stocktrack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	maxResponseSize  = 4 << 20
	backtestLookback = 730 * 24 * time.Hour

	twseQuoteURL   = "https://mis.twse.com.tw/stock/api/getStockInfo.jsp"
	yahooChartURL  = "https://query1.finance.yahoo.com/v8/finance/chart/"
	quoteUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Quote fetcher errors. Use errors.Is() to check for these conditions.
var (
	// ErrNoQuote indicates the data source returned no usable price.
	ErrNoQuote = errors.New("no quote data available")
	// ErrUnsupportedMarket indicates the market has no configured data source.
	ErrUnsupportedMarket = errors.New("unsupported market")
)

// HTTPDoer is an interface for making HTTP requests. It enables dependency
// injection for testing without network calls.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type quoteFetcherOptions struct {
	Logger        *slog.Logger
	CacheTTL      time.Duration
	FailThreshold int
	FailWindow    time.Duration
	Cooldown      time.Duration
	HTTPTimeout   time.Duration
	HTTPClient    HTTPDoer
	Now           func() time.Time
}

type quoteFetcher struct {
	logger        *slog.Logger
	cacheTTL      time.Duration
	failThreshold int
	failWindow    time.Duration
	cooldown      time.Duration
	client        HTTPDoer
	now           func() time.Time

	// Separate locks for cache and circuit breaker to reduce contention.
	cacheMu      sync.RWMutex
	cache        map[string]cacheEntry
	circuitMu    sync.Mutex
	serviceState map[string]*serviceState
}

type cacheEntry struct {
	quote Quote
	ts    time.Time
}

type serviceState struct {
	failCount     int
	firstFailAt   time.Time
	cooldownUntil time.Time
}

func newQuoteFetcher(opts quoteFetcherOptions) *quoteFetcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.HTTPTimeout}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &quoteFetcher{
		logger:        logger,
		cacheTTL:      opts.CacheTTL,
		failThreshold: opts.FailThreshold,
		failWindow:    opts.FailWindow,
		cooldown:      opts.Cooldown,
		client:        client,
		now:           now,
		cache:         map[string]cacheEntry{},
		serviceState:  map[string]*serviceState{},
	}
}

// FetchQuote returns the latest price for symbol, trying each data source
// for the market in turn.
func (c *Core) FetchQuote(ctx context.Context, market Market, symbol string) (Quote, error) {
	return c.quotes.fetchQuote(ctx, market, symbol)
}

// FetchDailyCloses returns about two years of daily closes, oldest first.
func (c *Core) FetchDailyCloses(ctx context.Context, market Market, symbol string) ([]DailyClose, error) {
	return c.quotes.fetchDailyCloses(ctx, market, symbol)
}

type fetchAttempt struct {
	name string
	fn   func(ctx context.Context) (float64, error)
}

func (qf *quoteFetcher) fetchQuote(ctx context.Context, market Market, symbol string) (Quote, error) {
	market = normalizeMarket(market)
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Quote{}, invalidInput("symbol required")
	}
	if q, ok := qf.getCached(market, symbol); ok {
		return q, nil
	}

	attempts := qf.buildAttempts(market, symbol)
	if len(attempts) == 0 {
		return Quote{}, WrapError(ErrCodeInvalidInput, fmt.Sprintf("market %q", market), ErrUnsupportedMarket)
	}
	qf.logger.Debug("fetching quote", "symbol", symbol, "market", market)

	var failures []string
	for _, attempt := range attempts {
		if !qf.serviceAvailable(attempt.name) {
			failures = append(failures, attempt.name+": circuit open")
			continue
		}
		price, err := attempt.fn(ctx)
		if err == nil && price > 0 {
			qf.recordServiceSuccess(attempt.name)
			q := Quote{
				Symbol:    symbol,
				Market:    market,
				Price:     price,
				Source:    attempt.name,
				FetchedAt: qf.now().UnixMilli(),
			}
			qf.setCached(q)
			return q, nil
		}
		if err == nil {
			err = ErrNoQuote
		}
		if ctx.Err() != nil {
			return Quote{}, ctx.Err()
		}
		failures = append(failures, fmt.Sprintf("%s: %v", attempt.name, err))
		qf.recordServiceFailure(attempt.name)
	}

	msg := "quote fetch failed: " + strings.Join(failures, "; ")
	qf.logger.Warn("quote fetch failed", "symbol", symbol, "market", market, "errors", failures)
	return Quote{}, WrapError(ErrCodeUpstream, msg, ErrNoQuote)
}

func (qf *quoteFetcher) buildAttempts(market Market, symbol string) []fetchAttempt {
	switch market {
	case MarketTW:
		return []fetchAttempt{
			{"TWSE", func(ctx context.Context) (float64, error) { return qf.twseFetch(ctx, symbol) }},
			{"Yahoo Finance", func(ctx context.Context) (float64, error) {
				return qf.yahooFetchPrice(ctx, yahooSymbol(market, symbol))
			}},
		}
	case MarketUS:
		return []fetchAttempt{
			{"Yahoo Finance", func(ctx context.Context) (float64, error) {
				return qf.yahooFetchPrice(ctx, yahooSymbol(market, symbol))
			}},
		}
	default:
		return nil
	}
}

func (qf *quoteFetcher) getCached(market Market, symbol string) (Quote, bool) {
	key := cacheKey(market, symbol)
	qf.cacheMu.RLock()
	defer qf.cacheMu.RUnlock()
	entry, ok := qf.cache[key]
	if !ok {
		return Quote{}, false
	}
	if qf.now().Sub(entry.ts) <= qf.cacheTTL {
		return entry.quote, true
	}
	return Quote{}, false
}

func (qf *quoteFetcher) setCached(q Quote) {
	key := cacheKey(q.Market, q.Symbol)
	qf.cacheMu.Lock()
	defer qf.cacheMu.Unlock()
	qf.cache[key] = cacheEntry{quote: q, ts: qf.now()}
}

func cacheKey(market Market, symbol string) string {
	return string(market) + "|" + symbol
}

func (qf *quoteFetcher) serviceAvailable(service string) bool {
	qf.circuitMu.Lock()
	defer qf.circuitMu.Unlock()
	state, ok := qf.serviceState[service]
	if !ok {
		return true
	}
	return qf.now().After(state.cooldownUntil)
}

func (qf *quoteFetcher) recordServiceFailure(service string) {
	qf.circuitMu.Lock()
	defer qf.circuitMu.Unlock()
	state := qf.serviceState[service]
	now := qf.now()
	if state == nil {
		state = &serviceState{firstFailAt: now}
		qf.serviceState[service] = state
	}
	if now.Sub(state.firstFailAt) > qf.failWindow {
		state.failCount = 0
		state.firstFailAt = now
	}
	state.failCount++
	if state.failCount >= qf.failThreshold {
		state.cooldownUntil = now.Add(qf.cooldown)
		qf.logger.Warn("quote source in cooldown", "service", service, "until", state.cooldownUntil)
	}
}

func (qf *quoteFetcher) recordServiceSuccess(service string) {
	qf.circuitMu.Lock()
	defer qf.circuitMu.Unlock()
	delete(qf.serviceState, service)
}

// yahooSymbol maps a ledger symbol to Yahoo's ticker: 2330 -> 2330.TW, aapl -> AAPL.
func yahooSymbol(market Market, symbol string) string {
	s := strings.TrimSpace(symbol)
	switch normalizeMarket(market) {
	case MarketTW:
		if strings.HasSuffix(strings.ToUpper(s), ".TW") {
			return s
		}
		return s + ".TW"
	case MarketUS:
		return strings.ToUpper(s)
	}
	return s
}

func (qf *quoteFetcher) twseFetch(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("ex_ch", fmt.Sprintf("tse_%s.tw", symbol))
	params.Set("json", "1")
	params.Set("delay", "0")
	body, err := qf.httpGet(ctx, twseQuoteURL+"?"+params.Encode())
	if err != nil {
		return 0, err
	}
	var payload struct {
		MsgArray []struct {
			Code      string `json:"c"`
			Name      string `json:"n"`
			Last      string `json:"z"`
			PrevClose string `json:"y"`
		} `json:"msgArray"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, err
	}
	if len(payload.MsgArray) == 0 {
		return 0, ErrNoQuote
	}
	item := payload.MsgArray[0]
	// "z" is "-" between trades; fall back to the previous close.
	if price, err := parsePrice(item.Last); err == nil && price > 0 {
		return price, nil
	}
	return parsePrice(item.PrevClose)
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

func (qf *quoteFetcher) yahooChart(ctx context.Context, ticker string, query url.Values) (*yahooChart, error) {
	body, err := qf.httpGet(ctx, yahooChartURL+url.PathEscape(ticker)+"?"+query.Encode())
	if err != nil {
		return nil, err
	}
	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, err
	}
	if len(chart.Chart.Result) == 0 {
		return nil, ErrNoQuote
	}
	return &chart, nil
}

func (qf *quoteFetcher) yahooFetchPrice(ctx context.Context, ticker string) (float64, error) {
	chart, err := qf.yahooChart(ctx, ticker, url.Values{"interval": {"1d"}, "range": {"1d"}})
	if err != nil {
		return 0, err
	}
	result := chart.Chart.Result[0]
	if result.Meta.RegularMarketPrice > 0 {
		return result.Meta.RegularMarketPrice, nil
	}
	if len(result.Indicators.Quote) == 0 {
		return 0, ErrNoQuote
	}
	closes := result.Indicators.Quote[0].Close
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] != nil && *closes[i] > 0 {
			return *closes[i], nil
		}
	}
	return 0, ErrNoQuote
}

func (qf *quoteFetcher) fetchDailyCloses(ctx context.Context, market Market, symbol string) ([]DailyClose, error) {
	market = normalizeMarket(market)
	if market != MarketTW && market != MarketUS {
		return nil, WrapError(ErrCodeInvalidInput, fmt.Sprintf("market %q", market), ErrUnsupportedMarket)
	}
	if strings.TrimSpace(symbol) == "" {
		return nil, invalidInput("symbol required")
	}
	now := qf.now()
	query := url.Values{}
	query.Set("period1", strconv.FormatInt(now.Add(-backtestLookback).Unix(), 10))
	query.Set("period2", strconv.FormatInt(now.Unix(), 10))
	query.Set("interval", "1d")

	ticker := yahooSymbol(market, symbol)
	chart, err := qf.yahooChart(ctx, ticker, query)
	if err != nil {
		return nil, WrapError(ErrCodeUpstream, "fetch daily closes for "+ticker, err)
	}
	result := chart.Chart.Result[0]
	var closes []*float64
	if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}
	rows := make([]DailyClose, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil || !isPositiveFinite(*closes[i]) {
			continue
		}
		rows = append(rows, DailyClose{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Close: *closes[i],
		})
	}
	qf.logger.Debug("daily closes fetched", "ticker", ticker, "rows", len(rows))
	return rows, nil
}

func (qf *quoteFetcher) httpGet(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", quoteUserAgent)
	resp, err := qf.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	// Limit response size; these are third-party endpoints.
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

func parsePrice(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "-" {
		return 0, ErrNoQuote
	}
	return strconv.ParseFloat(value, 64)
}
