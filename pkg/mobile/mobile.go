package mobile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stocktrack/pkg/stocktrack"
)

// Core wraps the stocktrack engine for gomobile bindings. Every method takes
// and returns plain strings, numbers and booleans so it can cross the binding.
type Core struct {
	core *stocktrack.Core
}

// Open initializes the core with a database path.
func Open(dbPath string) (*Core, error) {
	core, err := stocktrack.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Core{core: core}, nil
}

// OpenWithCostBasisOrder is Open with an explicit replay order ("insertion" or "date").
func OpenWithCostBasisOrder(dbPath, order string) (*Core, error) {
	core, err := stocktrack.OpenWithOptions(stocktrack.Options{
		DBPath:         dbPath,
		CostBasisOrder: stocktrack.CostBasisOrder(strings.ToLower(strings.TrimSpace(order))),
	})
	if err != nil {
		return nil, err
	}
	return &Core{core: core}, nil
}

// Close releases resources.
func (c *Core) Close() error {
	if c == nil || c.core == nil {
		return nil
	}
	return c.core.Close()
}

// GetPortfolioJSON returns every holding as JSON.
func (c *Core) GetPortfolioJSON() (string, error) {
	data, err := c.core.LoadPortfolio(context.Background())
	if err != nil {
		return "", err
	}
	return marshalJSON(data)
}

// GetHoldingJSON returns one holding as JSON, or "null" when absent.
func (c *Core) GetHoldingJSON(symbol string) (string, error) {
	data, err := c.core.GetHolding(context.Background(), symbol)
	if err != nil {
		return "", err
	}
	return marshalJSON(data)
}

// AddTransactionJSON records a transaction and returns the updated holding.
func (c *Core) AddTransactionJSON(payloadJSON string) (string, error) {
	var payload transactionPayload
	if err := unmarshalPayload(payloadJSON, &payload); err != nil {
		return "", err
	}
	holding, err := c.core.AddTransaction(context.Background(), stocktrack.AddTransactionRequest{
		Symbol:   strings.TrimSpace(payload.Symbol),
		Name:     payload.Name,
		Market:   stocktrack.Market(strings.ToUpper(strings.TrimSpace(payload.Market))),
		Type:     stocktrack.TransactionType(strings.ToLower(strings.TrimSpace(payload.Type))),
		Quantity: payload.Quantity,
		Price:    payload.Price,
		Date:     payload.Date,
		Note:     payload.Note,
	})
	if err != nil {
		return "", err
	}
	return marshalJSON(holding)
}

// DeleteTransaction removes a transaction and reports whether it existed.
func (c *Core) DeleteTransaction(symbol, transactionID string) (bool, error) {
	return c.core.DeleteTransaction(context.Background(), symbol, transactionID)
}

// GetPortfolioSummaryJSON values the portfolio at the prices in pricesJSON,
// a symbol to price object.
func (c *Core) GetPortfolioSummaryJSON(pricesJSON string) (string, error) {
	prices := map[string]float64{}
	if err := unmarshalPayload(pricesJSON, &prices); err != nil {
		return "", err
	}
	summary, err := c.core.GetPortfolioSummary(context.Background(), prices)
	if err != nil {
		return "", err
	}
	return marshalJSON(summary)
}

// BacktestJSON runs a buy-and-hold backtest over a JSON array of closes.
func (c *Core) BacktestJSON(closesJSON string, tradingDaysPerYear int) (string, error) {
	var closes []float64
	if err := unmarshalPayload(closesJSON, &closes); err != nil {
		return "", err
	}
	if tradingDaysPerYear <= 0 {
		tradingDaysPerYear = c.core.TradingDaysPerYear()
	}
	return marshalJSON(stocktrack.BacktestBuyHold(closes, tradingDaysPerYear))
}

// GetWatchlistJSON returns the watched symbols as a JSON array.
func (c *Core) GetWatchlistJSON() (string, error) {
	symbols, err := c.core.LoadWatchlist(context.Background())
	if err != nil {
		return "", err
	}
	return marshalJSON(symbols)
}

// ToggleWatchlistJSON adds or removes symbol and returns the new list.
func (c *Core) ToggleWatchlistJSON(symbol string) (string, error) {
	symbols, err := c.core.ToggleWatchlistSymbol(context.Background(), symbol)
	if err != nil {
		return "", err
	}
	return marshalJSON(symbols)
}

// GetPriceAlertsJSON returns all alerts, or those for symbol when non-empty.
func (c *Core) GetPriceAlertsJSON(symbol string) (string, error) {
	ctx := context.Background()
	var (
		alerts []stocktrack.PriceAlert
		err    error
	)
	if strings.TrimSpace(symbol) == "" {
		alerts, err = c.core.LoadPriceAlerts(ctx)
	} else {
		alerts, err = c.core.GetAlertsBySymbol(ctx, symbol)
	}
	if err != nil {
		return "", err
	}
	return marshalJSON(alerts)
}

// AddPriceAlertJSON creates an alert and returns it.
func (c *Core) AddPriceAlertJSON(payloadJSON string) (string, error) {
	var payload alertPayload
	if err := unmarshalPayload(payloadJSON, &payload); err != nil {
		return "", err
	}
	alert, err := c.core.AddPriceAlert(context.Background(), stocktrack.AddPriceAlertRequest{
		Symbol:      strings.TrimSpace(payload.Symbol),
		Name:        payload.Name,
		TargetPrice: payload.TargetPrice,
		Condition:   stocktrack.AlertCondition(strings.ToLower(strings.TrimSpace(payload.Condition))),
	})
	if err != nil {
		return "", err
	}
	return marshalJSON(alert)
}

// DeletePriceAlert removes an alert by id.
func (c *Core) DeletePriceAlert(id string) error {
	return c.core.DeletePriceAlert(context.Background(), id)
}

// SetPriceAlertActive enables or disables an alert.
func (c *Core) SetPriceAlertActive(id string, active bool) error {
	return c.core.UpdatePriceAlertStatus(context.Background(), id, active)
}

// CheckPriceAlertsJSON fires alerts against pricesJSON and returns the
// alerts triggered by this call.
func (c *Core) CheckPriceAlertsJSON(pricesJSON string) (string, error) {
	prices := map[string]float64{}
	if err := unmarshalPayload(pricesJSON, &prices); err != nil {
		return "", err
	}
	triggered, err := c.core.CheckPriceAlerts(context.Background(), prices)
	if err != nil {
		return "", err
	}
	return marshalJSON(triggered)
}

// GetSearchHistoryJSON returns recent searches, newest first.
func (c *Core) GetSearchHistoryJSON() (string, error) {
	items, err := c.core.GetSearchHistory(context.Background())
	if err != nil {
		return "", err
	}
	return marshalJSON(items)
}

// AddSearchHistoryJSON records a search and returns the updated history.
func (c *Core) AddSearchHistoryJSON(symbol, name, market string) (string, error) {
	items, err := c.core.AddSearchHistory(context.Background(), stocktrack.SearchHistoryItem{
		Symbol: strings.TrimSpace(symbol),
		Name:   name,
		Market: stocktrack.Market(strings.ToUpper(strings.TrimSpace(market))),
	})
	if err != nil {
		return "", err
	}
	return marshalJSON(items)
}

// ClearSearchHistory drops every recent search.
func (c *Core) ClearSearchHistory() error {
	return c.core.ClearSearchHistory(context.Background())
}

func unmarshalPayload(payloadJSON string, v any) error {
	if strings.TrimSpace(payloadJSON) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(payloadJSON), v); err != nil {
		return stocktrack.WrapError(stocktrack.ErrCodeInvalidInput, "invalid JSON payload", err)
	}
	return nil
}

func marshalJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	return string(data), nil
}

type transactionPayload struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Market   string  `json:"market"`
	Type     string  `json:"type"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Date     int64   `json:"date"`
	Note     string  `json:"note"`
}

type alertPayload struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	TargetPrice float64 `json:"target_price"`
	Condition   string  `json:"condition"`
}
