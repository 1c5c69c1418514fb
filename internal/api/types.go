package api

import "stocktrack/pkg/stocktrack"

type addTransactionPayload struct {
	Name     string  `json:"name"`
	Market   string  `json:"market"`
	Type     string  `json:"type"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	// Date is epoch milliseconds; omitted or 0 means now.
	Date int64  `json:"date"`
	Note string `json:"note"`
}

type pricesPayload struct {
	Prices map[string]float64 `json:"prices"`
}

type backtestPayload struct {
	Closes             []float64 `json:"closes"`
	TradingDaysPerYear int       `json:"trading_days_per_year"`
}

type addAlertPayload struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	TargetPrice float64 `json:"target_price"`
	Condition   string  `json:"condition"`
}

type alertStatusPayload struct {
	IsActive *bool `json:"is_active"`
}

type searchHistoryPayload struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

type deleteTransactionResponse struct {
	Deleted bool                `json:"deleted"`
	Holding *stocktrack.Holding `json:"holding"`
}

type symbolBacktestResponse struct {
	Symbol             string                    `json:"symbol"`
	Market             stocktrack.Market         `json:"market"`
	TradingDaysPerYear int                       `json:"trading_days_per_year"`
	Result             stocktrack.BacktestResult `json:"result"`
	Closes             []stocktrack.DailyClose   `json:"closes"`
}

type watchlistToggleResponse struct {
	Symbol   string   `json:"symbol"`
	Watching bool     `json:"watching"`
	Symbols  []string `json:"symbols"`
}
