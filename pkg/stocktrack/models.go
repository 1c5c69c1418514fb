package stocktrack

import (
	"encoding/json"
	"math"
)

// TransactionType is the side of a ledger entry.
type TransactionType string

const (
	Buy  TransactionType = "buy"
	Sell TransactionType = "sell"
)

// Market identifies the exchange a symbol trades on.
type Market string

const (
	MarketTW Market = "TW"
	MarketUS Market = "US"
)

// Storage keys. They match the keys used by the mobile client so an exported
// AsyncStorage dump can be imported verbatim.
const (
	portfolioKey     = "@stock_app_portfolio"
	watchlistKey     = "@watchlist_symbols"
	priceAlertsKey   = "@stock_app_price_alerts"
	searchHistoryKey = "@search_history"
)

// Transaction is a single buy or sell entry. Transactions are never edited
// in place, only appended or deleted.
type Transaction struct {
	ID       string          `json:"id"`
	Type     TransactionType `json:"type"`
	Quantity float64         `json:"quantity"`
	Price    float64         `json:"price"`
	Date     int64           `json:"date"`
	Note     string          `json:"note,omitempty"`
}

// Holding is the aggregate position in one symbol. TotalShares and
// AverageCost are derived from Transactions and recomputed on every mutation.
type Holding struct {
	ID           string        `json:"id"`
	Symbol       string        `json:"symbol"`
	Name         string        `json:"name"`
	Market       Market        `json:"market"`
	Transactions []Transaction `json:"transactions"`
	TotalShares  float64       `json:"totalShares"`
	AverageCost  float64       `json:"averageCost"`
}

// AddTransactionRequest defines inputs to add a transaction.
type AddTransactionRequest struct {
	Symbol   string
	Name     string
	Market   Market
	Type     TransactionType
	Quantity float64
	Price    float64
	// Date is epoch milliseconds; zero means now.
	Date int64
	Note string
}

// Metrics is the derived position state of a transaction list.
type Metrics struct {
	TotalShares float64 `json:"totalShares"`
	TotalCost   float64 `json:"totalCost"`
	AverageCost float64 `json:"averageCost"`
}

// ProfitLoss is the valuation of one holding at a given price.
type ProfitLoss struct {
	TotalValue        float64 `json:"totalValue"`
	TotalCost         float64 `json:"totalCost"`
	ProfitLoss        float64 `json:"profitLoss"`
	ProfitLossPercent float64 `json:"profitLossPercent"`
}

// EnrichedHolding is a holding together with its valuation.
type EnrichedHolding struct {
	Holding
	CurrentPrice float64 `json:"currentPrice"`
	ProfitLoss
}

// SummaryTotals aggregates valuation across all holdings.
type SummaryTotals struct {
	TotalValue             float64 `json:"totalValue"`
	TotalCost              float64 `json:"totalCost"`
	TotalProfitLoss        float64 `json:"totalProfitLoss"`
	TotalProfitLossPercent float64 `json:"totalProfitLossPercent"`
}

// PortfolioSummary is the result of GetPortfolioSummary.
type PortfolioSummary struct {
	Holdings []EnrichedHolding `json:"holdings"`
	Summary  SummaryTotals     `json:"summary"`
}

// BacktestResult holds the statistics of a buy-and-hold run. Numeric fields
// are NaN when there was not enough data.
type BacktestResult struct {
	TotalReturn  float64
	AnnualReturn float64
	MaxDrawdown  float64
	WinRate      float64
	Trades       int
}

// MarshalJSON encodes NaN and infinite fields as null.
func (r BacktestResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalReturn  *float64 `json:"totalReturn"`
		AnnualReturn *float64 `json:"annualReturn"`
		MaxDrawdown  *float64 `json:"maxDrawdown"`
		WinRate      *float64 `json:"winRate"`
		Trades       int      `json:"trades"`
	}{
		TotalReturn:  finitePtr(r.TotalReturn),
		AnnualReturn: finitePtr(r.AnnualReturn),
		MaxDrawdown:  finitePtr(r.MaxDrawdown),
		WinRate:      finitePtr(r.WinRate),
		Trades:       r.Trades,
	})
}

// UnmarshalJSON accepts null for any numeric field and decodes it as NaN.
func (r *BacktestResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		TotalReturn  *float64 `json:"totalReturn"`
		AnnualReturn *float64 `json:"annualReturn"`
		MaxDrawdown  *float64 `json:"maxDrawdown"`
		WinRate      *float64 `json:"winRate"`
		Trades       int      `json:"trades"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.TotalReturn = valueOrNaN(raw.TotalReturn)
	r.AnnualReturn = valueOrNaN(raw.AnnualReturn)
	r.MaxDrawdown = valueOrNaN(raw.MaxDrawdown)
	r.WinRate = valueOrNaN(raw.WinRate)
	r.Trades = raw.Trades
	return nil
}

// AlertCondition decides on which side of the target price an alert fires.
type AlertCondition string

const (
	AlertAbove AlertCondition = "above"
	AlertBelow AlertCondition = "below"
)

// PriceAlert is a one-shot notification rule on a symbol price.
type PriceAlert struct {
	ID          string         `json:"id"`
	Symbol      string         `json:"symbol"`
	Name        string         `json:"name"`
	TargetPrice float64        `json:"targetPrice"`
	Condition   AlertCondition `json:"condition"`
	IsActive    bool           `json:"isActive"`
	CreatedAt   int64          `json:"createdAt"`
	TriggeredAt *int64         `json:"triggeredAt"`
}

// AddPriceAlertRequest defines inputs to create a price alert.
type AddPriceAlertRequest struct {
	Symbol      string
	Name        string
	TargetPrice float64
	Condition   AlertCondition
}

// SearchHistoryItem is one recently searched symbol.
type SearchHistoryItem struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Market    Market `json:"market"`
	Timestamp int64  `json:"timestamp"`
}

// Quote is a current price for a symbol.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Market    Market  `json:"market"`
	Price     float64 `json:"price"`
	Source    string  `json:"source"`
	FetchedAt int64   `json:"fetchedAt"`
}

// DailyClose is one end-of-day closing price.
type DailyClose struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// OperationLog is an audit entry for a mutating operation.
type OperationLog struct {
	ID        int64   `json:"id"`
	Operation string  `json:"operation"`
	Symbol    *string `json:"symbol"`
	Details   *string `json:"details"`
	CreatedAt *string `json:"created_at"`
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
