package stocktrack

import (
	"context"
	"math"
)

// CalcMaxDrawdown returns the deepest decline from a running peak, as a
// non-positive percentage (e.g. -12.34). It is 0 for fewer than two prices.
func CalcMaxDrawdown(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	peak := closes[0]
	maxDD := 0.0
	for _, p := range closes {
		if p > peak {
			peak = p
		}
		if dd := (p/peak - 1) * 100; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// BacktestBuyHold evaluates buying at the first close and holding until the
// last. Annualization counts trading days, not calendar days;
// tradingDaysPerYear <= 0 means 240. The win rate is 100 or 0 since the
// strategy is a single trade.
func BacktestBuyHold(closes []float64, tradingDaysPerYear int) BacktestResult {
	if len(closes) < 2 {
		nan := math.NaN()
		return BacktestResult{TotalReturn: nan, AnnualReturn: nan, MaxDrawdown: nan, WinRate: nan, Trades: 0}
	}
	if tradingDaysPerYear <= 0 {
		tradingDaysPerYear = defaultTradingDaysPerYear
	}

	start := closes[0]
	end := closes[len(closes)-1]
	ratio := end / start
	days := len(closes) - 1

	winRate := 0.0
	if end >= start {
		winRate = 100
	}

	return BacktestResult{
		TotalReturn:  finiteOrNaN((ratio - 1) * 100),
		AnnualReturn: finiteOrNaN((math.Pow(ratio, float64(tradingDaysPerYear)/float64(days)) - 1) * 100),
		MaxDrawdown:  finiteOrNaN(CalcMaxDrawdown(closes)),
		WinRate:      winRate,
		Trades:       1,
	}
}

// RunBacktest fetches roughly two years of daily closes for symbol and runs
// a buy-and-hold backtest over them.
func (c *Core) RunBacktest(ctx context.Context, market Market, symbol string) (BacktestResult, []DailyClose, error) {
	rows, err := c.quotes.fetchDailyCloses(ctx, market, symbol)
	if err != nil {
		return BacktestBuyHold(nil, c.tradingDaysPerYear), nil, err
	}
	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = r.Close
	}
	c.logger.Info("backtest run", "symbol", symbol, "market", market, "points", len(closes))
	return BacktestBuyHold(closes, c.tradingDaysPerYear), rows, nil
}

// TradingDaysPerYear returns the annualization basis used by RunBacktest.
func (c *Core) TradingDaysPerYear() int {
	return c.tradingDaysPerYear
}

func finiteOrNaN(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
