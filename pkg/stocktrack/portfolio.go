package stocktrack

import (
	"context"

	"github.com/shopspring/decimal"
)

// GetPortfolioSummary values every holding at currentPrices[symbol] (0 when
// missing) and aggregates the totals.
func (c *Core) GetPortfolioSummary(ctx context.Context, currentPrices map[string]float64) (PortfolioSummary, error) {
	portfolio, err := c.LoadPortfolio(ctx)
	if err != nil {
		return PortfolioSummary{Holdings: []EnrichedHolding{}}, err
	}
	return summarize(portfolio, currentPrices), nil
}

// RefreshPortfolioSummary fetches a quote for every holding and returns the
// resulting summary. Holdings whose quote cannot be fetched are valued at 0.
func (c *Core) RefreshPortfolioSummary(ctx context.Context) (PortfolioSummary, error) {
	portfolio, err := c.LoadPortfolio(ctx)
	if err != nil {
		return PortfolioSummary{Holdings: []EnrichedHolding{}}, err
	}
	prices := make(map[string]float64, len(portfolio))
	for _, h := range portfolio {
		if err := ctx.Err(); err != nil {
			return PortfolioSummary{Holdings: []EnrichedHolding{}}, err
		}
		q, err := c.quotes.fetchQuote(ctx, h.Market, h.Symbol)
		if err != nil {
			c.logger.Warn("quote unavailable; valuing holding at 0", "symbol", h.Symbol, "market", h.Market, "err", err)
			continue
		}
		prices[h.Symbol] = q.Price
	}
	return summarize(portfolio, prices), nil
}

func summarize(portfolio []Holding, currentPrices map[string]float64) PortfolioSummary {
	totalValue := decimal.Zero
	totalCost := decimal.Zero

	holdings := make([]EnrichedHolding, 0, len(portfolio))
	for i := range portfolio {
		h := portfolio[i]
		price := currentPrices[h.Symbol]
		pl := CalculateProfitLoss(&h, price)
		totalValue = totalValue.Add(decimal.NewFromFloat(pl.TotalValue))
		totalCost = totalCost.Add(decimal.NewFromFloat(pl.TotalCost))
		holdings = append(holdings, EnrichedHolding{
			Holding:      h,
			CurrentPrice: price,
			ProfitLoss:   pl,
		})
	}

	totalPL := totalValue.Sub(totalCost)
	return PortfolioSummary{
		Holdings: holdings,
		Summary: SummaryTotals{
			TotalValue:             totalValue.InexactFloat64(),
			TotalCost:              totalCost.InexactFloat64(),
			TotalProfitLoss:        totalPL.InexactFloat64(),
			TotalProfitLossPercent: percentOf(totalPL, totalCost),
		},
	}
}
