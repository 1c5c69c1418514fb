package stocktrack

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ComputeMetrics replays transactions in list order using average-cost
// accounting. A sell removes a pro-rata share of the accumulated cost
// rather than matching specific lots. Shares may go negative when more is
// sold than was bought; the cost is then left unchanged and AverageCost
// reports 0.
func ComputeMetrics(transactions []Transaction) Metrics {
	shares := decimal.Zero
	cost := decimal.Zero

	for _, tx := range transactions {
		q := decimal.NewFromFloat(tx.Quantity)
		switch tx.Type {
		case Buy:
			shares = shares.Add(q)
			cost = cost.Add(q.Mul(decimal.NewFromFloat(tx.Price)))
		case Sell:
			if shares.IsPositive() {
				cost = cost.Sub(cost.Mul(q).Div(shares))
			}
			shares = shares.Sub(q)
		}
	}

	m := Metrics{TotalShares: shares.InexactFloat64()}
	if shares.IsPositive() {
		m.TotalCost = cost.InexactFloat64()
		m.AverageCost = cost.Div(shares).InexactFloat64()
	}
	return m
}

// ComputeMetricsByDate is ComputeMetrics over a copy of transactions sorted
// by trade date. Entries with the same date keep their list order.
func ComputeMetricsByDate(transactions []Transaction) Metrics {
	sorted := append([]Transaction(nil), transactions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})
	return ComputeMetrics(sorted)
}

// CalculateProfitLoss values a holding at currentPrice. Holdings with no
// shares (or a net short from overselling) are valued at zero.
func CalculateProfitLoss(h *Holding, currentPrice float64) ProfitLoss {
	if h == nil || h.TotalShares <= 0 {
		return ProfitLoss{}
	}
	shares := decimal.NewFromFloat(h.TotalShares)
	totalCost := decimal.NewFromFloat(h.AverageCost).Mul(shares)
	totalValue := decimal.NewFromFloat(currentPrice).Mul(shares)
	pl := totalValue.Sub(totalCost)
	return ProfitLoss{
		TotalValue:        totalValue.InexactFloat64(),
		TotalCost:         totalCost.InexactFloat64(),
		ProfitLoss:        pl.InexactFloat64(),
		ProfitLossPercent: percentOf(pl, totalCost),
	}
}

func percentOf(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

func (c *Core) computeMetrics(transactions []Transaction) Metrics {
	if c.order == OrderDate {
		return ComputeMetricsByDate(transactions)
	}
	return ComputeMetrics(transactions)
}
