package stocktrack

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// LoadPortfolio returns every holding in the ledger. An empty ledger yields
// an empty, non-nil slice.
func (c *Core) LoadPortfolio(ctx context.Context) ([]Holding, error) {
	holdings := []Holding{}
	if err := c.loadJSON(ctx, portfolioKey, &holdings); err != nil {
		return nil, err
	}
	if holdings == nil {
		holdings = []Holding{}
	}
	return holdings, nil
}

// SavePortfolio replaces the persisted ledger with holdings.
func (c *Core) SavePortfolio(ctx context.Context, holdings []Holding) error {
	unlock := c.locks.lock(portfolioKey)
	defer unlock()
	return c.savePortfolio(ctx, holdings)
}

func (c *Core) savePortfolio(ctx context.Context, holdings []Holding) error {
	if holdings == nil {
		holdings = []Holding{}
	}
	return c.saveJSON(ctx, portfolioKey, holdings)
}

// AddTransaction records a buy or sell for req.Symbol, creating the holding
// on the first transaction for that symbol. Name and Market are only used
// when the holding is created. Selling more than is held is allowed; callers
// that want to prevent it must check the holding first.
func (c *Core) AddTransaction(ctx context.Context, req AddTransactionRequest) (*Holding, error) {
	if err := validateTransaction(req); err != nil {
		return nil, err
	}

	unlock := c.locks.lock(portfolioKey)
	defer unlock()

	portfolio, err := c.LoadPortfolio(ctx)
	if err != nil {
		return nil, err
	}

	date := req.Date
	if date == 0 {
		date = c.nowMillis()
	}
	id, err := c.newID()
	if err != nil {
		return nil, err
	}
	tx := Transaction{
		ID:       id,
		Type:     req.Type,
		Quantity: req.Quantity,
		Price:    req.Price,
		Date:     date,
		Note:     strings.TrimSpace(req.Note),
	}

	portfolio, idx, err := c.upsertHolding(portfolio, req)
	if err != nil {
		return nil, err
	}
	h := &portfolio[idx]
	h.Transactions = append(h.Transactions, tx)
	c.applyMetrics(h)

	if err := c.savePortfolio(ctx, portfolio); err != nil {
		return nil, err
	}
	c.recordOperation(ctx, "ADD_TRANSACTION", req.Symbol,
		fmt.Sprintf("%s %g @ %g (id %s)", tx.Type, tx.Quantity, tx.Price, tx.ID))

	out := cloneHolding(*h)
	return &out, nil
}

// DeleteTransaction removes the transaction with txID from the holding for
// symbol. It reports false when the symbol has no holding. Deleting an
// unknown id within an existing holding still saves the ledger and reports
// true. The holding itself is removed once its last transaction is gone.
func (c *Core) DeleteTransaction(ctx context.Context, symbol, txID string) (bool, error) {
	unlock := c.locks.lock(portfolioKey)
	defer unlock()

	portfolio, err := c.LoadPortfolio(ctx)
	if err != nil {
		return false, err
	}
	idx := findHolding(portfolio, symbol)
	if idx < 0 {
		return false, nil
	}

	h := &portfolio[idx]
	kept := h.Transactions[:0]
	for _, tx := range h.Transactions {
		if tx.ID != txID {
			kept = append(kept, tx)
		}
	}
	h.Transactions = kept

	if len(h.Transactions) == 0 {
		portfolio = append(portfolio[:idx], portfolio[idx+1:]...)
	} else {
		c.applyMetrics(h)
	}

	if err := c.savePortfolio(ctx, portfolio); err != nil {
		return false, err
	}
	c.recordOperation(ctx, "DELETE_TRANSACTION", symbol, "id "+txID)
	return true, nil
}

// GetHolding returns the holding for symbol, or nil when there is none.
func (c *Core) GetHolding(ctx context.Context, symbol string) (*Holding, error) {
	portfolio, err := c.LoadPortfolio(ctx)
	if err != nil {
		return nil, err
	}
	idx := findHolding(portfolio, symbol)
	if idx < 0 {
		return nil, nil
	}
	h := portfolio[idx]
	return &h, nil
}

// upsertHolding returns the index of the holding for req.Symbol, appending a
// new empty holding when none exists yet.
func (c *Core) upsertHolding(portfolio []Holding, req AddTransactionRequest) ([]Holding, int, error) {
	if idx := findHolding(portfolio, req.Symbol); idx >= 0 {
		return portfolio, idx, nil
	}
	id, err := c.newID()
	if err != nil {
		return nil, 0, err
	}
	portfolio = append(portfolio, Holding{
		ID:           id,
		Symbol:       req.Symbol,
		Name:         strings.TrimSpace(req.Name),
		Market:       normalizeMarket(req.Market),
		Transactions: []Transaction{},
	})
	return portfolio, len(portfolio) - 1, nil
}

func (c *Core) applyMetrics(h *Holding) {
	m := c.computeMetrics(h.Transactions)
	h.TotalShares = m.TotalShares
	h.AverageCost = m.AverageCost
}

func (c *Core) newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", WrapError(ErrCodeInternal, "generate id", err)
	}
	return id.String(), nil
}

func findHolding(portfolio []Holding, symbol string) int {
	for i := range portfolio {
		if portfolio[i].Symbol == symbol {
			return i
		}
	}
	return -1
}

func cloneHolding(h Holding) Holding {
	h.Transactions = append([]Transaction(nil), h.Transactions...)
	return h
}

func validateTransaction(req AddTransactionRequest) error {
	if strings.TrimSpace(req.Symbol) == "" {
		return invalidInput("symbol required")
	}
	if req.Type != Buy && req.Type != Sell {
		return invalidInput("invalid transaction type: %q", req.Type)
	}
	if !isPositiveFinite(req.Quantity) {
		return invalidInput("quantity must be a positive number, got %v", req.Quantity)
	}
	if !isPositiveFinite(req.Price) {
		return invalidInput("price must be a positive number, got %v", req.Price)
	}
	if req.Date < 0 {
		return invalidInput("date must not be negative")
	}
	if m := normalizeMarket(req.Market); m != "" && m != MarketTW && m != MarketUS {
		return invalidInput("invalid market: %q", req.Market)
	}
	return nil
}

func normalizeMarket(m Market) Market {
	return Market(strings.ToUpper(strings.TrimSpace(string(m))))
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
