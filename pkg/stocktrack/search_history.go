package stocktrack

import (
	"context"
	"strings"
)

const maxSearchHistory = 10

// GetSearchHistory returns recent searches, newest first.
func (c *Core) GetSearchHistory(ctx context.Context) ([]SearchHistoryItem, error) {
	items := []SearchHistoryItem{}
	if err := c.loadJSON(ctx, searchHistoryKey, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []SearchHistoryItem{}
	}
	return items, nil
}

// AddSearchHistory moves item to the front of the history, dropping any
// earlier entry for the same symbol and market, and keeps at most 10 items.
func (c *Core) AddSearchHistory(ctx context.Context, item SearchHistoryItem) ([]SearchHistoryItem, error) {
	if strings.TrimSpace(item.Symbol) == "" {
		return nil, invalidInput("symbol required")
	}
	unlock := c.locks.lock(searchHistoryKey)
	defer unlock()

	history, err := c.GetSearchHistory(ctx)
	if err != nil {
		return nil, err
	}
	item.Timestamp = c.nowMillis()
	next := make([]SearchHistoryItem, 0, maxSearchHistory)
	next = append(next, item)
	for _, h := range history {
		if len(next) == maxSearchHistory {
			break
		}
		if h.Symbol == item.Symbol && h.Market == item.Market {
			continue
		}
		next = append(next, h)
	}
	if err := c.saveJSON(ctx, searchHistoryKey, next); err != nil {
		return nil, err
	}
	return next, nil
}

// RemoveSearchHistoryItem drops the entry for symbol and market.
func (c *Core) RemoveSearchHistoryItem(ctx context.Context, symbol string, market Market) ([]SearchHistoryItem, error) {
	unlock := c.locks.lock(searchHistoryKey)
	defer unlock()

	history, err := c.GetSearchHistory(ctx)
	if err != nil {
		return nil, err
	}
	next := make([]SearchHistoryItem, 0, len(history))
	for _, h := range history {
		if h.Symbol == symbol && h.Market == market {
			continue
		}
		next = append(next, h)
	}
	if err := c.saveJSON(ctx, searchHistoryKey, next); err != nil {
		return nil, err
	}
	return next, nil
}

// ClearSearchHistory removes all search history.
func (c *Core) ClearSearchHistory(ctx context.Context) error {
	unlock := c.locks.lock(searchHistoryKey)
	defer unlock()
	return c.deleteKey(ctx, searchHistoryKey)
}
