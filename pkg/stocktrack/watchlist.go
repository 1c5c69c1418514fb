package stocktrack

import (
	"context"
	"strings"
)

// LoadWatchlist returns the saved watchlist symbols in the order they were added.
func (c *Core) LoadWatchlist(ctx context.Context) ([]string, error) {
	symbols := []string{}
	if err := c.loadJSON(ctx, watchlistKey, &symbols); err != nil {
		return nil, err
	}
	if symbols == nil {
		symbols = []string{}
	}
	return symbols, nil
}

// SaveWatchlist replaces the watchlist.
func (c *Core) SaveWatchlist(ctx context.Context, symbols []string) error {
	unlock := c.locks.lock(watchlistKey)
	defer unlock()
	if symbols == nil {
		symbols = []string{}
	}
	return c.saveJSON(ctx, watchlistKey, symbols)
}

// ToggleWatchlistSymbol adds symbol to the watchlist, or removes it when it
// is already there, and returns the updated list.
func (c *Core) ToggleWatchlistSymbol(ctx context.Context, symbol string) ([]string, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, invalidInput("symbol required")
	}
	unlock := c.locks.lock(watchlistKey)
	defer unlock()

	current, err := c.LoadWatchlist(ctx)
	if err != nil {
		return nil, err
	}
	next := make([]string, 0, len(current)+1)
	found := false
	for _, s := range current {
		if s == symbol {
			found = true
			continue
		}
		next = append(next, s)
	}
	if !found {
		next = append(next, symbol)
	}
	if err := c.saveJSON(ctx, watchlistKey, next); err != nil {
		return nil, err
	}
	return next, nil
}
