package stocktrack

import (
	"context"
	"fmt"
	"strings"
)

// LoadPriceAlerts returns all price alerts.
func (c *Core) LoadPriceAlerts(ctx context.Context) ([]PriceAlert, error) {
	alerts := []PriceAlert{}
	if err := c.loadJSON(ctx, priceAlertsKey, &alerts); err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []PriceAlert{}
	}
	return alerts, nil
}

// SavePriceAlerts replaces all price alerts.
func (c *Core) SavePriceAlerts(ctx context.Context, alerts []PriceAlert) error {
	unlock := c.locks.lock(priceAlertsKey)
	defer unlock()
	return c.savePriceAlerts(ctx, alerts)
}

func (c *Core) savePriceAlerts(ctx context.Context, alerts []PriceAlert) error {
	if alerts == nil {
		alerts = []PriceAlert{}
	}
	return c.saveJSON(ctx, priceAlertsKey, alerts)
}

// AddPriceAlert creates an active alert.
func (c *Core) AddPriceAlert(ctx context.Context, req AddPriceAlertRequest) (*PriceAlert, error) {
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, invalidInput("symbol required")
	}
	if !isPositiveFinite(req.TargetPrice) {
		return nil, invalidInput("target price must be a positive number, got %v", req.TargetPrice)
	}
	if req.Condition != AlertAbove && req.Condition != AlertBelow {
		return nil, invalidInput("invalid alert condition: %q", req.Condition)
	}
	id, err := c.newID()
	if err != nil {
		return nil, err
	}

	unlock := c.locks.lock(priceAlertsKey)
	defer unlock()

	alerts, err := c.LoadPriceAlerts(ctx)
	if err != nil {
		return nil, err
	}
	alert := PriceAlert{
		ID:          id,
		Symbol:      req.Symbol,
		Name:        strings.TrimSpace(req.Name),
		TargetPrice: req.TargetPrice,
		Condition:   req.Condition,
		IsActive:    true,
		CreatedAt:   c.nowMillis(),
	}
	alerts = append(alerts, alert)
	if err := c.savePriceAlerts(ctx, alerts); err != nil {
		return nil, err
	}
	c.recordOperation(ctx, "ADD_PRICE_ALERT", alert.Symbol,
		fmt.Sprintf("%s %g (id %s)", alert.Condition, alert.TargetPrice, alert.ID))
	return &alert, nil
}

// DeletePriceAlert removes the alert with id. Unknown ids are a no-op.
func (c *Core) DeletePriceAlert(ctx context.Context, id string) error {
	unlock := c.locks.lock(priceAlertsKey)
	defer unlock()

	alerts, err := c.LoadPriceAlerts(ctx)
	if err != nil {
		return err
	}
	kept := make([]PriceAlert, 0, len(alerts))
	for _, a := range alerts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	return c.savePriceAlerts(ctx, kept)
}

// UpdatePriceAlertStatus enables or disables an alert.
func (c *Core) UpdatePriceAlertStatus(ctx context.Context, id string, active bool) error {
	return c.updateAlert(ctx, id, func(a *PriceAlert) {
		a.IsActive = active
	})
}

// MarkAlertTriggered deactivates an alert and stamps its trigger time.
func (c *Core) MarkAlertTriggered(ctx context.Context, id string) error {
	now := c.nowMillis()
	return c.updateAlert(ctx, id, func(a *PriceAlert) {
		a.IsActive = false
		a.TriggeredAt = &now
	})
}

func (c *Core) updateAlert(ctx context.Context, id string, fn func(*PriceAlert)) error {
	unlock := c.locks.lock(priceAlertsKey)
	defer unlock()

	alerts, err := c.LoadPriceAlerts(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range alerts {
		if alerts[i].ID == id {
			fn(&alerts[i])
			found = true
		}
	}
	if !found {
		return NewError(ErrCodeNotFound, "price alert not found: "+id)
	}
	return c.savePriceAlerts(ctx, alerts)
}

// GetAlertsBySymbol returns the alerts registered for symbol.
func (c *Core) GetAlertsBySymbol(ctx context.Context, symbol string) ([]PriceAlert, error) {
	alerts, err := c.LoadPriceAlerts(ctx)
	if err != nil {
		return nil, err
	}
	out := []PriceAlert{}
	for _, a := range alerts {
		if a.Symbol == symbol {
			out = append(out, a)
		}
	}
	return out, nil
}

// CheckPriceAlerts evaluates every active alert against currentPrices.
// Alerts without a positive price are skipped. Triggered alerts are
// deactivated in a single save and returned as they were before triggering.
func (c *Core) CheckPriceAlerts(ctx context.Context, currentPrices map[string]float64) ([]PriceAlert, error) {
	unlock := c.locks.lock(priceAlertsKey)
	defer unlock()

	alerts, err := c.LoadPriceAlerts(ctx)
	if err != nil {
		return nil, err
	}
	now := c.nowMillis()
	triggered := []PriceAlert{}
	for i := range alerts {
		a := &alerts[i]
		if !a.IsActive {
			continue
		}
		price, ok := currentPrices[a.Symbol]
		if !ok || price <= 0 {
			continue
		}
		if !alertFires(*a, price) {
			continue
		}
		triggered = append(triggered, *a)
		a.IsActive = false
		a.TriggeredAt = &now
	}
	if len(triggered) == 0 {
		return triggered, nil
	}
	if err := c.savePriceAlerts(ctx, alerts); err != nil {
		return nil, err
	}
	for _, a := range triggered {
		c.recordOperation(ctx, "ALERT_TRIGGERED", a.Symbol,
			fmt.Sprintf("%s %g at %g", a.Condition, a.TargetPrice, currentPrices[a.Symbol]))
	}
	return triggered, nil
}

func alertFires(a PriceAlert, price float64) bool {
	switch a.Condition {
	case AlertAbove:
		return price >= a.TargetPrice
	case AlertBelow:
		return price <= a.TargetPrice
	}
	return false
}
