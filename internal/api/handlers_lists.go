package api

import (
	"net/http"
	"strings"

	"stocktrack/pkg/stocktrack"
)

func (h *handler) getWatchlist(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.core.LoadWatchlist(r.Context())
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, symbols)
}

func (h *handler) toggleWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathParam(w, r, "symbol")
	if !ok {
		return
	}
	symbols, err := h.core.ToggleWatchlistSymbol(r.Context(), symbol)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	watching := false
	for _, s := range symbols {
		if s == symbol {
			watching = true
			break
		}
	}
	writeJSON(w, http.StatusOK, watchlistToggleResponse{Symbol: symbol, Watching: watching, Symbols: symbols})
}

func (h *handler) getAlerts(w http.ResponseWriter, r *http.Request) {
	var (
		alerts []stocktrack.PriceAlert
		err    error
	)
	if symbol := strings.TrimSpace(r.URL.Query().Get("symbol")); symbol != "" {
		alerts, err = h.core.GetAlertsBySymbol(r.Context(), symbol)
	} else {
		alerts, err = h.core.LoadPriceAlerts(r.Context())
	}
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *handler) addAlert(w http.ResponseWriter, r *http.Request) {
	var payload addAlertPayload
	if !decodeBody(w, r, &payload, false) {
		return
	}
	alert, err := h.core.AddPriceAlert(r.Context(), stocktrack.AddPriceAlertRequest{
		Symbol:      strings.TrimSpace(payload.Symbol),
		Name:        payload.Name,
		TargetPrice: payload.TargetPrice,
		Condition:   stocktrack.AlertCondition(strings.ToLower(strings.TrimSpace(payload.Condition))),
	})
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (h *handler) deleteAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.core.DeletePriceAlert(r.Context(), id); err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) updateAlertStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var payload alertStatusPayload
	if !decodeBody(w, r, &payload, false) {
		return
	}
	if payload.IsActive == nil {
		writeBadRequest(w, r, "is_active required")
		return
	}
	if err := h.core.UpdatePriceAlertStatus(r.Context(), id, *payload.IsActive); err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": *payload.IsActive})
}

func (h *handler) checkAlerts(w http.ResponseWriter, r *http.Request) {
	var payload pricesPayload
	if !decodeBody(w, r, &payload, false) {
		return
	}
	triggered, err := h.core.CheckPriceAlerts(r.Context(), payload.Prices)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, triggered)
}

func (h *handler) getSearchHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.core.GetSearchHistory(r.Context())
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) addSearchHistory(w http.ResponseWriter, r *http.Request) {
	var payload searchHistoryPayload
	if !decodeBody(w, r, &payload, false) {
		return
	}
	items, err := h.core.AddSearchHistory(r.Context(), stocktrack.SearchHistoryItem{
		Symbol: strings.TrimSpace(payload.Symbol),
		Name:   payload.Name,
		Market: stocktrack.Market(strings.ToUpper(strings.TrimSpace(payload.Market))),
	})
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) removeSearchHistory(w http.ResponseWriter, r *http.Request) {
	market, symbol, ok := marketSymbol(w, r)
	if !ok {
		return
	}
	items, err := h.core.RemoveSearchHistoryItem(r.Context(), symbol, market)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) clearSearchHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.core.ClearSearchHistory(r.Context()); err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
