package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"stocktrack/pkg/stocktrack"
)

const maxBodyBytes = 1 << 20

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) getPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.core.LoadPortfolio(r.Context())
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolio)
}

func (h *handler) portfolioSummary(w http.ResponseWriter, r *http.Request) {
	var payload pricesPayload
	if !decodeBody(w, r, &payload, true) {
		return
	}
	summary, err := h.core.GetPortfolioSummary(r.Context(), payload.Prices)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) livePortfolioSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.core.RefreshPortfolioSummary(r.Context())
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) getHolding(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathParam(w, r, "symbol")
	if !ok {
		return
	}
	holding, err := h.core.GetHolding(r.Context(), symbol)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	if holding == nil {
		writeErrorResponse(w, r, stocktrack.NewError(stocktrack.ErrCodeNotFound, "no holding for "+symbol))
		return
	}
	writeJSON(w, http.StatusOK, holding)
}

func (h *handler) addTransaction(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathParam(w, r, "symbol")
	if !ok {
		return
	}
	var payload addTransactionPayload
	if !decodeBody(w, r, &payload, false) {
		return
	}
	holding, err := h.core.AddTransaction(r.Context(), stocktrack.AddTransactionRequest{
		Symbol:   symbol,
		Name:     payload.Name,
		Market:   stocktrack.Market(payload.Market),
		Type:     stocktrack.TransactionType(strings.ToLower(strings.TrimSpace(payload.Type))),
		Quantity: payload.Quantity,
		Price:    payload.Price,
		Date:     payload.Date,
		Note:     payload.Note,
	})
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, holding)
}

func (h *handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathParam(w, r, "symbol")
	if !ok {
		return
	}
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	deleted, err := h.core.DeleteTransaction(r.Context(), symbol, id)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	resp := deleteTransactionResponse{Deleted: deleted}
	if deleted {
		holding, err := h.core.GetHolding(r.Context(), symbol)
		if err != nil {
			writeErrorResponse(w, r, err)
			return
		}
		resp.Holding = holding
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) backtestCloses(w http.ResponseWriter, r *http.Request) {
	var payload backtestPayload
	if !decodeBody(w, r, &payload, false) {
		return
	}
	if payload.TradingDaysPerYear < 0 {
		writeBadRequest(w, r, "trading_days_per_year must not be negative")
		return
	}
	days := payload.TradingDaysPerYear
	if days == 0 {
		days = h.core.TradingDaysPerYear()
	}
	writeJSON(w, http.StatusOK, stocktrack.BacktestBuyHold(payload.Closes, days))
}

func (h *handler) backtestSymbol(w http.ResponseWriter, r *http.Request) {
	market, symbol, ok := marketSymbol(w, r)
	if !ok {
		return
	}
	result, closes, err := h.core.RunBacktest(r.Context(), market, symbol)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, symbolBacktestResponse{
		Symbol:             symbol,
		Market:             market,
		TradingDaysPerYear: h.core.TradingDaysPerYear(),
		Result:             result,
		Closes:             closes,
	})
}

func (h *handler) getQuote(w http.ResponseWriter, r *http.Request) {
	market, symbol, ok := marketSymbol(w, r)
	if !ok {
		return
	}
	quote, err := h.core.FetchQuote(r.Context(), market, symbol)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *handler) getOperationLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	logs, err := h.core.GetOperationLogs(r.Context(),
		parseIntDefault(query.Get("limit"), 50),
		parseIntDefault(query.Get("offset"), 0),
	)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// decodeBody decodes a JSON request body into dst, writing a 400 on
// failure. An empty body is accepted when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		writeBadRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)
	value, err := url.PathUnescape(raw)
	if err != nil {
		writeBadRequest(w, r, fmt.Sprintf("invalid %s: %q", name, raw))
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		writeBadRequest(w, r, name+" required")
		return "", false
	}
	return value, true
}

func marketSymbol(w http.ResponseWriter, r *http.Request) (stocktrack.Market, string, bool) {
	market, ok := pathParam(w, r, "market")
	if !ok {
		return "", "", false
	}
	symbol, ok := pathParam(w, r, "symbol")
	if !ok {
		return "", "", false
	}
	return stocktrack.Market(strings.ToUpper(market)), symbol, true
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}
