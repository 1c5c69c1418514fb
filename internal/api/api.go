package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"stocktrack/pkg/stocktrack"
)

// NewRouter builds the HTTP API router. Request logs go to the core's logger.
func NewRouter(core *stocktrack.Core) http.Handler {
	logger := slog.Default()
	if core != nil {
		logger = core.Logger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLoggingMiddleware(logger))
	r.Use(recoveryLoggingMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(requestIDHeader)

	h := &handler{core: core, logger: logger}

	r.Get("/api/health", h.health)

	r.Route("/api/portfolio", func(r chi.Router) {
		r.Get("/", h.getPortfolio)
		r.Post("/summary", h.portfolioSummary)
		r.Get("/summary/live", h.livePortfolioSummary)
	})

	r.Route("/api/holdings/{symbol}", func(r chi.Router) {
		r.Get("/", h.getHolding)
		r.Post("/transactions", h.addTransaction)
		r.Delete("/transactions/{id}", h.deleteTransaction)
	})

	// Market data
	r.Post("/api/backtest", h.backtestCloses)
	r.Get("/api/backtest/{market}/{symbol}", h.backtestSymbol)
	r.Get("/api/quotes/{market}/{symbol}", h.getQuote)

	r.Get("/api/watchlist", h.getWatchlist)
	r.Post("/api/watchlist/{symbol}/toggle", h.toggleWatchlist)

	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", h.getAlerts)
		r.Post("/", h.addAlert)
		r.Post("/check", h.checkAlerts)
		r.Delete("/{id}", h.deleteAlert)
		r.Put("/{id}/status", h.updateAlertStatus)
	})

	r.Route("/api/search-history", func(r chi.Router) {
		r.Get("/", h.getSearchHistory)
		r.Post("/", h.addSearchHistory)
		r.Delete("/", h.clearSearchHistory)
		r.Delete("/{market}/{symbol}", h.removeSearchHistory)
	})

	r.Get("/api/operation-logs", h.getOperationLogs)
	r.Get("/api/storage", h.getStorageInfo)

	return r
}

type handler struct {
	core   *stocktrack.Core
	logger *slog.Logger
}

// requestIDHeader echoes the request id so clients can quote it in reports.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
