// Package api provides the HTTP REST API server for StockLeague.
//
// It exposes endpoints for live and historical prices, portfolio
// management, the leaderboard, stock news, DCF valuation, and
// WebSocket quote streaming.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/stockleague/stockleague/internal/config"
	"github.com/stockleague/stockleague/internal/leaderboard"
	"github.com/stockleague/stockleague/internal/market"
	"github.com/stockleague/stockleague/internal/portfolio"
	"github.com/stockleague/stockleague/internal/store"
	"github.com/stockleague/stockleague/internal/valuation"
	"github.com/stockleague/stockleague/pkg/models"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	prices *market.Service
	news   *market.News
	store  store.PortfolioStore
	tiers  leaderboard.TierThresholds
	wsHub  *WSHub
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, prices *market.Service, news *market.News, st store.PortfolioStore) *Server {
	srv := &Server{
		cfg:    cfg,
		prices: prices,
		news:   news,
		store:  st,
		tiers:  leaderboard.ThresholdsFromConfig(cfg.Leaderboard),
		wsHub:  NewWSHub(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.wsHub.Run()
	go s.runQuotePusher(ctx)
	s.prices.StartCacheSweeper(ctx, time.Minute)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	slog.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(clientRateLimit(s.cfg.API))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health (also available at /health)
		r.Get("/health", s.handleHealth)

		// Status (config key visibility)
		r.Get("/status", s.handleStatus)

		// Prices
		r.Get("/prices/{symbol}", s.handlePrice)
		r.Post("/prices/batch", s.handleBatchPrices)

		// Stock data
		r.Get("/stocks/{symbol}/history", s.handleHistory)
		r.Get("/stocks/{symbol}/news", s.handleStockNews)
		r.Get("/stocks/{symbol}/fundamentals", s.handleFundamentals)

		// Market-wide news
		r.Get("/news", s.handleMarketNews)

		// Portfolio
		r.Get("/portfolio/{username}", s.handleGetPortfolio)
		r.Post("/portfolio", s.handleUpsertPortfolio)

		// Leaderboard
		r.Get("/leaderboard", s.handleLeaderboard)

		// DCF valuation
		r.Post("/dcf", s.handleDCF)

		// WebSocket quote stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// BatchPricesRequest is the body for POST /api/v1/prices/batch.
type BatchPricesRequest struct {
	Symbols []string `json:"symbols"`
}

// PortfolioView pairs a saved portfolio with its derived valuation.
type PortfolioView struct {
	Portfolio models.Portfolio        `json:"portfolio"`
	Metrics   models.PortfolioMetrics `json:"metrics"`
}

// DCFRequest is the body for POST /api/v1/dcf. TaxRate is a pointer so
// an omitted field can fall back to the statutory default while an
// explicit zero stays untaxed.
type DCFRequest struct {
	valuation.Input
	TaxRate *float64 `json:"tax_rate"`
}

// maxBatchSymbols caps one batch price request.
const maxBatchSymbols = 100

// ============================================================
// Health & status handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":     "ok",
			"provider":   s.prices.ProviderName(),
			"cache_size": s.prices.CacheSize(),
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"provider": s.prices.ProviderName(),
			"keys":     config.CheckAPIKeys(s.cfg),
		},
	})
}

// ============================================================
// Price handlers
// ============================================================

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	// ?fallback=false opts out of fallback recovery and surfaces
	// provider errors to the caller.
	if r.URL.Query().Get("fallback") == "false" {
		pp, err := s.prices.CurrentPriceStrict(ctx, symbol)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: pp})
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.prices.CurrentPrice(ctx, symbol),
	})
}

func (s *Server) handleBatchPrices(w http.ResponseWriter, r *http.Request) {
	var req BatchPricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}
	if len(req.Symbols) > maxBatchSymbols {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("too many symbols; max %d", maxBatchSymbols))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.prices.BatchCurrentPrices(ctx, req.Symbols),
	})
}

// ============================================================
// Stock data handlers
// ============================================================

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	days := 30
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > 3650 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 3650")
			return
		}
		days = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	bars, err := s.prices.History(ctx, symbol, days)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: bars})
}

func (s *Server) handleStockNews(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	limit := parseLimit(r, 10)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	articles, err := s.news.StockNews(ctx, symbol, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: articles})
}

func (s *Server) handleMarketNews(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	articles, err := s.news.MarketNews(ctx, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: articles})
}

func (s *Server) handleFundamentals(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	f, err := s.prices.Fundamentals(ctx, symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: f})
}

// ============================================================
// Portfolio handlers
// ============================================================

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	p, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no portfolio for %q", username))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Valuation is derived on read; nothing computed is ever persisted.
	prices := s.prices.BatchCurrentPrices(ctx, p.Symbols())
	metrics := portfolio.Calculate(*p, prices, nil)

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    PortfolioView{Portfolio: *p, Metrics: metrics},
	})
}

func (s *Server) handleUpsertPortfolio(w http.ResponseWriter, r *http.Request) {
	var p models.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.UserID == "" || p.Username == "" {
		writeError(w, http.StatusBadRequest, "user_id and username are required")
		return
	}
	for i, pos := range p.Positions {
		if pos.Symbol == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("position %d: symbol is required", i))
			return
		}
		if pos.Shares < 0 || pos.AvgPrice < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("position %d: shares and avg_price must be non-negative", i))
			return
		}
		// Held shares need a real cost basis.
		if pos.Shares > 0 && pos.AvgPrice <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("position %d: avg_price must be positive when shares are held", i))
			return
		}
		p.Positions[i].Symbol = strings.ToUpper(pos.Symbol)
	}

	// Cost basis is fixed at save time.
	if p.TotalInvested == 0 {
		for _, pos := range p.Positions {
			p.TotalInvested += pos.Shares * pos.AvgPrice
		}
	}
	p.UpdatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := s.store.Upsert(ctx, p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: p})
}

// ============================================================
// Leaderboard handler
// ============================================================

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	since := r.URL.Query().Get("since")
	if since != "" {
		if _, err := time.Parse("2006-01-02", since); err != nil {
			writeError(w, http.StatusBadRequest, "invalid since date; use YYYY-MM-DD")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	portfolios, err := s.store.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	symbols := collectSymbols(portfolios)
	prices := s.prices.BatchCurrentPrices(ctx, symbols)

	var historical map[string]float64
	if since != "" {
		historical, err = s.historicalSnapshot(ctx, symbols, since)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    leaderboard.Build(portfolios, prices, historical, s.tiers),
	})
}

// historicalSnapshot fetches the closing price on a date for every symbol
// concurrently. Symbols with no data on that date are simply left out of
// the map, which lets the calculator fall back to cost basis.
func (s *Server) historicalSnapshot(ctx context.Context, symbols []string, date string) (map[string]float64, error) {
	var mu sync.Mutex
	historical := make(map[string]float64, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			price, ok := s.prices.HistoricalPrice(gctx, sym, date)
			if !ok {
				return nil
			}
			mu.Lock()
			historical[sym] = price
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return historical, nil
}

// collectSymbols returns the distinct symbols across all portfolios in
// first-encountered order.
func collectSymbols(portfolios []models.Portfolio) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range portfolios {
		for _, sym := range p.Symbols() {
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}

// ============================================================
// DCF handler
// ============================================================

func (s *Server) handleDCF(w http.ResponseWriter, r *http.Request) {
	var req DCFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Input.SharesOutstanding <= 0 {
		writeError(w, http.StatusBadRequest, "shares_outstanding must be positive")
		return
	}

	in := req.Input
	if req.TaxRate != nil {
		in.TaxRate = *req.TaxRate
	} else {
		in.TaxRate = valuation.DefaultTaxRate
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    valuation.Compute(in),
	})
}

// ============================================================
// Quote pusher
// ============================================================

// runQuotePusher periodically refreshes quotes for every symbol held in a
// stored portfolio and broadcasts them to WebSocket clients.
func (s *Server) runQuotePusher(ctx context.Context) {
	period := time.Duration(s.cfg.Market.QuotePushSec) * time.Second
	if period <= 0 {
		period = 30 * time.Second
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.wsHub.ClientCount() == 0 {
				continue
			}

			portfolios, err := s.store.List(ctx)
			if err != nil {
				slog.Warn("quote push skipped", slog.String("err", err.Error()))
				continue
			}
			symbols := collectSymbols(portfolios)
			if len(symbols) == 0 {
				continue
			}

			s.wsHub.Broadcast(WSMessage{
				Type: "quote_update",
				Data: s.prices.BatchCurrentPrices(ctx, symbols),
			})
		}
	}
}

// ============================================================
// Helpers
// ============================================================

// parseLimit reads a ?limit= query parameter, falling back to def when
// absent or unparsable.
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
