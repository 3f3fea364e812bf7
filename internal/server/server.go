// Package server exposes the portfolio engine and the Ledger Store over
// HTTP, with live events over WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/server/handler"
	"github.com/alanyoungcy/portfolioledger/internal/server/middleware"
	"github.com/alanyoungcy/portfolioledger/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers to register. Nil groups are not
// mounted: store mode serves only Ledger, engine mode everything else.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Accounts *handler.AccountHandler
	Trades   *handler.TradeHandler
	Prices   *handler.PriceHandler
	Analysis *handler.AnalysisHandler
	Backups  *handler.BackupHandler
	Audit    *handler.AuditHandler
	Ledger   *handler.LedgerHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer registers every mounted route and wraps the mux in the
// auth, logging and CORS middleware.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if handlers.Health == nil {
		handlers.Health = handler.NewHealthHandler(logger)
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/ready", handlers.Health.Readiness)
	if h := handlers.Status; h != nil {
		mux.HandleFunc("GET /api/status", h.GetStatus)
	}

	if h := handlers.Accounts; h != nil {
		mux.HandleFunc("GET /api/accounts", h.ListAccounts)
		mux.HandleFunc("PUT /api/accounts/active", h.SwitchAccount)
		mux.HandleFunc("GET /api/accounts/{id}", h.GetAccount)
		mux.HandleFunc("POST /api/accounts/{id}/recycle", h.RecyclePnL)
		mux.HandleFunc("POST /api/accounts/{id}/assets", h.ImportAsset)
		mux.HandleFunc("PUT /api/accounts/{id}/assets/{symbol}", h.SyncBalance)
		mux.HandleFunc("PUT /api/accounts/{id}/targets/{symbol}", h.SetTargetAllocation)
		mux.HandleFunc("PUT /api/accounts/{id}/target-value", h.SetTargetValue)
		mux.HandleFunc("POST /api/accounts/{id}/reset", h.ResetAccount)
		mux.HandleFunc("GET /api/accounts/{id}/history", h.History)
		mux.HandleFunc("GET /api/accounts/{id}/performance", h.Performance)
		mux.HandleFunc("GET /api/global", h.GetGlobal)
	}

	if h := handlers.Trades; h != nil {
		mux.HandleFunc("POST /api/accounts/{id}/trades", h.ExecuteTrade)
		mux.HandleFunc("POST /api/accounts/{id}/orders", h.AddOrder)
		mux.HandleFunc("DELETE /api/accounts/{id}/orders/{orderId}", h.KillOrder)
		mux.HandleFunc("POST /api/accounts/{id}/orders/{orderId}/fill", h.FillOrder)
		mux.HandleFunc("DELETE /api/accounts/{id}/journal/{entryId}", h.RemoveJournalEntry)
	}

	if h := handlers.Prices; h != nil {
		mux.HandleFunc("POST /api/prices/refresh", h.Refresh)
		mux.HandleFunc("PUT /api/prices/live", h.SetLive)
		mux.HandleFunc("GET /api/prices/symbols", h.Symbols)
		mux.HandleFunc("GET /api/alerts", h.ListAlerts)
		mux.HandleFunc("POST /api/alerts", h.AddAlert)
		mux.HandleFunc("DELETE /api/alerts/triggered", h.ClearTriggered)
		mux.HandleFunc("DELETE /api/alerts/{alertId}", h.RemoveAlert)
		mux.HandleFunc("POST /api/alerts/{alertId}/toggle", h.ToggleAlert)
		mux.HandleFunc("POST /api/alerts/{alertId}/reset", h.ResetAlert)
	}

	if h := handlers.Analysis; h != nil {
		mux.HandleFunc("GET /api/accounts/{id}/rebalance", h.Rebalance)
		mux.HandleFunc("GET /api/accounts/{id}/stress", h.StressTest)
		mux.HandleFunc("POST /api/accounts/{id}/simulate", h.Simulate)
		mux.HandleFunc("GET /api/accounts/{id}/risk", h.Risk)
	}

	if h := handlers.Backups; h != nil {
		mux.HandleFunc("GET /api/accounts/{id}/backup", h.Export)
		mux.HandleFunc("POST /api/backup", h.Import)
		mux.HandleFunc("POST /api/accounts/{id}/archives", h.Archive)
		mux.HandleFunc("GET /api/accounts/{id}/archives", h.ListArchives)
		mux.HandleFunc("POST /api/archives/restore", h.Restore)
		mux.HandleFunc("POST /api/accounts/{id}/paste/preview", h.PreviewPaste)
		mux.HandleFunc("POST /api/accounts/{id}/paste/commit", h.CommitPaste)
	}

	if h := handlers.Audit; h != nil {
		mux.HandleFunc("GET /api/audit", h.List)
	}

	// Ledger Store API, consumed by store/remote.
	if h := handlers.Ledger; h != nil {
		mux.HandleFunc("GET /accounts/{id}", h.Fetch)
		mux.HandleFunc("POST /accounts/{id}/sync", h.Sync)
		mux.HandleFunc("DELETE /accounts/{id}/journal/{entryId}", h.DeleteJournalEntry)
		mux.HandleFunc("POST /accounts/{id}/reset", h.Reset)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/api/ready")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		handler: h,
		logger:  logger,
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
