package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// PriceService defines the pricing and alert methods the handlers require.
type PriceService interface {
	Symbols() []string
	RefreshPrices(ctx context.Context) (domain.PriceMap, error)
	StartLive(ctx context.Context) error
	StopLive()

	Alerts() []domain.PriceAlert
	AddAlert(ctx context.Context, symbol string, cond domain.AlertCondition, price float64, note string) (domain.PriceAlert, error)
	RemoveAlert(ctx context.Context, id string) error
	ToggleAlert(ctx context.Context, id string) error
	ResetAlert(ctx context.Context, id string) error
	ClearTriggeredAlerts(ctx context.Context) int
}

// PriceHandler serves price refresh, live polling control and alerts.
type PriceHandler struct {
	svc    PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(svc PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{svc: svc, logger: logHandler(logger, "price")}
}

// Refresh fetches quotes for every tracked symbol and applies them. A
// partial failure is reported as a warning next to the prices that did apply.
// POST /api/prices/refresh
func (h *PriceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	prices, err := h.svc.RefreshPrices(r.Context())
	if err != nil && len(prices) == 0 {
		fail(w, r, h.logger, "refresh prices", err)
		return
	}
	body := map[string]any{"prices": prices}
	if err != nil {
		body["warning"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

type liveRequest struct {
	Enabled bool `json:"enabled"`
}

// SetLive starts or stops background price polling. Polling outlives the
// request that started it.
// PUT /api/prices/live
func (h *PriceHandler) SetLive(w http.ResponseWriter, r *http.Request) {
	var req liveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Enabled {
		h.svc.StopLive()
		writeJSON(w, http.StatusOK, map[string]bool{"live": false})
		return
	}
	if err := h.svc.StartLive(context.WithoutCancel(r.Context())); err != nil {
		fail(w, r, h.logger, "start live", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"live": true})
}

// Symbols lists the symbols that are polled.
// GET /api/prices/symbols
func (h *PriceHandler) Symbols(w http.ResponseWriter, r *http.Request) {
	syms := h.svc.Symbols()
	if syms == nil {
		syms = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": syms})
}

// ListAlerts returns every price alert.
// GET /api/alerts
func (h *PriceHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.svc.Alerts()
	if alerts == nil {
		alerts = []domain.PriceAlert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

type alertRequest struct {
	Symbol    string                `json:"symbol"`
	Condition domain.AlertCondition `json:"condition"`
	Price     float64               `json:"price"`
	Note      string                `json:"note"`
}

// AddAlert creates an active price alert.
// POST /api/alerts
func (h *PriceHandler) AddAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := h.svc.AddAlert(r.Context(), req.Symbol, req.Condition, req.Price, req.Note)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// RemoveAlert deletes an alert.
// DELETE /api/alerts/{alertId}
func (h *PriceHandler) RemoveAlert(w http.ResponseWriter, r *http.Request) {
	h.alertOp(w, r, "remove alert", "removed", h.svc.RemoveAlert)
}

// ToggleAlert flips an alert between active and inactive.
// POST /api/alerts/{alertId}/toggle
func (h *PriceHandler) ToggleAlert(w http.ResponseWriter, r *http.Request) {
	h.alertOp(w, r, "toggle alert", "toggled", h.svc.ToggleAlert)
}

// ResetAlert re-arms a triggered alert.
// POST /api/alerts/{alertId}/reset
func (h *PriceHandler) ResetAlert(w http.ResponseWriter, r *http.Request) {
	h.alertOp(w, r, "reset alert", "reset", h.svc.ResetAlert)
}

// ClearTriggered removes every triggered alert.
// DELETE /api/alerts/triggered
func (h *PriceHandler) ClearTriggered(w http.ResponseWriter, r *http.Request) {
	n := h.svc.ClearTriggeredAlerts(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *PriceHandler) alertOp(w http.ResponseWriter, r *http.Request, op, status string, fn func(context.Context, string) error) {
	id := r.PathValue("alertId")
	if err := fn(r.Context(), id); err != nil {
		fail(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "alert_id": id})
}
