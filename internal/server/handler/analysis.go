package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/rebalance"
	"github.com/alanyoungcy/portfolioledger/internal/service"
)

// AnalysisService defines the read-only analysis methods.
type AnalysisService interface {
	Rebalance(id domain.AccountID) ([]rebalance.Action, error)
	StressTest(id domain.AccountID, shockPercent float64, target string) (rebalance.StressResult, error)
	Simulate(id domain.AccountID, opts rebalance.SimulationOptions) ([]domain.Position, error)
	Risk(id domain.AccountID) (service.RiskReport, error)
}

// AnalysisHandler serves rebalance suggestions, stress tests, simulations
// and risk reports. Nothing here mutates state.
type AnalysisHandler struct {
	svc    AnalysisService
	logger *slog.Logger
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(svc AnalysisService, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, logger: logHandler(logger, "analysis")}
}

// Rebalance returns the suggested trades for an account.
// GET /api/accounts/{id}/rebalance
func (h *AnalysisHandler) Rebalance(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	actions, err := h.svc.Rebalance(id)
	if err != nil {
		fail(w, r, h.logger, "rebalance", err)
		return
	}
	if actions == nil {
		actions = []rebalance.Action{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// StressTest applies a percentage shock to one symbol or to ALL.
// GET /api/accounts/{id}/stress?shock=-20&target=ALL
func (h *AnalysisHandler) StressTest(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	q := r.URL.Query()
	shock, err := strconv.ParseFloat(q.Get("shock"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "shock must be a number")
		return
	}
	target := strings.TrimSpace(q.Get("target"))
	if target == "" {
		target = rebalance.StressAll
	}
	res, err := h.svc.StressTest(id, shock, target)
	if err != nil {
		fail(w, r, h.logger, "stress test", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type simulateRequest struct {
	PriceOverrides domain.PriceMap `json:"priceOverrides"`
	SimulateFills  bool            `json:"simulateFills"`
	FeeRate        float64         `json:"feeRate"`
}

// Simulate returns the positions under price overrides and simulated fills.
// POST /api/accounts/{id}/simulate
func (h *AnalysisHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req simulateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	positions, err := h.svc.Simulate(id, rebalance.SimulationOptions{
		PriceOverrides: req.PriceOverrides,
		SimulateFills:  req.SimulateFills,
		FeeRate:        req.FeeRate,
	})
	if err != nil {
		fail(w, r, h.logger, "simulate", err)
		return
	}
	var total float64
	for _, p := range positions {
		total += p.CurrentValue
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions, "totalValue": total})
}

// Risk returns the concentration, drawdown and cash health report.
// GET /api/accounts/{id}/risk
func (h *AnalysisHandler) Risk(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	rep, err := h.svc.Risk(id)
	if err != nil {
		fail(w, r, h.logger, "risk", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
