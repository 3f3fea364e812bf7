package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/portfolioledger/internal/aggregate"
	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/snapshots"
)

// AccountService defines the methods that the account handler requires from
// the service layer.
type AccountService interface {
	Account(id domain.AccountID) (domain.AccountState, error)
	ActiveAccount() domain.AccountID
	SwitchAccount(ctx context.Context, id domain.AccountID) error
	Global() aggregate.Global
	RecyclePnL(ctx context.Context, id domain.AccountID, symbol string) (float64, error)
	SyncAssetBalance(ctx context.Context, id domain.AccountID, symbol string, units float64) error
	ImportAsset(ctx context.Context, id domain.AccountID, symbol string, price float64) (domain.Position, error)
	SetTargetAllocation(ctx context.Context, id domain.AccountID, symbol string, pct float64) error
	SetTargetValue(ctx context.Context, id domain.AccountID, v float64) error
	ResetAccount(ctx context.Context, id domain.AccountID) error
	History(ctx context.Context, id domain.AccountID) ([]domain.DailySnapshot, error)
	Performance(ctx context.Context, id domain.AccountID) (snapshots.Performance, error)
}

// AccountHandler serves account state and account-level mutations.
type AccountHandler struct {
	svc    AccountService
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(svc AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logHandler(logger, "account")}
}

type accountSummary struct {
	ID            domain.AccountID `json:"id"`
	Active        bool             `json:"active"`
	TotalValue    float64          `json:"totalValue"`
	CashValue     float64          `json:"cashValue"`
	Positions     int              `json:"positions"`
	PendingOrders int              `json:"pendingOrders"`
	TargetValue   float64          `json:"targetValue"`
}

// ListAccounts returns a summary of every account.
// GET /api/accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	active := h.svc.ActiveAccount()
	out := make([]accountSummary, 0, len(domain.Accounts()))
	for _, id := range domain.Accounts() {
		st, err := h.svc.Account(id)
		if err != nil {
			continue
		}
		out = append(out, accountSummary{
			ID:            id,
			Active:        id == active,
			TotalValue:    st.TotalValue(),
			CashValue:     st.CashValue(),
			Positions:     len(st.Positions),
			PendingOrders: len(st.PendingOrders),
			TargetValue:   st.TargetValue,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": out, "active": active})
}

// GetAccount returns the full state of one account.
// GET /api/accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	st, err := h.svc.Account(id)
	if err != nil {
		fail(w, r, h.logger, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type switchRequest struct {
	Account string `json:"account"`
}

// SwitchAccount makes another account active.
// PUT /api/accounts/active
func (h *AccountHandler) SwitchAccount(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := domain.ParseAccountID(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.SwitchAccount(r.Context(), id); err != nil {
		fail(w, r, h.logger, "switch account", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": string(id)})
}

// GetGlobal returns the cross-account totals and safety net.
// GET /api/global
func (h *AccountHandler) GetGlobal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Global())
}

type symbolRequest struct {
	Symbol string `json:"symbol"`
}

// RecyclePnL moves the profit of a symbol into the anchor position.
// POST /api/accounts/{id}/recycle
func (h *AccountHandler) RecyclePnL(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req symbolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	moved, err := h.svc.RecyclePnL(r.Context(), id, req.Symbol)
	if err != nil {
		fail(w, r, h.logger, "recycle pnl", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"recycled": moved})
}

type balanceRequest struct {
	Units float64 `json:"units"`
}

// SyncBalance overwrites the unit balance of a held asset.
// PUT /api/accounts/{id}/assets/{symbol}
func (h *AccountHandler) SyncBalance(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req balanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	symbol := r.PathValue("symbol")
	if err := h.svc.SyncAssetBalance(r.Context(), id, symbol, req.Units); err != nil {
		fail(w, r, h.logger, "sync balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": domain.NormalizeSymbol(symbol), "units": req.Units})
}

type importAssetRequest struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// ImportAsset adds a new zero-unit position. A missing price is quoted.
// POST /api/accounts/{id}/assets
func (h *AccountHandler) ImportAsset(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req importAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	pos, err := h.svc.ImportAsset(r.Context(), id, req.Symbol, req.Price)
	if err != nil {
		fail(w, r, h.logger, "import asset", err)
		return
	}
	writeJSON(w, http.StatusCreated, pos)
}

type allocationRequest struct {
	Allocation float64 `json:"allocation"`
}

// SetTargetAllocation sets the target percentage of one symbol.
// PUT /api/accounts/{id}/targets/{symbol}
func (h *AccountHandler) SetTargetAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req allocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	symbol := r.PathValue("symbol")
	if err := h.svc.SetTargetAllocation(r.Context(), id, symbol, req.Allocation); err != nil {
		fail(w, r, h.logger, "set target allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": domain.NormalizeSymbol(symbol), "allocation": req.Allocation})
}

type targetValueRequest struct {
	Value float64 `json:"value"`
}

// SetTargetValue sets the capital goal of the account.
// PUT /api/accounts/{id}/target-value
func (h *AccountHandler) SetTargetValue(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req targetValueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.SetTargetValue(r.Context(), id, req.Value); err != nil {
		fail(w, r, h.logger, "set target value", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"targetValue": req.Value})
}

// ResetAccount restores the seed portfolio and clears the stored ledger.
// POST /api/accounts/{id}/reset
func (h *AccountHandler) ResetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := h.svc.ResetAccount(r.Context(), id); err != nil {
		fail(w, r, h.logger, "reset account", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "account": string(id)})
}

// History returns the daily snapshots of an account, oldest first.
// GET /api/accounts/{id}/history
func (h *AccountHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	hist, err := h.svc.History(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, "history", err)
		return
	}
	if hist == nil {
		hist = []domain.DailySnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": hist})
}

// Performance returns period changes computed from the daily snapshots.
// GET /api/accounts/{id}/performance
func (h *AccountHandler) Performance(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	perf, err := h.svc.Performance(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, "performance", err)
		return
	}
	writeJSON(w, http.StatusOK, perf)
}
