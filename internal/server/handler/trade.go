package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
)

// TradeService defines the methods that the trade handler requires from the
// service layer.
type TradeService interface {
	ExecuteTrade(ctx context.Context, id domain.AccountID, entry domain.JournalEntry) (ledger.TradeResult, error)
	AddOrder(ctx context.Context, id domain.AccountID, order domain.PendingOrder) (domain.PendingOrder, error)
	KillOrder(ctx context.Context, id domain.AccountID, orderID string) error
	FillOrder(ctx context.Context, id domain.AccountID, orderID string) (ledger.TradeResult, error)
	RemoveJournalEntry(ctx context.Context, id domain.AccountID, entryID string) error
}

// TradeHandler serves trade execution, pending orders and the journal.
type TradeHandler struct {
	svc    TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(svc TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{svc: svc, logger: logHandler(logger, "trade")}
}

// tradeRequest is a journal entry as submitted by clients. Units and price
// are required for buys and sells and ignored for notes.
type tradeRequest struct {
	ID        string           `json:"id"`
	Type      domain.EntryType `json:"type"`
	Symbol    string           `json:"symbol"`
	Units     *float64         `json:"units"`
	Price     *float64         `json:"price"`
	Notes     string           `json:"notes"`
	Timestamp *time.Time       `json:"timestamp"`
}

func (t tradeRequest) entry() domain.JournalEntry {
	e := domain.JournalEntry{
		ID:     t.ID,
		Type:   t.Type,
		Symbol: t.Symbol,
		Units:  t.Units,
		Price:  t.Price,
		Notes:  t.Notes,
	}
	if t.Timestamp != nil {
		e.Timestamp = *t.Timestamp
	}
	return e
}

type tradeResponse struct {
	Entry     domain.JournalEntry `json:"entry"`
	Gross     float64             `json:"gross"`
	Fee       float64             `json:"fee"`
	Net       float64             `json:"net"`
	Applied   bool                `json:"applied"`
	Duplicate bool                `json:"duplicate"`
}

func newTradeResponse(res ledger.TradeResult) tradeResponse {
	return tradeResponse{
		Entry:     res.Entry,
		Gross:     res.Gross,
		Fee:       res.Fee,
		Net:       res.Net,
		Applied:   res.Applied,
		Duplicate: res.Duplicate,
	}
}

// ExecuteTrade journals a trade or note and applies it to the balances.
// POST /api/accounts/{id}/trades
func (h *TradeHandler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, "type must be buy, sell or note")
		return
	}
	res, err := h.svc.ExecuteTrade(r.Context(), id, req.entry())
	if err != nil {
		fail(w, r, h.logger, "execute trade", err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, newTradeResponse(res))
}

// AddOrder stages a pending order.
// POST /api/accounts/{id}/orders
func (h *TradeHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var order domain.PendingOrder
	if err := decodeJSON(r, &order); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if order.Symbol == "" || !order.Type.Valid() {
		writeError(w, http.StatusBadRequest, "symbol and type (buy|sell) are required")
		return
	}
	added, err := h.svc.AddOrder(r.Context(), id, order)
	if err != nil {
		fail(w, r, h.logger, "add order", err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// KillOrder cancels a pending order.
// DELETE /api/accounts/{id}/orders/{orderId}
func (h *TradeHandler) KillOrder(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	orderID := r.PathValue("orderId")
	if err := h.svc.KillOrder(r.Context(), id, orderID); err != nil {
		fail(w, r, h.logger, "kill order", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "cancelled",
		"order_id": orderID,
	})
}

// FillOrder executes a pending order at its limit price.
// POST /api/accounts/{id}/orders/{orderId}/fill
func (h *TradeHandler) FillOrder(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	res, err := h.svc.FillOrder(r.Context(), id, r.PathValue("orderId"))
	if err != nil {
		fail(w, r, h.logger, "fill order", err)
		return
	}
	writeJSON(w, http.StatusOK, newTradeResponse(res))
}

// RemoveJournalEntry deletes a journal entry without touching balances.
// DELETE /api/accounts/{id}/journal/{entryId}
func (h *TradeHandler) RemoveJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	entryID := r.PathValue("entryId")
	if err := h.svc.RemoveJournalEntry(r.Context(), id, entryID); err != nil {
		fail(w, r, h.logger, "remove journal entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "removed",
		"entry_id": entryID,
	})
}
