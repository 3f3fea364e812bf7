package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// LedgerHandler serves the Ledger Store API consumed by engines running
// against a remote ledger. Routes mirror the remote client exactly.
type LedgerHandler struct {
	store  domain.LedgerStore
	logger *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler backed by store.
func NewLedgerHandler(store domain.LedgerStore, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{store: store, logger: logHandler(logger, "ledger")}
}

// Fetch returns the stored positions, journal and pending orders.
// GET /accounts/{id}
func (h *LedgerHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	snap, err := h.store.Fetch(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, "ledger fetch", err)
		return
	}
	writeJSON(w, http.StatusOK, normalizeSnapshot(snap))
}

// Sync upserts positions and journal entries and, when present, replaces
// the pending orders. A reset flag or deleted journal IDs are applied first.
// POST /accounts/{id}/sync
func (h *LedgerHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req domain.SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, a := range req.Assets {
		if a.Symbol == "" {
			writeError(w, http.StatusBadRequest, "asset symbol is required")
			return
		}
	}
	for _, entryID := range req.DeletedJournal {
		if entryID == "" {
			writeError(w, http.StatusBadRequest, "deleted journal id is required")
			return
		}
	}
	for _, e := range req.Journal {
		if err := e.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	snap, err := h.store.Sync(r.Context(), id, req)
	if err != nil {
		fail(w, r, h.logger, "ledger sync", err)
		return
	}
	writeJSON(w, http.StatusOK, normalizeSnapshot(snap))
}

// DeleteJournalEntry removes one journal entry.
// DELETE /accounts/{id}/journal/{entryId}
func (h *LedgerHandler) DeleteJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := h.store.DeleteJournalEntry(r.Context(), id, r.PathValue("entryId")); err != nil {
		fail(w, r, h.logger, "ledger delete journal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reset clears every position, journal entry and pending order.
// POST /accounts/{id}/reset
func (h *LedgerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := h.store.Reset(r.Context(), id); err != nil {
		fail(w, r, h.logger, "ledger reset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// normalizeSnapshot encodes empty collections as [] so clients can tell an
// empty ledger from a store that does not report orders.
func normalizeSnapshot(s domain.LedgerSnapshot) domain.LedgerSnapshot {
	if s.Positions == nil {
		s.Positions = []domain.LedgerPosition{}
	}
	if s.Journal == nil {
		s.Journal = []domain.JournalEntry{}
	}
	if s.PendingOrders == nil {
		s.PendingOrders = []domain.PendingOrder{}
	}
	return s
}
