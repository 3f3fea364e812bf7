package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// LedgerPosition is a position as held by the ledger store: quantity and cost
// basis only. Prices and targets are enriched by the engine.
type LedgerPosition struct {
	Symbol string  `json:"symbol"`
	Units  float64 `json:"units"`
	Cost   float64 `json:"cost"`
}

// LedgerSnapshot is the authoritative account state returned by the ledger
// store. PendingOrders is nil when the store did not report orders.
type LedgerSnapshot struct {
	Positions     []LedgerPosition `json:"positions"`
	Journal       []JournalEntry   `json:"journal"`
	PendingOrders []PendingOrder   `json:"pendingOrders"`
}

// Empty reports whether the store holds nothing for the account.
func (s LedgerSnapshot) Empty() bool {
	return len(s.Positions) == 0 && len(s.Journal) == 0
}

// SyncAsset is one position in a sync request.
type SyncAsset struct {
	Symbol    string  `json:"symbol"`
	Units     float64 `json:"units"`
	TotalCost float64 `json:"totalCost"`
}

// SyncRequest is the body of a ledger sync. A nil PendingOrders leaves the
// stored orders untouched. Reset wipes the stored account and
// DeletedJournal removes entries before the assets and journal are
// upserted, all in the same transaction.
type SyncRequest struct {
	Assets         []SyncAsset    `json:"assets"`
	Journal        []JournalEntry `json:"journal"`
	PendingOrders  []PendingOrder `json:"pendingOrders"`
	Reset          bool           `json:"reset,omitempty"`
	DeletedJournal []string       `json:"deletedJournal,omitempty"`
}

// NewSyncRequest builds the sync body for an account state.
func NewSyncRequest(s AccountState) SyncRequest {
	req := SyncRequest{
		Assets:        make([]SyncAsset, 0, len(s.Positions)),
		Journal:       make([]JournalEntry, 0, len(s.Journal)),
		PendingOrders: make([]PendingOrder, 0, len(s.PendingOrders)),
	}
	for _, p := range s.Positions {
		req.Assets = append(req.Assets, SyncAsset{Symbol: p.Symbol, Units: p.Units, TotalCost: p.TotalCost})
	}
	req.Journal = append(req.Journal, s.Journal...)
	req.PendingOrders = append(req.PendingOrders, s.PendingOrders...)
	req.Reset = s.Tombstones.Reset
	req.DeletedJournal = append([]string(nil), s.Tombstones.Journal...)
	return req
}

// LedgerStore is the durable, authoritative per-account store. The engine
// consumes it over HTTP; the store mode serves it from Postgres.
type LedgerStore interface {
	Fetch(ctx context.Context, id AccountID) (LedgerSnapshot, error)
	Sync(ctx context.Context, id AccountID, req SyncRequest) (LedgerSnapshot, error)
	DeleteJournalEntry(ctx context.Context, id AccountID, entryID string) error
	Reset(ctx context.Context, id AccountID) error
}

// LocalStore is scoped key-value persistence used as the fallback when the
// ledger store is unreachable. Get returns ErrNotFound for missing keys.
type LocalStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
