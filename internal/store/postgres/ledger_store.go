package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LedgerStore implements domain.LedgerStore. Positions are upserted by
// (account, symbol), journal entries by id, and pending orders are replaced
// wholesale when a sync carries them. A sync may first wipe the account or
// delete journal entries the engine removed.
type LedgerStore struct {
	pool   *pgxpool.Pool
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewLedgerStore creates a LedgerStore. audit may be nil.
func NewLedgerStore(pool *pgxpool.Pool, audit domain.AuditStore, logger *slog.Logger) *LedgerStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerStore{
		pool:   pool,
		audit:  audit,
		logger: logger.With(slog.String("component", "ledger-store")),
	}
}

// Fetch returns the stored account. PendingOrders is nil until a sync has
// reported orders for the account.
func (s *LedgerStore) Fetch(ctx context.Context, id domain.AccountID) (domain.LedgerSnapshot, error) {
	snap, err := readSnapshot(ctx, s.pool, id)
	if err != nil {
		return domain.LedgerSnapshot{}, fmt.Errorf("postgres: fetch %s: %w", id, err)
	}
	return snap, nil
}

// Sync applies req in one transaction and returns the resulting state.
func (s *LedgerStore) Sync(ctx context.Context, id domain.AccountID, req domain.SyncRequest) (domain.LedgerSnapshot, error) {
	var snap domain.LedgerSnapshot
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ledger_accounts (account_id) VALUES ($1)
			ON CONFLICT (account_id) DO UPDATE SET updated_at = NOW()`, string(id)); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		if req.Reset {
			batch.Queue(`DELETE FROM ledger_positions WHERE account_id = $1`, string(id))
			batch.Queue(`DELETE FROM ledger_journal WHERE account_id = $1`, string(id))
			batch.Queue(`DELETE FROM ledger_orders WHERE account_id = $1`, string(id))
			batch.Queue(`UPDATE ledger_accounts SET orders_synced_at = NULL WHERE account_id = $1`, string(id))
		}
		if len(req.DeletedJournal) > 0 {
			batch.Queue(`DELETE FROM ledger_journal WHERE account_id = $1 AND id = ANY($2)`,
				string(id), req.DeletedJournal)
		}
		for _, a := range req.Assets {
			batch.Queue(`
				INSERT INTO ledger_positions (account_id, symbol, units, cost, updated_at)
				VALUES ($1, $2, $3, $4, NOW())
				ON CONFLICT (account_id, symbol) DO UPDATE SET
					units = EXCLUDED.units, cost = EXCLUDED.cost, updated_at = NOW()`,
				string(id), domain.NormalizeSymbol(a.Symbol), a.Units, a.TotalCost)
		}
		for _, e := range req.Journal {
			batch.Queue(`
				INSERT INTO ledger_journal (id, account_id, type, symbol, units, price, notes, silent, ts)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (id) DO UPDATE SET
					type = EXCLUDED.type, symbol = EXCLUDED.symbol, units = EXCLUDED.units,
					price = EXCLUDED.price, notes = EXCLUDED.notes, silent = EXCLUDED.silent,
					ts = EXCLUDED.ts
				WHERE ledger_journal.account_id = EXCLUDED.account_id`,
				e.ID, string(id), string(e.Type), e.Symbol, e.Units, e.Price, e.Notes, e.Silent, e.Timestamp.UTC())
		}
		if req.PendingOrders != nil {
			batch.Queue(`DELETE FROM ledger_orders WHERE account_id = $1`, string(id))
			for i, o := range req.PendingOrders {
				batch.Queue(`
					INSERT INTO ledger_orders (account_id, id, type, symbol, units, price, status, date, note, position)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
					string(id), o.ID, string(o.Type), o.Symbol, o.Units, o.Price, string(o.Status), o.Date, o.Note, i)
			}
			batch.Queue(`UPDATE ledger_accounts SET orders_synced_at = NOW() WHERE account_id = $1`, string(id))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		var err error
		snap, err = readSnapshot(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.LedgerSnapshot{}, fmt.Errorf("postgres: sync %s: %w", id, err)
	}

	s.record(ctx, "ledger.sync", map[string]any{
		"account": string(id),
		"assets":  len(req.Assets),
		"journal": len(req.Journal),
		"orders":  req.PendingOrders != nil,
		"reset":   req.Reset,
		"deleted": len(req.DeletedJournal),
	})
	return snap, nil
}

// DeleteJournalEntry removes one entry. Deleting a missing entry succeeds.
func (s *LedgerStore) DeleteJournalEntry(ctx context.Context, id domain.AccountID, entryID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM ledger_journal WHERE id = $1 AND account_id = $2`, entryID, string(id))
	if err != nil {
		return fmt.Errorf("postgres: delete journal %s/%s: %w", id, entryID, err)
	}
	s.record(ctx, "ledger.journal_delete", map[string]any{
		"account": string(id),
		"entry":   entryID,
		"deleted": tag.RowsAffected(),
	})
	return nil
}

// Reset removes every position, journal entry and order of the account.
func (s *LedgerStore) Reset(ctx context.Context, id domain.AccountID) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, q := range []string{
			`DELETE FROM ledger_positions WHERE account_id = $1`,
			`DELETE FROM ledger_journal WHERE account_id = $1`,
			`DELETE FROM ledger_orders WHERE account_id = $1`,
			`DELETE FROM ledger_accounts WHERE account_id = $1`,
		} {
			if _, err := tx.Exec(ctx, q, string(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: reset %s: %w", id, err)
	}
	s.record(ctx, "ledger.reset", map[string]any{"account": string(id)})
	return nil
}

func (s *LedgerStore) record(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "ledger-store: audit failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func readSnapshot(ctx context.Context, q querier, id domain.AccountID) (domain.LedgerSnapshot, error) {
	snap := domain.LedgerSnapshot{
		Positions: []domain.LedgerPosition{},
		Journal:   []domain.JournalEntry{},
	}

	rows, err := q.Query(ctx,
		`SELECT symbol, units, cost FROM ledger_positions WHERE account_id = $1 ORDER BY symbol`, string(id))
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var p domain.LedgerPosition
		if err := rows.Scan(&p.Symbol, &p.Units, &p.Cost); err != nil {
			rows.Close()
			return snap, err
		}
		snap.Positions = append(snap.Positions, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = q.Query(ctx, `
		SELECT id, type, symbol, units, price, notes, silent, ts
		FROM ledger_journal WHERE account_id = $1 ORDER BY ts ASC, id ASC`, string(id))
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var (
			e  domain.JournalEntry
			tp string
			ts time.Time
		)
		if err := rows.Scan(&e.ID, &tp, &e.Symbol, &e.Units, &e.Price, &e.Notes, &e.Silent, &ts); err != nil {
			rows.Close()
			return snap, err
		}
		e.Type = domain.EntryType(tp)
		e.Timestamp = ts.UTC()
		snap.Journal = append(snap.Journal, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	var synced *time.Time
	err = q.QueryRow(ctx,
		`SELECT orders_synced_at FROM ledger_accounts WHERE account_id = $1`, string(id)).Scan(&synced)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return snap, err
	}
	if synced == nil {
		return snap, nil
	}

	rows, err = q.Query(ctx, `
		SELECT id, type, symbol, units, price, status, date, note
		FROM ledger_orders WHERE account_id = $1 ORDER BY position, id`, string(id))
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	snap.PendingOrders = []domain.PendingOrder{}
	for rows.Next() {
		var (
			o          domain.PendingOrder
			tp, status string
		)
		if err := rows.Scan(&o.ID, &tp, &o.Symbol, &o.Units, &o.Price, &status, &o.Date, &o.Note); err != nil {
			return snap, err
		}
		o.Type = domain.OrderSide(tp)
		o.Status = domain.OrderStatus(status)
		snap.PendingOrders = append(snap.PendingOrders, o)
	}
	return snap, rows.Err()
}

var _ domain.LedgerStore = (*LedgerStore)(nil)
