package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
	"github.com/alanyoungcy/portfolioledger/internal/store/local"
)

// Load hydrates id and installs it in the book:
//
//   - ledger store reachable and empty: the account is seeded from defaults.
//   - ledger store reachable: positions and journal come from the store,
//     enriched with names, prices and targets from the local cache and the
//     defaults; orders, recycled value and target come from local storage.
//   - ledger store unreachable: everything comes from local storage.
//
// When the store reports pending orders, local orders that vanished
// remotely are reconciled against the recent journal.
//
// Tombstones left locally by a removal or reset the store never
// acknowledged are honoured: a pending reset means the store copy is stale
// and local state wins, removed journal entries are filtered out of the
// store journal, and a save is queued to deliver them.
func (s *PortfolioService) Load(ctx context.Context, id domain.AccountID) (domain.AccountState, error) {
	if _, err := domain.ParseAccountID(string(id)); err != nil {
		return domain.AccountState{}, err
	}
	if err := s.acquireLease(ctx, id); err != nil {
		return domain.AccountState{}, err
	}

	state, remoteOrders, source := s.hydrate(ctx, id)

	var events []domain.SystemEvent
	reconciled := false
	if remoteOrders != nil {
		res := s.monitor.Reconcile(id, state.PendingOrders, remoteOrders, state.Journal)
		state.PendingOrders = res.Kept
		events = res.Events
		reconciled = len(res.Dropped) > 0
	}

	acct := ledger.NewAccount(state, s.cfg.Ledger)
	s.book.Set(acct)

	s.logger.InfoContext(ctx, "portfolio: account loaded",
		slog.String("account", string(id)),
		slog.String("source", source),
		slog.Int("positions", len(state.Positions)),
		slog.Int("journal", len(state.Journal)),
		slog.Int("orders", len(state.PendingOrders)),
	)

	for _, ev := range events {
		s.emit(ctx, ev)
		detail := map[string]any{"account": string(id), "message": ev.Message}
		if ev.Order != nil {
			detail["order_id"] = ev.Order.ID
		}
		if ev.Entry != nil {
			detail["entry_id"] = ev.Entry.ID
		}
		s.auditLog(ctx, "reconciliation", detail)
	}
	if reconciled || !state.Tombstones.Empty() {
		s.schedule(ctx, acct)
	}
	return acct.Snapshot(), nil
}

// hydrate builds the starting state of id and returns the remote pending
// orders (nil when the store did not report any) and a label of the source.
func (s *PortfolioService) hydrate(ctx context.Context, id domain.AccountID) (domain.AccountState, []domain.PendingOrder, string) {
	seed := ledger.Defaults(id)
	tombs := loadField(ctx, s, id, local.FieldTombstones, domain.Tombstones{}, nil)

	if s.remote != nil && !tombs.Reset {
		snap, err := s.remote.Fetch(ctx, id)
		switch {
		case err == nil && snap.Empty():
			seed.Tombstones = tombs
			return seed, nil, "seed"
		case err == nil:
			state := domain.AccountState{
				ID:            id,
				Positions:     s.enrich(ctx, id, snap.Positions),
				Journal:       withoutRemoved(validJournal(snap.Journal), tombs),
				PendingOrders: loadField(ctx, s, id, local.FieldOrders, seed.PendingOrders, validOrders),
				RecycledValue: loadField(ctx, s, id, local.FieldRecycled, seed.RecycledValue, nil),
				TargetValue:   loadField(ctx, s, id, local.FieldTarget, seed.TargetValue, nil),
				Tombstones:    tombs,
			}
			return state, snap.PendingOrders, "ledger"
		default:
			s.logger.WarnContext(ctx, "portfolio: ledger store unreachable, using local state",
				slog.String("account", string(id)),
				slog.String("error", err.Error()),
			)
		}
	}

	return domain.AccountState{
		ID:            id,
		Positions:     loadField(ctx, s, id, local.FieldAssets, seed.Positions, validPositions),
		Journal:       loadField(ctx, s, id, local.FieldJournal, seed.Journal, validJournalErr),
		PendingOrders: loadField(ctx, s, id, local.FieldOrders, seed.PendingOrders, validOrders),
		RecycledValue: loadField(ctx, s, id, local.FieldRecycled, seed.RecycledValue, nil),
		TargetValue:   loadField(ctx, s, id, local.FieldTarget, seed.TargetValue, nil),
		Tombstones:    tombs,
	}, nil, "local"
}

// withoutRemoved drops the journal entries t marks as removed.
func withoutRemoved(js []domain.JournalEntry, t domain.Tombstones) []domain.JournalEntry {
	if len(t.Journal) == 0 {
		return js
	}
	out := js[:0]
	for _, e := range js {
		if !t.HasJournal(e.ID) {
			out = append(out, e)
		}
	}
	return out
}

// enrich turns store positions into full positions. Names, last prices and
// targets come from the locally cached assets first, then the defaults.
func (s *PortfolioService) enrich(ctx context.Context, id domain.AccountID, stored []domain.LedgerPosition) []domain.Position {
	cached := make(map[string]domain.Position)
	for _, p := range loadField[[]domain.Position](ctx, s, id, local.FieldAssets, nil, validPositions) {
		cached[domain.NormalizeSymbol(p.Symbol)] = p
	}

	out := make([]domain.Position, 0, len(stored))
	for _, lp := range stored {
		sym := domain.NormalizeSymbol(lp.Symbol)
		if sym == "" {
			continue
		}
		p := domain.Position{Symbol: sym, Name: sym, Units: lp.Units, TotalCost: lp.Cost}
		if d, ok := ledger.DefaultPosition(id, sym); ok {
			p.Name = d.Name
			p.CurrentPrice = d.CurrentPrice
			p.TargetAllocation = d.TargetAllocation
		}
		if c, ok := cached[sym]; ok {
			if c.Name != "" {
				p.Name = c.Name
			}
			if c.CurrentPrice > 0 {
				p.CurrentPrice = c.CurrentPrice
			}
			p.TargetAllocation = c.TargetAllocation
		}
		if err := p.Validate(); err != nil {
			s.logger.WarnContext(ctx, "portfolio: invalid stored position skipped",
				slog.String("account", string(id)),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, p)
	}
	return out
}

// loadField reads a locally persisted field, falling back to def when it is
// absent, unreadable, of another schema or fails validate.
func loadField[T any](ctx context.Context, s *PortfolioService, id domain.AccountID, field string, def T, validate func(T) error) T {
	var v T
	ok, err := s.local.Load(ctx, id, field, &v)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, domain.ErrSchemaMismatch) {
			level = slog.LevelInfo
		}
		s.logger.Log(ctx, level, "portfolio: local field ignored",
			slog.String("account", string(id)),
			slog.String("field", field),
			slog.String("error", err.Error()),
		)
		return def
	}
	if !ok {
		return def
	}
	if validate != nil {
		if err := validate(v); err != nil {
			s.logger.WarnContext(ctx, "portfolio: local field invalid",
				slog.String("account", string(id)),
				slog.String("field", field),
				slog.String("error", err.Error()),
			)
			return def
		}
	}
	return v
}

func validPositions(ps []domain.Position) error {
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validOrders(orders []domain.PendingOrder) error {
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validJournalErr(js []domain.JournalEntry) error {
	for _, e := range js {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// validJournal drops invalid entries from a store journal.
func validJournal(js []domain.JournalEntry) []domain.JournalEntry {
	out := make([]domain.JournalEntry, 0, len(js))
	for _, e := range js {
		if e.Validate() == nil {
			out = append(out, e)
		}
	}
	return out
}
