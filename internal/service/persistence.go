package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
	"github.com/alanyoungcy/portfolioledger/internal/store/local"
)

// schedule queues a save of the current state of acct.
func (s *PortfolioService) schedule(ctx context.Context, acct *ledger.Account) {
	if err := s.saver.Schedule(acct.Snapshot()); err != nil {
		s.logger.WarnContext(ctx, "portfolio: schedule save failed",
			slog.String("account", string(acct.ID())),
			slog.String("error", err.Error()),
		)
	}
}

// savePrimary writes the local copy of every field and syncs positions,
// journal and orders to the ledger store. Without a ledger store the local
// write is the primary save.
func (s *PortfolioService) savePrimary(ctx context.Context, state domain.AccountState) error {
	s.syncing.Add(1)
	defer s.syncing.Add(-1)

	localErr := s.writeLocal(ctx, state)
	if s.remote == nil {
		if localErr == nil {
			s.acknowledge(ctx, state)
		}
		return localErr
	}
	if localErr != nil {
		s.logger.WarnContext(ctx, "portfolio: local write failed",
			slog.String("account", string(state.ID)),
			slog.String("error", localErr.Error()),
		)
	}
	if _, err := s.remote.Sync(ctx, state.ID, domain.NewSyncRequest(state)); err != nil {
		return fmt.Errorf("portfolio: sync %s: %w", state.ID, err)
	}
	s.acknowledge(ctx, state)
	return nil
}

// acknowledge drops the tombstones the ledger store has now applied and
// persists whatever is still pending.
func (s *PortfolioService) acknowledge(ctx context.Context, state domain.AccountState) {
	if state.Tombstones.Empty() {
		return
	}
	acct, err := s.book.Account(state.ID)
	if err != nil {
		return
	}
	acct.Acknowledge(state.Tombstones)
	if err := s.local.Save(ctx, state.ID, local.FieldTombstones, acct.Snapshot().Tombstones); err != nil {
		s.logger.WarnContext(ctx, "portfolio: persist tombstones failed",
			slog.String("account", string(state.ID)),
			slog.String("error", err.Error()),
		)
	}
}

// saveFallback keeps the local copy current once the ledger store gave up
// on a snapshot.
func (s *PortfolioService) saveFallback(ctx context.Context, state domain.AccountState) error {
	return s.writeLocal(ctx, state)
}

func (s *PortfolioService) writeLocal(ctx context.Context, state domain.AccountState) error {
	id := state.ID
	return errors.Join(
		s.local.Save(ctx, id, local.FieldAssets, state.Positions),
		s.local.Save(ctx, id, local.FieldJournal, state.Journal),
		s.local.Save(ctx, id, local.FieldOrders, state.PendingOrders),
		s.local.Save(ctx, id, local.FieldRecycled, state.RecycledValue),
		s.local.Save(ctx, id, local.FieldTarget, state.TargetValue),
		s.local.Save(ctx, id, local.FieldTombstones, state.Tombstones),
	)
}

func (s *PortfolioService) onDegraded(id domain.AccountID, err error) {
	s.mu.Lock()
	s.degraded[id] = true
	s.mu.Unlock()

	s.emit(context.Background(), domain.SystemEvent{
		Kind:      domain.EventPersistenceDegraded,
		AccountID: id,
		Message:   fmt.Sprintf("Ledger sync failed for %s, changes kept locally: %v", id, err),
	})
}

func (s *PortfolioService) onSaved(id domain.AccountID) {
	s.mu.Lock()
	was := s.degraded[id]
	delete(s.degraded, id)
	s.mu.Unlock()
	if was {
		s.logger.Info("portfolio: ledger sync recovered", slog.String("account", string(id)))
	}
}

// emit publishes ev on its channel and appends it to the event stream.
func (s *PortfolioService) emit(ctx context.Context, ev domain.SystemEvent) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	s.logger.InfoContext(ctx, "portfolio: event",
		slog.String("kind", string(ev.Kind)),
		slog.String("account", string(ev.AccountID)),
		slog.String("message", ev.Message),
	)
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "portfolio: encode event failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, ev.Channel(), payload); err != nil {
		s.logger.WarnContext(ctx, "portfolio: publish event failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.EventStream, payload); err != nil {
		s.logger.WarnContext(ctx, "portfolio: append event failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PortfolioService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "portfolio: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
