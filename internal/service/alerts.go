package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/store/local"
)

// Alerts returns every price alert.
func (s *PortfolioService) Alerts() []domain.PriceAlert {
	return s.alerts.All()
}

// AddAlert creates an active price alert.
func (s *PortfolioService) AddAlert(ctx context.Context, symbol string, cond domain.AlertCondition, price float64, note string) (domain.PriceAlert, error) {
	a, err := s.alerts.Add(symbol, cond, price, note)
	if err != nil {
		return domain.PriceAlert{}, err
	}
	s.saveAlerts(ctx)
	return a, nil
}

// RemoveAlert deletes an alert.
func (s *PortfolioService) RemoveAlert(ctx context.Context, id string) error {
	if !s.alerts.Remove(id) {
		return fmt.Errorf("portfolio: alert %q: %w", id, domain.ErrNotFound)
	}
	s.saveAlerts(ctx)
	return nil
}

// ToggleAlert flips the active flag of an alert.
func (s *PortfolioService) ToggleAlert(ctx context.Context, id string) error {
	if err := s.alerts.Toggle(id); err != nil {
		return err
	}
	s.saveAlerts(ctx)
	return nil
}

// ResetAlert re-arms a triggered alert.
func (s *PortfolioService) ResetAlert(ctx context.Context, id string) error {
	if err := s.alerts.Reset(id); err != nil {
		return err
	}
	s.saveAlerts(ctx)
	return nil
}

// ClearTriggeredAlerts removes every fired alert.
func (s *PortfolioService) ClearTriggeredAlerts(ctx context.Context) int {
	n := s.alerts.ClearTriggered()
	if n > 0 {
		s.saveAlerts(ctx)
	}
	return n
}

func (s *PortfolioService) saveAlerts(ctx context.Context) {
	if err := s.local.SaveGlobal(ctx, local.FieldAlerts, s.alerts.All()); err != nil {
		s.logger.WarnContext(ctx, "portfolio: save alerts failed", slog.String("error", err.Error()))
	}
}
