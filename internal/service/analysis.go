package service

import (
	"github.com/alanyoungcy/portfolioledger/internal/aggregate"
	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/rebalance"
)

// Rebalance computes the suggested trades for id, netting open orders.
func (s *PortfolioService) Rebalance(id domain.AccountID) ([]rebalance.Action, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return nil, err
	}
	st := acct.Snapshot()
	opts := s.cfg.Rebalance
	opts.FeeRate = acct.FeeRate()
	return rebalance.ComputeRebalance(st.Positions, st.TotalValue(), st.PendingOrders, opts), nil
}

// StressTest shocks target ("ALL" or one symbol) by shockPercent.
func (s *PortfolioService) StressTest(id domain.AccountID, shockPercent float64, target string) (rebalance.StressResult, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return rebalance.StressResult{}, err
	}
	return rebalance.ComputeStressTest(acct.Snapshot().Positions, shockPercent, target), nil
}

// Simulate returns the positions of id under a what-if scenario. The fee
// rate of the account is used when opts leaves it at zero.
func (s *PortfolioService) Simulate(id domain.AccountID, opts rebalance.SimulationOptions) ([]domain.Position, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return nil, err
	}
	if opts.FeeRate == 0 {
		opts.FeeRate = acct.FeeRate()
	}
	st := acct.Snapshot()
	return rebalance.Simulate(st.Positions, st.PendingOrders, opts), nil
}

// RiskReport is the risk view of one account.
type RiskReport struct {
	Account       domain.AccountID        `json:"account"`
	Strategy      string                  `json:"strategy"`
	CashPercent   float64                 `json:"cashPercent"`
	CashHealth    rebalance.Health        `json:"cashHealth"`
	Concentration rebalance.Concentration `json:"concentration"`
	Drawdowns     []rebalance.Drawdown    `json:"drawdowns"`
	Overweight    []string                `json:"overweight,omitempty"`
	Overlap       []string                `json:"overlap,omitempty"`
	Global        aggregate.Global        `json:"global"`
}

// Risk builds the risk report of id, including symbols also held in the
// other account.
func (s *PortfolioService) Risk(id domain.AccountID) (RiskReport, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return RiskReport{}, err
	}
	st := acct.Snapshot()
	strat := rebalance.StrategyFor(id)

	r := RiskReport{
		Account:       id,
		Strategy:      strat.Name,
		Concentration: rebalance.ComputeConcentration(st.Positions),
		Drawdowns:     rebalance.Drawdowns(st.Positions),
		Global:        s.Global(),
	}
	if total := st.TotalValue(); total > 0 {
		r.CashPercent = st.CashValue() / total * 100
	}
	r.CashHealth = rebalance.CashHealth(r.CashPercent, strat)
	for _, p := range st.Positions {
		if !p.IsCash() && rebalance.AssetHealth(p.Allocation, strat.MaxConcentration) == rebalance.HealthOver {
			r.Overweight = append(r.Overweight, p.Symbol)
		}
	}
	for _, other := range s.book.Snapshots() {
		if other.ID != id {
			r.Overlap = append(r.Overlap, aggregate.CrossAccountOverlap(st, other)...)
		}
	}
	return r, nil
}
