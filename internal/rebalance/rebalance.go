// Package rebalance proposes trim/add actions against target allocations and
// projects portfolio value under price shocks. Every function is pure.
package rebalance

import (
	"fmt"
	"math"
	"sort"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// ActionKind is the direction of a suggested rebalance trade.
type ActionKind string

const (
	ActionTrim ActionKind = "TRIM"
	ActionAdd  ActionKind = "ADD"
)

// Status describes how much of an action pending orders already cover.
type Status string

const (
	StatusCovered    Status = "COVERED"
	StatusPartial    Status = "PARTIAL"
	StatusActionable Status = "ACTIONABLE"
)

// Options tunes ComputeRebalance.
type Options struct {
	// NoiseThreshold is the minimum |diff| in currency that produces an action.
	NoiseThreshold float64
	// CoverRatio is the share of |diff| pending orders must cover for an
	// action to count as covered.
	CoverRatio float64
	// FeeRate is the trade fee as a fraction of value.
	FeeRate float64
}

// DefaultOptions returns a $10 noise threshold, 90% cover ratio and 1% fee.
func DefaultOptions() Options {
	return Options{NoiseThreshold: 10, CoverRatio: 0.9, FeeRate: 0.01}
}

// Action is one suggested rebalance trade.
type Action struct {
	Symbol         string               `json:"symbol" yaml:"symbol"`
	Action         ActionKind           `json:"action" yaml:"action"`
	Status         Status               `json:"status" yaml:"status"`
	TargetValue    float64              `json:"targetValue" yaml:"target_value"`
	CurrentValue   float64              `json:"currentValue" yaml:"current_value"`
	Diff           float64              `json:"diff" yaml:"diff"`
	AbsDiff        float64              `json:"absDiff" yaml:"abs_diff"`
	PendingValue   float64              `json:"pendingValue" yaml:"pending_value"`
	RemainingValue float64              `json:"remainingValue" yaml:"remaining_value"`
	SuggestedUnits float64              `json:"suggestedUnits" yaml:"suggested_units"`
	Fee            float64              `json:"fee" yaml:"fee"`
	CoveringOrder  *domain.PendingOrder `json:"coveringOrder,omitempty" yaml:"covering_order,omitempty"`
	Message        string               `json:"message" yaml:"message"`
}

// ComputeRebalance compares every non-cash position against its target share
// of totalValue and nets the gap against open pending orders on the same
// side. Positions within the noise threshold are omitted. The result is
// sorted by descending AbsDiff, ties by symbol.
func ComputeRebalance(positions []domain.Position, totalValue float64, pending []domain.PendingOrder, opts Options) []Action {
	actions := make([]Action, 0, len(positions))
	for _, p := range positions {
		if p.IsCash() {
			continue
		}
		target := totalValue * p.TargetAllocation / 100
		diff := target - p.CurrentValue
		absDiff := math.Abs(diff)
		if absDiff < opts.NoiseThreshold || diff == 0 {
			continue
		}

		kind, side := ActionAdd, domain.OrderSideBuy
		if diff < 0 {
			kind, side = ActionTrim, domain.OrderSideSell
		}
		orders := openOrders(pending, p.Symbol, side)
		var pendingValue float64
		for _, o := range orders {
			pendingValue += o.Value()
		}

		a := Action{
			Symbol:         p.Symbol,
			Action:         kind,
			Status:         StatusActionable,
			TargetValue:    target,
			CurrentValue:   p.CurrentValue,
			Diff:           diff,
			AbsDiff:        absDiff,
			PendingValue:   pendingValue,
			RemainingValue: absDiff,
		}
		switch {
		case pendingValue > 0 && pendingValue >= opts.CoverRatio*absDiff:
			a.Status = StatusCovered
			a.RemainingValue = 0
		case pendingValue > 0:
			a.Status = StatusPartial
			a.RemainingValue = absDiff - pendingValue
		}
		if len(orders) > 0 {
			o := coveringOrder(orders, side)
			a.CoveringOrder = &o
		}
		if p.CurrentPrice > 0 {
			a.SuggestedUnits = a.RemainingValue / p.CurrentPrice
		}
		a.Fee = a.RemainingValue * opts.FeeRate
		a.Message = message(a)
		actions = append(actions, a)
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].AbsDiff != actions[j].AbsDiff {
			return actions[i].AbsDiff > actions[j].AbsDiff
		}
		return actions[i].Symbol < actions[j].Symbol
	})
	return actions
}

func openOrders(pending []domain.PendingOrder, symbol string, side domain.OrderSide) []domain.PendingOrder {
	sym := domain.NormalizeSymbol(symbol)
	var out []domain.PendingOrder
	for _, o := range pending {
		if o.IsOpen() && o.Type == side && domain.NormalizeSymbol(o.Symbol) == sym {
			out = append(out, o)
		}
	}
	return out
}

// coveringOrder picks the highest-priced sell or the lowest-priced buy.
func coveringOrder(orders []domain.PendingOrder, side domain.OrderSide) domain.PendingOrder {
	best := orders[0]
	for _, o := range orders[1:] {
		if side == domain.OrderSideSell && o.Price > best.Price {
			best = o
		}
		if side == domain.OrderSideBuy && o.Price < best.Price {
			best = o
		}
	}
	return best
}

func message(a Action) string {
	verb := "Buy"
	side := "buy"
	if a.Action == ActionTrim {
		verb, side = "Sell", "sell"
	}
	switch a.Status {
	case StatusCovered:
		return fmt.Sprintf("Covered by pending %s (%.0f @ %g)", side, a.CoveringOrder.Units, a.CoveringOrder.Price)
	case StatusPartial:
		return fmt.Sprintf("Partially covered ($%.0f pending); %s $%.2f more", a.PendingValue, verb, a.RemainingValue)
	default:
		return fmt.Sprintf("%s $%.2f (~%.4g units)", verb, a.RemainingValue, a.SuggestedUnits)
	}
}
