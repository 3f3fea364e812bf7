package domain

import (
	"fmt"
	"math"
	"strings"
)

// OrderSide indicates whether an order or trade buys or sells.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Valid reports whether s is buy or sell.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderStatus tracks the pending order lifecycle.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PendingOrder is a staged, not yet executed limit order. Its ID is reused as
// the journal entry ID when the order is filled.
type PendingOrder struct {
	ID     string      `json:"id"`
	Type   OrderSide   `json:"type"`
	Symbol string      `json:"symbol"`
	Units  float64     `json:"units"`
	Price  float64     `json:"price"`
	Status OrderStatus `json:"status"`
	Date   string      `json:"date"`
	Note   string      `json:"note,omitempty"`
}

// Value returns the notional units × limit price.
func (o PendingOrder) Value() float64 {
	return o.Units * o.Price
}

// IsOpen reports whether the order still counts as pending.
func (o PendingOrder) IsOpen() bool {
	return o.Status == "" || o.Status == OrderStatusOpen
}

// Validate checks the fields that must hold for a persisted order.
func (o PendingOrder) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("order: empty id: %w", ErrInvalidOrder)
	}
	if !o.Type.Valid() {
		return fmt.Errorf("order %s: type %q: %w", o.ID, o.Type, ErrInvalidOrder)
	}
	if strings.TrimSpace(o.Symbol) == "" {
		return fmt.Errorf("order %s: empty symbol: %w", o.ID, ErrInvalidOrder)
	}
	if !(o.Units > 0) || math.IsInf(o.Units, 0) {
		return fmt.Errorf("order %s: units must be > 0: %w", o.ID, ErrInvalidOrder)
	}
	if !(o.Price > 0) || math.IsInf(o.Price, 0) {
		return fmt.Errorf("order %s: price must be > 0: %w", o.ID, ErrInvalidOrder)
	}
	switch o.Status {
	case "", OrderStatusOpen, OrderStatusFilled, OrderStatusCancelled:
	default:
		return fmt.Errorf("order %s: status %q: %w", o.ID, o.Status, ErrInvalidOrder)
	}
	return nil
}
