package domain

import (
	"fmt"
	"time"
)

// AlertCondition is the direction of a price alert.
type AlertCondition string

const (
	AlertAbove AlertCondition = "above"
	AlertBelow AlertCondition = "below"
)

// PriceAlert fires once when a symbol crosses Price in the given direction.
type PriceAlert struct {
	ID          string         `json:"id"`
	Symbol      string         `json:"symbol"`
	Condition   AlertCondition `json:"condition"`
	Price       float64        `json:"price"`
	Note        string         `json:"note,omitempty"`
	Active      bool           `json:"active"`
	Triggered   bool           `json:"triggered"`
	TriggeredAt *time.Time     `json:"triggeredAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Validate checks the alert definition.
func (a PriceAlert) Validate() error {
	if a.ID == "" || a.Symbol == "" {
		return fmt.Errorf("alert: empty id or symbol")
	}
	if a.Condition != AlertAbove && a.Condition != AlertBelow {
		return fmt.Errorf("alert %s: condition %q", a.ID, a.Condition)
	}
	if !(a.Price > 0) {
		return fmt.Errorf("alert %s: price must be > 0", a.ID)
	}
	return nil
}
