package domain

import "time"

// SnapshotPosition is the per-symbol detail of a daily snapshot.
type SnapshotPosition struct {
	Symbol     string  `json:"symbol"`
	Value      float64 `json:"value"`
	Allocation float64 `json:"allocation"`
	Price      float64 `json:"price"`
}

// DailySnapshot records an account's value once per UTC day.
type DailySnapshot struct {
	Date        string             `json:"date"`
	Timestamp   time.Time          `json:"timestamp"`
	TotalValue  float64            `json:"totalValue"`
	CashValue   float64            `json:"cashValue"`
	CashPercent float64            `json:"cashPercent"`
	Positions   []SnapshotPosition `json:"positions"`
}
