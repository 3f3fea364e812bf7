package domain

import "time"

// EventKind names a system event.
type EventKind string

const (
	EventReconciliation      EventKind = "reconciliation"
	EventPriceSync           EventKind = "price_sync"
	EventPriceError          EventKind = "price_error"
	EventAlertTriggered      EventKind = "alert_triggered"
	EventSafetyNetCritical   EventKind = "safety_net_critical"
	EventPersistenceDegraded EventKind = "persistence_degraded"
)

// SystemEvent is a transient notification consumed once by the notification
// layer. It is never persisted as account state.
type SystemEvent struct {
	Kind      EventKind     `json:"kind"`
	AccountID AccountID     `json:"accountId,omitempty"`
	Message   string        `json:"message"`
	Order     *PendingOrder `json:"order,omitempty"`
	Entry     *JournalEntry `json:"entry,omitempty"`
	Alert     *PriceAlert   `json:"alert,omitempty"`
	At        time.Time     `json:"at"`
}

// Channel returns the bus channel the event is published on.
func (e SystemEvent) Channel() string {
	if e.AccountID == "" {
		return "ledger:events:" + string(e.Kind)
	}
	return "ledger:events:" + string(e.Kind) + ":" + string(e.AccountID)
}

// EventStream is the durable stream every event is appended to.
const EventStream = "ledger:events"
