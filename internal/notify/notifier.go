// Package notify delivers system events to operators. Events are dispatched
// to all registered senders (Telegram, Discord) and filtered by kind; bursts
// of repeated warnings are suppressed for a configurable window.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/format"
)

// DefaultDedupWindow is how long a repeated warning stays suppressed.
const DefaultDedupWindow = time.Hour

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches events to one or more Senders. Only kinds in the
// allowed set are forwarded; an empty set allows every kind.
type Notifier struct {
	senders []Sender
	events  map[domain.EventKind]bool
	window  time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewNotifier creates a Notifier for senders. A non-positive dedupWindow
// uses DefaultDedupWindow.
func NewNotifier(senders []Sender, events []string, dedupWindow time.Duration, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventKind]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventKind(e)] = true
		}
	}
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		window:   dedupWindow,
		logger:   logger.With(slog.String("component", "notifier")),
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Deliver formats ev and sends it when its kind is allowed and it is not a
// repeat inside the dedup window.
func (n *Notifier) Deliver(ctx context.Context, ev domain.SystemEvent) error {
	if len(n.events) > 0 && !n.events[ev.Kind] {
		n.logger.DebugContext(ctx, "notifier: event filtered out", slog.String("kind", string(ev.Kind)))
		return nil
	}
	if n.suppressed(ev) {
		n.logger.DebugContext(ctx, "notifier: repeated event suppressed",
			slog.String("kind", string(ev.Kind)),
			slog.String("account", string(ev.AccountID)),
		)
		return nil
	}
	title, body := Render(ev)
	return n.dispatch(ctx, title, body)
}

// Run delivers every event published on bus until ctx ends.
func (n *Notifier) Run(ctx context.Context, bus domain.EventBus) error {
	ch, err := bus.Subscribe(ctx, "ledger:events:*")
	if err != nil {
		return fmt.Errorf("notify: subscribe: %w", err)
	}
	n.logger.InfoContext(ctx, "notifier: listening", slog.Int("senders", len(n.senders)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.SystemEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				n.logger.WarnContext(ctx, "notifier: undecodable event", slog.String("error", err.Error()))
				continue
			}
			if err := n.Deliver(ctx, ev); err != nil {
				n.logger.WarnContext(ctx, "notifier: delivery failed",
					slog.String("kind", string(ev.Kind)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// suppressed records ev and reports whether an identical warning was sent
// within the window. Only persistent conditions are deduplicated.
func (n *Notifier) suppressed(ev domain.SystemEvent) bool {
	switch ev.Kind {
	case domain.EventSafetyNetCritical, domain.EventPersistenceDegraded, domain.EventPriceError:
	default:
		return false
	}
	key := string(ev.Kind) + "/" + string(ev.AccountID)
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.window {
		return true
	}
	n.lastSent[key] = now
	return false
}

// Render builds the title and body of an event notification.
func Render(ev domain.SystemEvent) (string, string) {
	var title string
	switch ev.Kind {
	case domain.EventReconciliation:
		title = "Order reconciled"
	case domain.EventAlertTriggered:
		title = "Price alert"
	case domain.EventSafetyNetCritical:
		title = "Safety net critical"
	case domain.EventPersistenceDegraded:
		title = "Ledger sync degraded"
	case domain.EventPriceError:
		title = "Price feed error"
	case domain.EventPriceSync:
		title = "Prices updated"
	default:
		title = string(ev.Kind)
	}
	if ev.AccountID != "" {
		title += " [" + string(ev.AccountID) + "]"
	}

	lines := []string{ev.Message}
	if o := ev.Order; o != nil {
		lines = append(lines, fmt.Sprintf("Order %s: %s %s %s @ %s (%s)",
			o.ID, o.Type, format.Units(o.Units), o.Symbol, format.USD(o.Price), format.USD(o.Value())))
	}
	if e := ev.Entry; e != nil && e.IsTrade() {
		lines = append(lines, fmt.Sprintf("Journal %s: %s %s %s @ %s",
			e.ID, e.Type, format.Units(*e.Units), e.Symbol, format.USD(*e.Price)))
	}
	if a := ev.Alert; a != nil {
		lines = append(lines, fmt.Sprintf("%s %s %s", a.Symbol, a.Condition, format.USD(a.Price)))
		if a.Note != "" {
			lines = append(lines, a.Note)
		}
	}
	return title, strings.Join(lines, "\n")
}

// dispatch sends to every sender. A single sender failure does not prevent
// delivery to the rest; failures are combined.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "notifier: sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notifier: sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
