// Package notify fans engine events out to chat webhooks. Operators choose
// which events they receive.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// Event types.
const (
	EventArbDetected         = "arb_detected"
	EventSettlementSucceeded = "settlement_succeeded"
	EventSettlementFailed    = "settlement_failed"
)

// Sender delivers one message to one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to every Sender. Only events in the allow list pass;
// an empty list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether event would be delivered anywhere.
func (n *Notifier) Enabled(event string) bool {
	if n == nil || len(n.senders) == 0 {
		return false
	}
	return len(n.events) == 0 || n.events[event]
}

// Notify delivers title and message for event. A failing sender does not stop
// the others; all failures are joined into the returned error.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled(event) {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}

// FormatOpportunity renders a selected opportunity.
func FormatOpportunity(o domain.ArbitrageOpportunity) (title, message string) {
	title = fmt.Sprintf("Arbitrage %.0f%% (%s)", o.PotentialProfit, o.Strategy)
	message = fmt.Sprintf(
		"%s: %s (YES %d / NO %d)\n%s: %s (YES %d / NO %d)\nconfidence %.2f, expires %s",
		o.Market1.Source, o.Market1.Question, o.Market1.YesPrice, o.Market1.NoPrice,
		o.Market2.Source, o.Market2.Question, o.Market2.YesPrice, o.Market2.NoPrice,
		o.Confidence, o.ExpiresAt.UTC().Format("15:04 MST"),
	)
	return title, message
}

// FormatResolution renders a successful settlement.
func FormatResolution(r domain.Resolution) (title, message string) {
	outcome := "NO"
	if r.YesWon {
		outcome = "YES"
	}
	title = "Mirror market resolved " + outcome
	message = fmt.Sprintf("key %s\ntx %s (block %d, attempts %d)", r.MirrorKey, r.TxHash, r.BlockNumber, r.Attempts)
	return title, message
}

// FormatSettlementFailure renders a failed settlement.
func FormatSettlementFailure(mirrorKey string, err error) (title, message string) {
	return "Mirror settlement failed", fmt.Sprintf("key %s\n%v", mirrorKey, err)
}
