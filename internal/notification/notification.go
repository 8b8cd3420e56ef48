// Package notification emails operators about payouts that failed and money that moved
// without a matching ledger entry.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/core/events"
	"github.com/frahmantamala/care-payments/internal/core/money"
)

// Sender is the subset of *mail.Client the notifier uses.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Notifier struct {
	sender Sender
	from   string
	to     string
	logger *slog.Logger
}

func NewNotifier(sender Sender, from, to string, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, from: from, to: to, logger: logger}
}

// NewSMTPClient builds a go-mail client from the mailer config.
func NewSMTPClient(cfg internal.MailerConfig) (*mail.Client, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("init smtp client: %w", err)
	}
	return c, nil
}

// Register subscribes the notifier to the events operators act on.
func (n *Notifier) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypePayoutFailed, n.Handle)
	bus.Subscribe(events.EventTypeReconciliationWarning, n.Handle)
}

// Handle is a bus Handler. Unrelated events are ignored.
func (n *Notifier) Handle(ctx context.Context, event events.Event) error {
	subject, body, ok := render(event)
	if !ok {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(n.to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		n.logger.Error("failed to send notification", "event_type", event.EventType(), "event_id", event.EventID(), "error", err)
		return fmt.Errorf("send notification: %w", err)
	}
	n.logger.Info("notification sent", "event_type", event.EventType(), "event_id", event.EventID(), "to", n.to)
	return nil
}

func render(event events.Event) (subject, body string, ok bool) {
	var b strings.Builder
	switch e := event.(type) {
	case *events.PayoutFailedEvent:
		subject = fmt.Sprintf("Payout failed for worker %d (week ending %s)", e.WorkerID, e.PeriodEnd)
		fmt.Fprintf(&b, "Worker: %d\n", e.WorkerID)
		fmt.Fprintf(&b, "Amount: $%s\n", money.FromCents(e.AmountCents))
		fmt.Fprintf(&b, "Code: %s\n", e.Code)
		fmt.Fprintf(&b, "Reason: %s\n", e.Reason)
		fmt.Fprintf(&b, "Week ending: %s\n", e.PeriodEnd)
		b.WriteString("\nThe earnings stay pending and will be retried by the next payout run.\n")
	case *events.ReconciliationWarningEvent:
		subject = "Reconciliation warning: " + e.Code
		fmt.Fprintf(&b, "Code: %s\n", e.Code)
		fmt.Fprintf(&b, "Processor ref: %s\n", e.ProcessorRef)
		fmt.Fprintf(&b, "Detail: %s\n", e.Message)
		b.WriteString("\nMatch this processor record against the ledger by hand.\n")
	default:
		return "", "", false
	}
	fmt.Fprintf(&b, "\nEvent: %s at %s\n", event.EventID(), event.OccurredAt().UTC().Format("2006-01-02 15:04:05 MST"))
	return subject, b.String(), true
}
