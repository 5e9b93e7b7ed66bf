// Package lifecycle reacts to invoice payment transitions. The invoice
// entity has no awareness of reminders; payment events reach this listener
// either synchronously (HTTP hook) or through the broker subscription.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/invopay/reminder-api/internal/model"
	"github.com/invopay/reminder-api/internal/repository"
	"github.com/invopay/reminder-api/pkg/logger"
	"github.com/invopay/reminder-api/pkg/messaging"
)

type Listener struct {
	repo   repository.ReminderRepository
	logger *logger.Logger
}

func NewListener(repo repository.ReminderRepository, logger *logger.Logger) *Listener {
	return &Listener{
		repo:   repo,
		logger: logger,
	}
}

// OnPaid cascades the paid state to every outstanding reminder of the
// invoice. Idempotent: an invoice with no non-terminal reminders is a no-op.
// The dispatcher's own pre-claim payment check covers any send already
// mid-flight when this runs.
func (l *Listener) OnPaid(ctx context.Context, invoiceID uuid.UUID) error {
	skipped, err := l.repo.SkipByInvoice(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to skip reminders for paid invoice: %w", err)
	}

	if skipped > 0 {
		l.logger.Info("skipped reminders for paid invoice",
			"invoice_id", invoiceID.String(), "skipped", skipped)
	}
	return nil
}

// Run consumes invoice-paid events from the broker until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, broker messaging.Broker) error {
	msgs, err := broker.Subscribe(ctx, messaging.ChannelInvoicePaid)
	if err != nil {
		return fmt.Errorf("failed to subscribe to paid events: %w", err)
	}

	l.logger.Info("lifecycle listener started", "channel", messaging.ChannelInvoicePaid)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("lifecycle listener shutting down")
			return nil
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}

			var event model.InvoicePaidEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				l.logger.Error(err, "failed to decode paid event")
				continue
			}
			if event.InvoiceID == uuid.Nil {
				l.logger.Warn("paid event without invoice id")
				continue
			}

			if err := l.OnPaid(ctx, event.InvoiceID); err != nil {
				l.logger.Error(err, "failed to process paid event",
					"invoice_id", event.InvoiceID.String())
			}
		}
	}
}
