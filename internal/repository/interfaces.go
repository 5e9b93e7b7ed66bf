package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/invopay/reminder-api/internal/model"
)

// All repository interfaces in one file
type (
	// ReminderRepository is the durable record of reminders. Claim, finalize,
	// skip and cancel are single conditional writes with a status-equality
	// precondition; they are the only mutual-exclusion primitive the engine
	// relies on. Each returns false (or zero rows) when the precondition no
	// longer holds, which callers treat as losing the race, not as an error.
	ReminderRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Reminder, error)
		ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.Reminder, error)

		// Replan supersedes an invoice's schedule in one atomic step: PENDING
		// and FAILED rows become CANCELLED, then the fresh drafts are written.
		// A slot still mid-SENDING keeps its in-flight row and the draft for
		// it is dropped. Returns the drafts actually created.
		Replan(ctx context.Context, invoiceID uuid.UUID, drafts []*model.Reminder) ([]*model.Reminder, error)

		// ListDue returns dispatch candidates: PENDING or retryable FAILED
		// reminders whose scheduled_for has passed, oldest first.
		ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*model.Reminder, error)

		// Claim transitions PENDING|FAILED -> SENDING, records token as the
		// new attempt token and bumps the attempt counter.
		Claim(ctx context.Context, id, token uuid.UUID) (bool, error)

		// FinalizeSent transitions SENDING -> SENT iff token still matches.
		FinalizeSent(ctx context.Context, id, token uuid.UUID, sentAt time.Time) (bool, error)

		// FinalizeFailed transitions SENDING -> FAILED iff token still matches.
		FinalizeFailed(ctx context.Context, id, token uuid.UUID, errMsg string) (bool, error)

		// Skip transitions one PENDING|FAILED reminder to SKIPPED.
		Skip(ctx context.Context, id uuid.UUID) (bool, error)

		// SkipByInvoice is the paid cascade: every PENDING|FAILED reminder of
		// the invoice becomes SKIPPED. Idempotent.
		SkipByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)

		// CancelPending transitions PENDING -> CANCELLED.
		CancelPending(ctx context.Context, id uuid.UUID) (bool, error)
	}

	// InvoiceReader is the read-only view of the invoice service.
	InvoiceReader interface {
		GetPaymentStatus(ctx context.Context, invoiceID uuid.UUID) (model.PaymentStatus, error)
		GetDueDate(ctx context.Context, invoiceID uuid.UUID) (*time.Time, error)
		GetContact(ctx context.Context, invoiceID uuid.UUID) (*model.InvoiceContact, error)
	}

	// EntitlementChecker gates the reminders feature by billing plan.
	EntitlementChecker interface {
		RemindersEnabled(ctx context.Context, invoiceID uuid.UUID) (bool, error)
	}
)
