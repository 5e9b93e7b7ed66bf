package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/invopay/reminder-api/internal/model"
	"github.com/invopay/reminder-api/internal/repository"
)

// invoiceReader is a read-only view over the invoice service's tables. The
// reminder engine never writes to them; payment status and due date are
// owned elsewhere.
type invoiceReader struct {
	BaseRepository
}

func NewInvoiceReader(base BaseRepository) repository.InvoiceReader {
	return &invoiceReader{base}
}

func (r *invoiceReader) GetPaymentStatus(ctx context.Context, invoiceID uuid.UUID) (model.PaymentStatus, error) {
	query := `SELECT payment_status FROM invoices WHERE id = $1`

	var status model.PaymentStatus
	err := r.db.GetContext(ctx, &status, query, invoiceID)
	if err != nil {
		return "", fmt.Errorf("failed to get payment status: %w", err)
	}
	return status, nil
}

func (r *invoiceReader) GetDueDate(ctx context.Context, invoiceID uuid.UUID) (*time.Time, error) {
	query := `SELECT due_date FROM invoices WHERE id = $1`

	var dueDate *time.Time
	err := r.db.GetContext(ctx, &dueDate, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get due date: %w", err)
	}
	return dueDate, nil
}

func (r *invoiceReader) GetContact(ctx context.Context, invoiceID uuid.UUID) (*model.InvoiceContact, error) {
	query := `
		SELECT b.email, b.phone
		FROM invoices i
		JOIN buyers b ON b.id = i.buyer_id
		WHERE i.id = $1
	`

	var contact model.InvoiceContact
	err := r.db.GetContext(ctx, &contact, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get buyer contact: %w", err)
	}
	return &contact, nil
}

// entitlementChecker reads the billing plan of the business owning an
// invoice. Plan management itself is outside this service.
type entitlementChecker struct {
	BaseRepository
}

func NewEntitlementChecker(base BaseRepository) repository.EntitlementChecker {
	return &entitlementChecker{base}
}

func (r *entitlementChecker) RemindersEnabled(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	query := `
		SELECT bus.reminders_enabled
		FROM invoices i
		JOIN businesses bus ON bus.id = i.business_id
		WHERE i.id = $1
	`

	var enabled bool
	err := r.db.GetContext(ctx, &enabled, query, invoiceID)
	if err != nil {
		return false, fmt.Errorf("failed to check reminder entitlement: %w", err)
	}
	return enabled, nil
}
