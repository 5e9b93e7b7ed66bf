package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/invopay/reminder-api/internal/model"
	"github.com/invopay/reminder-api/internal/repository"
	apperrors "github.com/invopay/reminder-api/pkg/errors"
)

type reminderRepository struct {
	BaseRepository
}

func NewReminderRepository(base BaseRepository) repository.ReminderRepository {
	return &reminderRepository{base}
}

const reminderColumns = `
	id, invoice_id, kind, day_offset, channel, scheduled_for,
	status, attempt_token, attempts, sent_at, error_message,
	created_at, updated_at
`

// slotKey identifies one (kind, day_offset, channel) schedule position.
type slotKey struct {
	Kind      model.ReminderKind `db:"kind"`
	DayOffset int                `db:"day_offset"`
	Channel   model.Channel      `db:"channel"`
}

// Replan runs the supersede-and-insert sequence in one transaction so a
// failure cannot leave an invoice with its old schedule cancelled and the
// new one half-written.
func (r *reminderRepository) Replan(ctx context.Context, invoiceID uuid.UUID, drafts []*model.Reminder) ([]*model.Reminder, error) {
	created := make([]*model.Reminder, 0, len(drafts))

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		cancel := `
			UPDATE reminders
			SET status = 'CANCELLED', updated_at = NOW()
			WHERE invoice_id = $1 AND status IN ('PENDING', 'FAILED')
		`
		if _, err := tx.ExecContext(ctx, cancel, invoiceID); err != nil {
			return fmt.Errorf("failed to supersede previous schedule: %w", err)
		}

		// Rows mid-SENDING finalize on their own and keep their slot under
		// the active-slot index, so the matching drafts are dropped.
		var inFlight []slotKey
		sending := `
			SELECT kind, day_offset, channel
			FROM reminders
			WHERE invoice_id = $1 AND status = 'SENDING'
		`
		if err := tx.SelectContext(ctx, &inFlight, sending, invoiceID); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to list in-flight reminders: %w", err)
		}
		occupied := make(map[slotKey]bool, len(inFlight))
		for _, s := range inFlight {
			occupied[s] = true
		}

		insert := `
			INSERT INTO reminders (
				id, invoice_id, kind, day_offset, channel, scheduled_for,
				status, attempts, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		for _, draft := range drafts {
			if occupied[slotKey{draft.Kind, draft.DayOffset, draft.Channel}] {
				continue
			}
			draft.ID = uuid.New()
			draft.Status = model.ReminderStatusPending
			draft.CreatedAt = time.Now()
			draft.UpdatedAt = time.Now()

			if _, err := tx.ExecContext(ctx, insert,
				draft.ID,
				draft.InvoiceID,
				draft.Kind,
				draft.DayOffset,
				draft.Channel,
				draft.ScheduledFor,
				draft.Status,
				draft.Attempts,
				draft.CreatedAt,
				draft.UpdatedAt,
			); err != nil {
				return fmt.Errorf("failed to persist reminder: %w", err)
			}
			created = append(created, draft)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *reminderRepository) Get(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

	var reminder model.Reminder
	err := r.db.GetContext(ctx, &reminder, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("reminder", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &reminder, nil
}

func (r *reminderRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*model.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE invoice_id = $1
		ORDER BY scheduled_for ASC, channel ASC
	`

	var reminders []*model.Reminder
	err := r.db.SelectContext(ctx, &reminders, query, invoiceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

func (r *reminderRepository) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*model.Reminder, error) {
	// FAILED rows stop being auto-retried once the attempt budget is spent;
	// manual send-now bypasses this query and can always retry them.
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE status IN ('PENDING', 'FAILED')
		  AND scheduled_for <= $1
		  AND (status = 'PENDING' OR attempts < $2)
		ORDER BY scheduled_for ASC
		LIMIT $3
	`

	var reminders []*model.Reminder
	err := r.db.SelectContext(ctx, &reminders, query, now, maxAttempts, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	return reminders, nil
}

// Claim is the single serialization point of the engine: a conditional
// update, never a read-then-write. Zero rows means another claimant won.
func (r *reminderRepository) Claim(ctx context.Context, id, token uuid.UUID) (bool, error) {
	query := `
		UPDATE reminders
		SET status = 'SENDING',
			attempt_token = $2,
			attempts = attempts + 1,
			updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'FAILED')
	`
	result, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *reminderRepository) FinalizeSent(ctx context.Context, id, token uuid.UUID, sentAt time.Time) (bool, error) {
	// Matching on attempt_token keeps a slow, superseded attempt from
	// clobbering the state a newer claim owns.
	query := `
		UPDATE reminders
		SET status = 'SENT',
			sent_at = $3,
			error_message = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'SENDING' AND attempt_token = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, token, sentAt)
	if err != nil {
		return false, fmt.Errorf("failed to finalize reminder as sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *reminderRepository) FinalizeFailed(ctx context.Context, id, token uuid.UUID, errMsg string) (bool, error) {
	query := `
		UPDATE reminders
		SET status = 'FAILED',
			error_message = $3,
			updated_at = NOW()
		WHERE id = $1 AND status = 'SENDING' AND attempt_token = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, token, errMsg)
	if err != nil {
		return false, fmt.Errorf("failed to finalize reminder as failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *reminderRepository) Skip(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE reminders
		SET status = 'SKIPPED', updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'FAILED')
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to skip reminder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *reminderRepository) SkipByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	query := `
		UPDATE reminders
		SET status = 'SKIPPED', updated_at = NOW()
		WHERE invoice_id = $1 AND status IN ('PENDING', 'FAILED')
	`
	result, err := r.db.ExecContext(ctx, query, invoiceID)
	if err != nil {
		return 0, fmt.Errorf("failed to skip reminders for invoice: %w", err)
	}
	return result.RowsAffected()
}

func (r *reminderRepository) CancelPending(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE reminders
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel reminder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
