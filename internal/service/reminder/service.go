package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/invopay/reminder-api/internal/model"
	"github.com/invopay/reminder-api/internal/repository"
	"github.com/invopay/reminder-api/internal/sender"
	apperrors "github.com/invopay/reminder-api/pkg/errors"
	"github.com/invopay/reminder-api/pkg/logger"
)

// Service exposes the reminder engine to the application layer.
type Service struct {
	repo         repository.ReminderRepository
	invoices     repository.InvoiceReader
	entitlements repository.EntitlementChecker
	senders      sender.Registry
	policy       SchedulePolicy
	logger       *logger.Logger
}

func NewService(
	repo repository.ReminderRepository,
	invoices repository.InvoiceReader,
	entitlements repository.EntitlementChecker,
	senders sender.Registry,
	policy SchedulePolicy,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:         repo,
		invoices:     invoices,
		entitlements: entitlements,
		senders:      senders,
		policy:       policy,
		logger:       logger,
	}
}

// PlanAndEnable plans and persists the reminder schedule for an invoice.
// Replanning atomically supersedes PENDING and FAILED rows; terminal rows
// stay as history, and a reminder mid-send finalizes normally, keeping its
// slot until it does.
func (s *Service) PlanAndEnable(ctx context.Context, invoiceID uuid.UUID) ([]*model.Reminder, error) {
	enabled, err := s.entitlements.RemindersEnabled(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check entitlement: %w", err)
	}
	if !enabled {
		return nil, apperrors.NotEligible("plan does not include reminders")
	}

	dueDate, err := s.invoices.GetDueDate(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get due date: %w", err)
	}
	if dueDate == nil {
		return nil, apperrors.NotEligible("invoice has no due date")
	}

	contact, err := s.invoices.GetContact(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get buyer contact: %w", err)
	}
	if !contact.HasEmail() && !contact.HasPhone() {
		return nil, apperrors.NotEligible("buyer is not reachable on any channel")
	}

	drafts := s.policy.Plan(invoiceID, *dueDate, contact.HasEmail(), contact.HasPhone())
	created, err := s.repo.Replan(ctx, invoiceID, drafts)
	if err != nil {
		return nil, fmt.Errorf("failed to replan reminders: %w", err)
	}

	s.logger.Info("reminder schedule replanned",
		"invoice_id", invoiceID.String(), "reminders", len(created))
	return created, nil
}

// Cancel is a best-effort conditional transition from PENDING only. A
// reminder already claimed keeps sending and finalizes normally.
func (s *Service) Cancel(ctx context.Context, reminderID uuid.UUID) error {
	ok, err := s.repo.CancelPending(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to cancel reminder: %w", err)
	}
	if ok {
		return nil
	}

	reminder, err := s.repo.Get(ctx, reminderID)
	if err != nil {
		return err
	}
	if reminder.Status.Terminal() {
		return apperrors.AlreadyTerminal(string(reminder.Status))
	}
	return apperrors.AlreadyClaimed()
}

// SendNow forces an immediate delivery through the same claim path the
// dispatcher uses, so a user click racing the scheduler cannot double-send.
func (s *Service) SendNow(ctx context.Context, reminderID uuid.UUID) error {
	reminder, err := s.repo.Get(ctx, reminderID)
	if err != nil {
		return err
	}

	token := uuid.New()
	claimed, err := s.repo.Claim(ctx, reminderID, token)
	if err != nil {
		return fmt.Errorf("failed to claim reminder: %w", err)
	}
	if !claimed {
		return apperrors.AlreadyClaimed()
	}

	snd, err := s.senders.For(reminder.Channel)
	if err != nil {
		if _, ferr := s.repo.FinalizeFailed(ctx, reminderID, token, err.Error()); ferr != nil {
			s.logger.Error(ferr, "failed to record send failure", "reminder_id", reminderID.String())
		}
		return apperrors.SendFailed(err)
	}

	if sendErr := snd.Send(ctx, reminder.InvoiceID); sendErr != nil {
		if _, ferr := s.repo.FinalizeFailed(ctx, reminderID, token, sendErr.Error()); ferr != nil {
			s.logger.Error(ferr, "failed to record send failure", "reminder_id", reminderID.String())
		}
		return apperrors.SendFailed(sendErr)
	}

	if _, err := s.repo.FinalizeSent(ctx, reminderID, token, time.Now()); err != nil {
		return fmt.Errorf("failed to finalize reminder: %w", err)
	}

	s.logger.Info("reminder sent manually",
		"reminder_id", reminderID.String(), "channel", string(reminder.Channel))
	return nil
}

// List returns every reminder of an invoice, history included.
func (s *Service) List(ctx context.Context, invoiceID uuid.UUID) ([]*model.Reminder, error) {
	reminders, err := s.repo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}
