// Package memory holds an in-memory ReminderRepository with the same
// conditional-update semantics as the postgres implementation. It backs the
// unit tests and local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/invopay/reminder-api/internal/model"
	"github.com/invopay/reminder-api/internal/repository"
	apperrors "github.com/invopay/reminder-api/pkg/errors"
)

type ReminderRepository struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*model.Reminder
}

func NewReminderRepository() *ReminderRepository {
	return &ReminderRepository{
		reminders: make(map[uuid.UUID]*model.Reminder),
	}
}

var _ repository.ReminderRepository = (*ReminderRepository)(nil)

// Replan mirrors the postgres transaction: the supersede and the inserts all
// happen under one lock acquisition.
func (r *ReminderRepository) Replan(_ context.Context, invoiceID uuid.UUID, drafts []*model.Reminder) ([]*model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type slot struct {
		kind      model.ReminderKind
		dayOffset int
		channel   model.Channel
	}
	occupied := make(map[slot]bool)
	for _, reminder := range r.reminders {
		if reminder.InvoiceID != invoiceID {
			continue
		}
		switch reminder.Status {
		case model.ReminderStatusPending, model.ReminderStatusFailed:
			reminder.Status = model.ReminderStatusCancelled
			reminder.UpdatedAt = time.Now()
		case model.ReminderStatusSending:
			occupied[slot{reminder.Kind, reminder.DayOffset, reminder.Channel}] = true
		}
	}

	var created []*model.Reminder
	for _, draft := range drafts {
		if occupied[slot{draft.Kind, draft.DayOffset, draft.Channel}] {
			continue
		}
		draft.ID = uuid.New()
		draft.Status = model.ReminderStatusPending
		draft.CreatedAt = time.Now()
		draft.UpdatedAt = time.Now()

		clone := *draft
		r.reminders[draft.ID] = &clone
		created = append(created, draft)
	}
	return created, nil
}

// Create seeds a single reminder; the tests use it to arrange state that the
// engine itself only produces through Replan.
func (r *ReminderRepository) Create(_ context.Context, reminder *model.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder.ID = uuid.New()
	reminder.Status = model.ReminderStatusPending
	reminder.CreatedAt = time.Now()
	reminder.UpdatedAt = time.Now()

	clone := *reminder
	r.reminders[reminder.ID] = &clone
	return nil
}

func (r *ReminderRepository) Get(_ context.Context, id uuid.UUID) (*model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok {
		return nil, apperrors.NotFound("reminder", nil)
	}
	clone := *reminder
	return &clone, nil
}

func (r *ReminderRepository) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Reminder
	for _, reminder := range r.reminders {
		if reminder.InvoiceID == invoiceID {
			clone := *reminder
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].Channel < out[j].Channel
		}
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})
	return out, nil
}

func (r *ReminderRepository) ListDue(_ context.Context, now time.Time, maxAttempts, limit int) ([]*model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Reminder
	for _, reminder := range r.reminders {
		due := !reminder.ScheduledFor.After(now)
		retryable := reminder.Status == model.ReminderStatusPending ||
			(reminder.Status == model.ReminderStatusFailed && reminder.Attempts < maxAttempts)
		if due && retryable {
			clone := *reminder
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ReminderRepository) Claim(_ context.Context, id, token uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok {
		return false, nil
	}
	if reminder.Status != model.ReminderStatusPending && reminder.Status != model.ReminderStatusFailed {
		return false, nil
	}
	reminder.Status = model.ReminderStatusSending
	tok := token
	reminder.AttemptToken = &tok
	reminder.Attempts++
	reminder.UpdatedAt = time.Now()
	return true, nil
}

func (r *ReminderRepository) FinalizeSent(_ context.Context, id, token uuid.UUID, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok || reminder.Status != model.ReminderStatusSending {
		return false, nil
	}
	if reminder.AttemptToken == nil || *reminder.AttemptToken != token {
		return false, nil
	}
	reminder.Status = model.ReminderStatusSent
	at := sentAt
	reminder.SentAt = &at
	reminder.ErrorMessage = nil
	reminder.UpdatedAt = time.Now()
	return true, nil
}

func (r *ReminderRepository) FinalizeFailed(_ context.Context, id, token uuid.UUID, errMsg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok || reminder.Status != model.ReminderStatusSending {
		return false, nil
	}
	if reminder.AttemptToken == nil || *reminder.AttemptToken != token {
		return false, nil
	}
	reminder.Status = model.ReminderStatusFailed
	msg := errMsg
	reminder.ErrorMessage = &msg
	reminder.UpdatedAt = time.Now()
	return true, nil
}

func (r *ReminderRepository) Skip(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok {
		return false, nil
	}
	if reminder.Status != model.ReminderStatusPending && reminder.Status != model.ReminderStatusFailed {
		return false, nil
	}
	reminder.Status = model.ReminderStatusSkipped
	reminder.UpdatedAt = time.Now()
	return true, nil
}

func (r *ReminderRepository) SkipByInvoice(_ context.Context, invoiceID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, reminder := range r.reminders {
		if reminder.InvoiceID != invoiceID {
			continue
		}
		if reminder.Status == model.ReminderStatusPending || reminder.Status == model.ReminderStatusFailed {
			reminder.Status = model.ReminderStatusSkipped
			reminder.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (r *ReminderRepository) CancelPending(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok || reminder.Status != model.ReminderStatusPending {
		return false, nil
	}
	reminder.Status = model.ReminderStatusCancelled
	reminder.UpdatedAt = time.Now()
	return true, nil
}
