package model

import (
	"time"

	"github.com/google/uuid"
)

type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "PENDING"
	ReminderStatusSending   ReminderStatus = "SENDING"
	ReminderStatusSent      ReminderStatus = "SENT"
	ReminderStatusFailed    ReminderStatus = "FAILED"
	ReminderStatusSkipped   ReminderStatus = "SKIPPED"
	ReminderStatusCancelled ReminderStatus = "CANCELLED"
)

// Terminal reports whether no further status transition is permitted.
// FAILED is not terminal: it stays eligible for another claim.
func (s ReminderStatus) Terminal() bool {
	switch s {
	case ReminderStatusSent, ReminderStatusSkipped, ReminderStatusCancelled:
		return true
	}
	return false
}

type ReminderKind string

const (
	ReminderKindBeforeDue ReminderKind = "BEFORE_DUE"
	ReminderKindOnDue     ReminderKind = "ON_DUE"
	ReminderKindAfterDue  ReminderKind = "AFTER_DUE"
)

// KindForOffset classifies a day offset relative to the due date.
func KindForOffset(dayOffset int) ReminderKind {
	switch {
	case dayOffset < 0:
		return ReminderKindBeforeDue
	case dayOffset == 0:
		return ReminderKindOnDue
	default:
		return ReminderKindAfterDue
	}
}

type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
)

// Reminder is one scheduled, channel-specific notification attempt tied to an
// invoice and a day offset from its due date. ScheduledFor is fixed at
// creation time; a due-date edit replans instead of mutating it in place.
type Reminder struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	InvoiceID    uuid.UUID      `db:"invoice_id" json:"invoice_id"`
	Kind         ReminderKind   `db:"kind" json:"kind"`
	DayOffset    int            `db:"day_offset" json:"day_offset"`
	Channel      Channel        `db:"channel" json:"channel"`
	ScheduledFor time.Time      `db:"scheduled_for" json:"scheduled_for"`
	Status       ReminderStatus `db:"status" json:"status"`
	AttemptToken *uuid.UUID     `db:"attempt_token" json:"-"`
	Attempts     int            `db:"attempts" json:"attempts"`
	SentAt       *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ReminderEvent is published on the broker whenever the dispatcher finalizes
// or skips a reminder.
type ReminderEvent struct {
	ReminderID uuid.UUID      `json:"reminder_id"`
	InvoiceID  uuid.UUID      `json:"invoice_id"`
	Channel    Channel        `json:"channel"`
	Status     ReminderStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// InvoicePaidEvent is the payload the application publishes when an invoice
// transitions to PAID.
type InvoicePaidEvent struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	PaidAt    time.Time `json:"paid_at"`
}
