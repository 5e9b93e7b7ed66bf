package reminder

import (
	"time"

	"github.com/google/uuid"

	"github.com/invopay/reminder-api/internal/model"
)

// DefaultOffsets is the standard reminder cadence in days relative to the
// invoice due date.
var DefaultOffsets = []int{-3, -1, 0, 1, 3, 7}

// SchedulePolicy fixes the local time of day reminders go out, regardless of
// the time-of-day the invoice happened to be created. A consistent hour
// keeps "1 day before" and "due date" reminders landing predictably.
type SchedulePolicy struct {
	SendHour int
	Location *time.Location
}

func NewSchedulePolicy(sendHour int, location *time.Location) SchedulePolicy {
	if location == nil {
		location = time.UTC
	}
	return SchedulePolicy{SendHour: sendHour, Location: location}
}

// SendInstant maps a due date and day offset to the absolute dispatch
// instant. Pure: same inputs, same output.
func (p SchedulePolicy) SendInstant(dueDate time.Time, dayOffset int) time.Time {
	day := dueDate.In(p.Location).AddDate(0, 0, dayOffset)
	return time.Date(day.Year(), day.Month(), day.Day(), p.SendHour, 0, 0, 0, p.Location)
}

// Plan produces the ordered draft set for one invoice: one draft per
// reachable channel per offset. An offset with no reachable channel is
// silently omitted; callers decide whether an empty plan is an error.
func (p SchedulePolicy) Plan(invoiceID uuid.UUID, dueDate time.Time, hasEmail, hasPhone bool) []*model.Reminder {
	var drafts []*model.Reminder
	for _, offset := range DefaultOffsets {
		scheduledFor := p.SendInstant(dueDate, offset)
		kind := model.KindForOffset(offset)

		if hasEmail {
			drafts = append(drafts, &model.Reminder{
				InvoiceID:    invoiceID,
				Kind:         kind,
				DayOffset:    offset,
				Channel:      model.ChannelEmail,
				ScheduledFor: scheduledFor,
				Status:       model.ReminderStatusPending,
			})
		}
		if hasPhone {
			drafts = append(drafts, &model.Reminder{
				InvoiceID:    invoiceID,
				Kind:         kind,
				DayOffset:    offset,
				Channel:      model.ChannelWhatsApp,
				ScheduledFor: scheduledFor,
				Status:       model.ReminderStatusPending,
			})
		}
	}
	return drafts
}
