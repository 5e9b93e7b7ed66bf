package reminder

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invopay/reminder-api/internal/model"
)

func TestSendInstantPinsHour(t *testing.T) {
	policy := NewSchedulePolicy(9, time.UTC)
	dueDate := time.Date(2026, 3, 10, 17, 42, 13, 0, time.UTC)

	got := policy.SendInstant(dueDate, -3)
	assert.Equal(t, time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC), got)

	got = policy.SendInstant(dueDate, 0)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), got)

	got = policy.SendInstant(dueDate, 7)
	assert.Equal(t, time.Date(2026, 3, 17, 9, 0, 0, 0, time.UTC), got)
}

func TestSendInstantIsDeterministic(t *testing.T) {
	policy := NewSchedulePolicy(9, time.UTC)

	// Two invoices due the same day at different times of day must land on
	// the same dispatch instant.
	morning := time.Date(2026, 3, 10, 1, 5, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 10, 23, 55, 0, 0, time.UTC)

	assert.Equal(t, policy.SendInstant(morning, 1), policy.SendInstant(evening, 1))
}

func TestSendInstantUsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	policy := NewSchedulePolicy(9, loc)

	// Due just after midnight UTC is still the previous day in a zone behind
	// UTC, and the next day in a zone ahead of it.
	dueDate := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)

	got := policy.SendInstant(dueDate, 0)
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, loc), got)
}

func TestNewSchedulePolicyDefaultsToUTC(t *testing.T) {
	policy := NewSchedulePolicy(9, nil)
	assert.Equal(t, time.UTC, policy.Location)
}

func TestKindForOffset(t *testing.T) {
	assert.Equal(t, model.ReminderKindBeforeDue, model.KindForOffset(-3))
	assert.Equal(t, model.ReminderKindBeforeDue, model.KindForOffset(-1))
	assert.Equal(t, model.ReminderKindOnDue, model.KindForOffset(0))
	assert.Equal(t, model.ReminderKindAfterDue, model.KindForOffset(1))
	assert.Equal(t, model.ReminderKindAfterDue, model.KindForOffset(7))
}

func TestPlanEmailOnly(t *testing.T) {
	policy := NewSchedulePolicy(9, time.UTC)
	invoiceID := uuid.New()
	dueDate := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	drafts := policy.Plan(invoiceID, dueDate, true, false)
	require.Len(t, drafts, len(DefaultOffsets))

	for i, draft := range drafts {
		assert.Equal(t, invoiceID, draft.InvoiceID)
		assert.Equal(t, model.ChannelEmail, draft.Channel)
		assert.Equal(t, DefaultOffsets[i], draft.DayOffset)
		assert.Equal(t, model.KindForOffset(DefaultOffsets[i]), draft.Kind)
		assert.Equal(t, model.ReminderStatusPending, draft.Status)
		assert.Equal(t, policy.SendInstant(dueDate, DefaultOffsets[i]), draft.ScheduledFor)
	}
}

func TestPlanBothChannels(t *testing.T) {
	policy := NewSchedulePolicy(9, time.UTC)
	dueDate := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	drafts := policy.Plan(uuid.New(), dueDate, true, true)
	require.Len(t, drafts, 2*len(DefaultOffsets))

	perChannel := map[model.Channel]int{}
	for _, draft := range drafts {
		perChannel[draft.Channel]++
	}
	assert.Equal(t, len(DefaultOffsets), perChannel[model.ChannelEmail])
	assert.Equal(t, len(DefaultOffsets), perChannel[model.ChannelWhatsApp])
}

func TestPlanUnreachableIsEmpty(t *testing.T) {
	policy := NewSchedulePolicy(9, time.UTC)
	drafts := policy.Plan(uuid.New(), time.Now(), false, false)
	assert.Empty(t, drafts)
}
