package lifecycle

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invopay/reminder-api/internal/model"
	"github.com/invopay/reminder-api/internal/repository/memory"
	"github.com/invopay/reminder-api/pkg/logger"
)

type fakeBroker struct {
	msgs chan []byte
}

func (b *fakeBroker) Publish(_ context.Context, _ string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.msgs <- payload
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.msgs, nil
}

func (b *fakeBroker) Close() error { return nil }

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

func createReminder(t *testing.T, repo *memory.ReminderRepository, invoiceID uuid.UUID) *model.Reminder {
	t.Helper()
	r := &model.Reminder{
		InvoiceID:    invoiceID,
		Kind:         model.ReminderKindOnDue,
		Channel:      model.ChannelEmail,
		ScheduledFor: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), r))
	return r
}

func TestOnPaidSkipsOutstandingReminders(t *testing.T) {
	repo := memory.NewReminderRepository()
	l := NewListener(repo, testLogger())
	ctx := context.Background()
	invoiceID := uuid.New()

	first := createReminder(t, repo, invoiceID)
	second := createReminder(t, repo, invoiceID)

	require.NoError(t, l.OnPaid(ctx, invoiceID))

	for _, r := range []*model.Reminder{first, second} {
		got, err := repo.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReminderStatusSkipped, got.Status)
	}

	// Second delivery of the same event is a no-op.
	require.NoError(t, l.OnPaid(ctx, invoiceID))
}

func TestOnPaidLeavesSentHistoryAlone(t *testing.T) {
	repo := memory.NewReminderRepository()
	l := NewListener(repo, testLogger())
	ctx := context.Background()
	invoiceID := uuid.New()

	r := createReminder(t, repo, invoiceID)
	token := uuid.New()
	claimed, err := repo.Claim(ctx, r.ID, token)
	require.NoError(t, err)
	require.True(t, claimed)
	done, err := repo.FinalizeSent(ctx, r.ID, token, time.Now())
	require.NoError(t, err)
	require.True(t, done)

	require.NoError(t, l.OnPaid(ctx, invoiceID))

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusSent, got.Status)
}

func TestRunConsumesPaidEvents(t *testing.T) {
	repo := memory.NewReminderRepository()
	l := NewListener(repo, testLogger())
	broker := &fakeBroker{msgs: make(chan []byte, 10)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	invoiceID := uuid.New()
	r := createReminder(t, repo, invoiceID)

	go func() {
		_ = l.Run(ctx, broker)
	}()

	require.NoError(t, broker.Publish(ctx, "invoices.paid", model.InvoicePaidEvent{
		InvoiceID: invoiceID,
		PaidAt:    time.Now(),
	}))

	require.Eventually(t, func() bool {
		got, err := repo.Get(context.Background(), r.ID)
		return err == nil && got.Status == model.ReminderStatusSkipped
	}, time.Second, 10*time.Millisecond)
}
