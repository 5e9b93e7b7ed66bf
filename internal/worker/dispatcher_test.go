package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invopay/reminder-api/internal/model"
	"github.com/invopay/reminder-api/internal/repository/memory"
	"github.com/invopay/reminder-api/internal/sender"
	"github.com/invopay/reminder-api/pkg/logger"
	"github.com/invopay/reminder-api/pkg/metrics"
)

// Shared across tests; promauto registers against the default registry and a
// second registration with the same namespace would panic.
var testMetrics = metrics.NewMetrics("dispatcher_test")

type fakeInvoices struct {
	status model.PaymentStatus
}

func (f *fakeInvoices) GetPaymentStatus(context.Context, uuid.UUID) (model.PaymentStatus, error) {
	return f.status, nil
}

func (f *fakeInvoices) GetDueDate(context.Context, uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func (f *fakeInvoices) GetContact(context.Context, uuid.UUID) (*model.InvoiceContact, error) {
	return nil, nil
}

type fakeSender struct {
	err   error
	calls int
}

func (f *fakeSender) Send(context.Context, uuid.UUID) error {
	f.calls++
	return f.err
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

func newTestDispatcher(repo *memory.ReminderRepository, status model.PaymentStatus, snd sender.ChannelSender, maxAttempts int) *Dispatcher {
	return NewDispatcher(
		repo,
		&fakeInvoices{status: status},
		sender.Registry{model.ChannelEmail: snd},
		nil,
		DispatcherConfig{
			BatchSize:      10,
			PollInterval:   time.Second,
			MaxAttempts:    maxAttempts,
			StatusCacheTTL: time.Millisecond,
		},
		testLogger(),
		testMetrics,
	)
}

func createDue(t *testing.T, repo *memory.ReminderRepository, channel model.Channel) *model.Reminder {
	t.Helper()
	r := &model.Reminder{
		InvoiceID:    uuid.New(),
		Kind:         model.ReminderKindOnDue,
		Channel:      channel,
		ScheduledFor: time.Now().Add(-time.Minute),
	}
	require.NoError(t, repo.Create(context.Background(), r))
	return r
}

func TestDispatchSkipsPaidInvoice(t *testing.T) {
	repo := memory.NewReminderRepository()
	snd := &fakeSender{}
	d := newTestDispatcher(repo, model.PaymentStatusPaid, snd, 5)
	ctx := context.Background()

	r := createDue(t, repo, model.ChannelEmail)
	require.NoError(t, d.dispatch(ctx, r))

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusSkipped, got.Status)
	assert.Zero(t, snd.calls)
}

func TestDispatchSendsUnpaidInvoice(t *testing.T) {
	repo := memory.NewReminderRepository()
	snd := &fakeSender{}
	d := newTestDispatcher(repo, model.PaymentStatusSent, snd, 5)
	ctx := context.Background()

	r := createDue(t, repo, model.ChannelEmail)
	require.NoError(t, d.dispatch(ctx, r))

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, 1, snd.calls)
}

func TestDispatchRecordsTransportFailure(t *testing.T) {
	repo := memory.NewReminderRepository()
	snd := &fakeSender{err: errors.New("smtp: connection refused")}
	d := newTestDispatcher(repo, model.PaymentStatusSent, snd, 5)
	ctx := context.Background()

	r := createDue(t, repo, model.ChannelEmail)
	require.NoError(t, d.dispatch(ctx, r))

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "connection refused")

	// Still a retry candidate.
	due, err := repo.ListDue(ctx, time.Now(), 5, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestDispatchLostClaimIsNoop(t *testing.T) {
	repo := memory.NewReminderRepository()
	snd := &fakeSender{}
	d := newTestDispatcher(repo, model.PaymentStatusSent, snd, 5)
	ctx := context.Background()

	r := createDue(t, repo, model.ChannelEmail)

	// Another worker claimed it between ListDue and our claim.
	claimed, err := repo.Claim(ctx, r.ID, uuid.New())
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, d.dispatch(ctx, r))

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusSending, got.Status)
	assert.Zero(t, snd.calls)
}

func TestDispatchUnroutableChannelFails(t *testing.T) {
	repo := memory.NewReminderRepository()
	d := newTestDispatcher(repo, model.PaymentStatusSent, &fakeSender{}, 5)
	ctx := context.Background()

	r := createDue(t, repo, model.ChannelWhatsApp)
	require.NoError(t, d.dispatch(ctx, r))

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
}

func TestProcessDueHandlesBatch(t *testing.T) {
	repo := memory.NewReminderRepository()
	snd := &fakeSender{}
	d := newTestDispatcher(repo, model.PaymentStatusSent, snd, 5)
	ctx := context.Background()

	first := createDue(t, repo, model.ChannelEmail)
	second := createDue(t, repo, model.ChannelEmail)

	require.NoError(t, d.processDue(ctx))

	for _, r := range []*model.Reminder{first, second} {
		got, err := repo.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReminderStatusSent, got.Status)
	}
	assert.Equal(t, 2, snd.calls)
}

func TestRetriesStopAtMaxAttempts(t *testing.T) {
	repo := memory.NewReminderRepository()
	snd := &fakeSender{err: errors.New("timeout")}
	d := newTestDispatcher(repo, model.PaymentStatusSent, snd, 2)
	ctx := context.Background()

	r := createDue(t, repo, model.ChannelEmail)

	// One attempt per tick; the third tick must not pick it up again.
	for i := 0; i < 3; i++ {
		require.NoError(t, d.processDue(ctx))
	}

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, 2, snd.calls)
}
