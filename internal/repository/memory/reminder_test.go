package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invopay/reminder-api/internal/model"
)

func newPending(t *testing.T, repo *ReminderRepository, invoiceID uuid.UUID, scheduledFor time.Time) *model.Reminder {
	t.Helper()
	r := &model.Reminder{
		InvoiceID:    invoiceID,
		Kind:         model.ReminderKindOnDue,
		DayOffset:    0,
		Channel:      model.ChannelEmail,
		ScheduledFor: scheduledFor,
	}
	require.NoError(t, repo.Create(context.Background(), r))
	return r
}

func TestClaimExactlyOneWinner(t *testing.T) {
	repo := NewReminderRepository()
	r := newPending(t, repo, uuid.New(), time.Now())
	ctx := context.Background()

	const workers = 32
	var winners int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			claimed, err := repo.Claim(ctx, r.ID, uuid.New())
			assert.NoError(t, err)
			if claimed {
				atomic.AddInt64(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), winners)

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusSending, got.Status)
	assert.Equal(t, 1, got.Attempts)
}

func TestFinalizeRequiresMatchingToken(t *testing.T) {
	repo := NewReminderRepository()
	r := newPending(t, repo, uuid.New(), time.Now())
	ctx := context.Background()

	token := uuid.New()
	claimed, err := repo.Claim(ctx, r.ID, token)
	require.NoError(t, err)
	require.True(t, claimed)

	// A stale token from an earlier attempt cannot finalize.
	done, err := repo.FinalizeSent(ctx, r.ID, uuid.New(), time.Now())
	require.NoError(t, err)
	assert.False(t, done)

	done, err = repo.FinalizeSent(ctx, r.ID, token, time.Now())
	require.NoError(t, err)
	assert.True(t, done)

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusSent, got.Status)
	require.NotNil(t, got.SentAt)
}

func TestClaimRejectsTerminalStatuses(t *testing.T) {
	repo := NewReminderRepository()
	ctx := context.Background()

	for _, terminal := range []func(*model.Reminder) (bool, error){
		func(r *model.Reminder) (bool, error) { return repo.Skip(ctx, r.ID) },
		func(r *model.Reminder) (bool, error) { return repo.CancelPending(ctx, r.ID) },
	} {
		r := newPending(t, repo, uuid.New(), time.Now())
		ok, err := terminal(r)
		require.NoError(t, err)
		require.True(t, ok)

		claimed, err := repo.Claim(ctx, r.ID, uuid.New())
		require.NoError(t, err)
		assert.False(t, claimed)
	}
}

func TestFailedReminderIsClaimableAgain(t *testing.T) {
	repo := NewReminderRepository()
	r := newPending(t, repo, uuid.New(), time.Now())
	ctx := context.Background()

	token := uuid.New()
	claimed, err := repo.Claim(ctx, r.ID, token)
	require.NoError(t, err)
	require.True(t, claimed)

	done, err := repo.FinalizeFailed(ctx, r.ID, token, "timeout")
	require.NoError(t, err)
	require.True(t, done)

	claimed, err = repo.Claim(ctx, r.ID, uuid.New())
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
}

func TestListDueFiltersScheduleAndAttempts(t *testing.T) {
	repo := NewReminderRepository()
	ctx := context.Background()
	now := time.Now()

	due := newPending(t, repo, uuid.New(), now.Add(-time.Minute))
	newPending(t, repo, uuid.New(), now.Add(time.Hour))

	// Exhaust a third reminder's retry budget.
	exhausted := newPending(t, repo, uuid.New(), now.Add(-time.Minute))
	for i := 0; i < 3; i++ {
		token := uuid.New()
		claimed, err := repo.Claim(ctx, exhausted.ID, token)
		require.NoError(t, err)
		require.True(t, claimed)
		done, err := repo.FinalizeFailed(ctx, exhausted.ID, token, "timeout")
		require.NoError(t, err)
		require.True(t, done)
	}

	got, err := repo.ListDue(ctx, now, 3, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}

func TestSkipByInvoiceIsIdempotent(t *testing.T) {
	repo := NewReminderRepository()
	ctx := context.Background()
	invoiceID := uuid.New()

	newPending(t, repo, invoiceID, time.Now())
	newPending(t, repo, invoiceID, time.Now())
	other := newPending(t, repo, uuid.New(), time.Now())

	n, err := repo.SkipByInvoice(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.SkipByInvoice(ctx, invoiceID)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := repo.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusPending, got.Status)
}
