package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/invopay/reminder-api/internal/model"
	"github.com/invopay/reminder-api/internal/repository"
	"github.com/invopay/reminder-api/internal/sender"
	"github.com/invopay/reminder-api/pkg/circuitbreaker"
	"github.com/invopay/reminder-api/pkg/logger"
	"github.com/invopay/reminder-api/pkg/messaging"
	"github.com/invopay/reminder-api/pkg/metrics"
)

type DispatcherConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxAttempts bounds automatic retries of FAILED reminders. Manual
	// send-now is never bounded by it.
	MaxAttempts    int
	StatusCacheTTL time.Duration
}

// Dispatcher is the recurring delivery loop. Any number of dispatcher
// processes may run in parallel; the store's conditional claim is the only
// serialization between them.
type Dispatcher struct {
	repo        repository.ReminderRepository
	invoices    repository.InvoiceReader
	senders     sender.Registry
	broker      messaging.Broker
	statusCache *gocache.Cache
	breakers    map[model.Channel]*circuitbreaker.CircuitBreaker
	config      DispatcherConfig
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewDispatcher(
	repo repository.ReminderRepository,
	invoices repository.InvoiceReader,
	senders sender.Registry,
	broker messaging.Broker,
	config DispatcherConfig,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}
	if config.StatusCacheTTL <= 0 {
		config.StatusCacheTTL = 30 * time.Second
	}

	breakers := make(map[model.Channel]*circuitbreaker.CircuitBreaker, len(senders))
	for channel := range senders {
		breakers[channel] = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        fmt.Sprintf("sender-%s", channel),
			MaxFailures: 5,
			Timeout:     time.Minute,
		})
	}

	return &Dispatcher{
		repo:        repo,
		invoices:    invoices,
		senders:     senders,
		broker:      broker,
		statusCache: gocache.New(config.StatusCacheTTL, 2*config.StatusCacheTTL),
		breakers:    breakers,
		config:      config,
		logger:      logger,
		metrics:     m,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info("starting reminder dispatcher",
		"poll_interval", d.config.PollInterval.String(),
		"batch_size", d.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down reminder dispatcher")
			return
		case <-ticker.C:
			if err := d.processDue(ctx); err != nil {
				d.logger.Error(err, "failed to process due reminders")
			}
		}
	}
}

func (d *Dispatcher) processDue(ctx context.Context) error {
	timer := prometheus.NewTimer(d.metrics.DispatchLatency)
	defer timer.ObserveDuration()

	due, err := d.repo.ListDue(ctx, time.Now(), d.config.MaxAttempts, d.config.BatchSize)
	if err != nil {
		d.metrics.DatabaseOperations.WithLabelValues("list_due", "error").Inc()
		return fmt.Errorf("failed to list due reminders: %w", err)
	}
	d.metrics.DatabaseOperations.WithLabelValues("list_due", "success").Inc()
	d.metrics.DueBatchSize.Set(float64(len(due)))

	for _, reminder := range due {
		if err := d.dispatch(ctx, reminder); err != nil {
			d.logger.Error(err, "failed to dispatch reminder",
				"reminder_id", reminder.ID.String(),
				"invoice_id", reminder.InvoiceID.String())
		}
	}
	return nil
}

// dispatch handles one candidate: skip if the invoice is paid, otherwise
// claim, send, finalize. Losing the claim is the expected de-duplication
// path and never an error.
func (d *Dispatcher) dispatch(ctx context.Context, reminder *model.Reminder) error {
	status, err := d.paymentStatus(ctx, reminder.InvoiceID)
	if err != nil {
		return fmt.Errorf("failed to check payment status: %w", err)
	}

	if status == model.PaymentStatusPaid {
		skipped, err := d.repo.Skip(ctx, reminder.ID)
		if err != nil {
			return fmt.Errorf("failed to skip reminder: %w", err)
		}
		if skipped {
			d.metrics.RemindersSkipped.Inc()
			d.publishEvent(ctx, reminder, model.ReminderStatusSkipped, "")
		}
		return nil
	}

	token := uuid.New()
	claimed, err := d.repo.Claim(ctx, reminder.ID, token)
	if err != nil {
		return fmt.Errorf("failed to claim reminder: %w", err)
	}
	if !claimed {
		d.metrics.ClaimConflicts.Inc()
		return nil
	}

	snd, err := d.senders.For(reminder.Channel)
	if err != nil {
		if _, ferr := d.repo.FinalizeFailed(ctx, reminder.ID, token, err.Error()); ferr != nil {
			return fmt.Errorf("failed to record send failure: %w", ferr)
		}
		d.metrics.RemindersFailed.Inc()
		d.publishEvent(ctx, reminder, model.ReminderStatusFailed, err.Error())
		return nil
	}

	sendTimer := prometheus.NewTimer(d.metrics.SendDuration.WithLabelValues(string(reminder.Channel)))
	sendErr := d.breakers[reminder.Channel].Execute(func() error {
		return snd.Send(ctx, reminder.InvoiceID)
	})
	sendTimer.ObserveDuration()

	if sendErr != nil {
		if _, ferr := d.repo.FinalizeFailed(ctx, reminder.ID, token, sendErr.Error()); ferr != nil {
			return fmt.Errorf("failed to record send failure: %w", ferr)
		}
		d.metrics.RemindersFailed.Inc()
		d.publishEvent(ctx, reminder, model.ReminderStatusFailed, sendErr.Error())
		d.logger.Warn("reminder delivery failed",
			"reminder_id", reminder.ID.String(),
			"channel", string(reminder.Channel),
			"error", sendErr.Error())
		return nil
	}

	if _, err := d.repo.FinalizeSent(ctx, reminder.ID, token, time.Now()); err != nil {
		return fmt.Errorf("failed to finalize reminder: %w", err)
	}
	d.metrics.RemindersSent.Inc()
	d.publishEvent(ctx, reminder, model.ReminderStatusSent, "")

	d.logger.Info("reminder sent",
		"reminder_id", reminder.ID.String(),
		"invoice_id", reminder.InvoiceID.String(),
		"channel", string(reminder.Channel))
	return nil
}

// paymentStatus caches invoice status briefly; a stale PAID miss here is
// harmless because the lifecycle listener and the claim path both cover it.
func (d *Dispatcher) paymentStatus(ctx context.Context, invoiceID uuid.UUID) (model.PaymentStatus, error) {
	key := invoiceID.String()
	if cached, ok := d.statusCache.Get(key); ok {
		return cached.(model.PaymentStatus), nil
	}

	status, err := d.invoices.GetPaymentStatus(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	d.statusCache.SetDefault(key, status)
	return status, nil
}

func (d *Dispatcher) publishEvent(ctx context.Context, reminder *model.Reminder, status model.ReminderStatus, errMsg string) {
	if d.broker == nil {
		return
	}
	event := model.ReminderEvent{
		ReminderID: reminder.ID,
		InvoiceID:  reminder.InvoiceID,
		Channel:    reminder.Channel,
		Status:     status,
		Error:      errMsg,
		OccurredAt: time.Now(),
	}
	if err := d.broker.Publish(ctx, messaging.ChannelReminderEvents, event); err != nil {
		d.logger.Warn("failed to publish reminder event",
			"reminder_id", reminder.ID.String(), "error", err.Error())
	}
}
