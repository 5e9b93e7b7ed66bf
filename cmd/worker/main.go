package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/invopay/reminder-api/internal/config"
	"github.com/invopay/reminder-api/internal/model"
	"github.com/invopay/reminder-api/internal/repository/postgres"
	"github.com/invopay/reminder-api/internal/sender"
	"github.com/invopay/reminder-api/internal/sender/email"
	"github.com/invopay/reminder-api/internal/sender/whatsapp"
	"github.com/invopay/reminder-api/internal/service/lifecycle"
	"github.com/invopay/reminder-api/internal/worker"
	"github.com/invopay/reminder-api/pkg/logger"
	"github.com/invopay/reminder-api/pkg/messaging/redis"
	"github.com/invopay/reminder-api/pkg/metrics"
)

// WorkerEnv tunes one worker process without touching the shared config
// file, so differently-paced workers can run side by side.
type WorkerEnv struct {
	BatchSize    int           `envconfig:"BATCH_SIZE"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL"`
	MaxAttempts  int           `envconfig:"MAX_ATTEMPTS"`
	HealthPort   string        `envconfig:"HEALTH_PORT" default:"8081"`
}

func setupHealthCheck(port string, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var env WorkerEnv
	if err := envconfig.Process("reminder_worker", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to process worker environment")
	}
	if env.BatchSize > 0 {
		cfg.Dispatcher.BatchSize = env.BatchSize
	}
	if env.PollInterval > 0 {
		cfg.Dispatcher.PollInterval = env.PollInterval
	}
	if env.MaxAttempts > 0 {
		cfg.Dispatcher.MaxAttempts = env.MaxAttempts
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database.ToDBConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	baseRepo := postgres.NewBaseRepository(db)
	reminderRepo := postgres.NewReminderRepository(baseRepo)
	invoiceReader := postgres.NewInvoiceReader(baseRepo)

	senders := sender.Registry{
		model.ChannelEmail: email.NewSender(cfg.SMTP.ToEmailConfig(), invoiceReader),
	}
	if cfg.WhatsApp.Enabled {
		waClient, err := whatsapp.NewClient(whatsapp.Config{
			StoreDSN: cfg.WhatsApp.StoreDSN,
			LogLevel: cfg.WhatsApp.LogLevel,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect WhatsApp client")
		}
		defer waClient.Disconnect()
		senders[model.ChannelWhatsApp] = whatsapp.NewSender(waClient, invoiceReader)
	}

	dispatcher := worker.NewDispatcher(
		reminderRepo,
		invoiceReader,
		senders,
		broker,
		cfg.Dispatcher.ToWorkerConfig(),
		appLogger,
		metrics.NewMetrics("reminder_worker"),
	)

	listener := lifecycle.NewListener(reminderRepo, appLogger)

	setupHealthCheck(env.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("shutting down...")
		cancel()
	}()

	go func() {
		if err := listener.Run(ctx, broker); err != nil {
			appLogger.Error(err, "lifecycle listener stopped")
		}
	}()

	dispatcher.Start(ctx)
}
