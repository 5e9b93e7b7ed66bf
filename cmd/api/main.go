package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/invopay/reminder-api/internal/config"
	"github.com/invopay/reminder-api/internal/handler"
	reminderHandler "github.com/invopay/reminder-api/internal/handler/reminder"
	"github.com/invopay/reminder-api/internal/model"
	"github.com/invopay/reminder-api/internal/repository/postgres"
	"github.com/invopay/reminder-api/internal/router"
	"github.com/invopay/reminder-api/internal/sender"
	"github.com/invopay/reminder-api/internal/sender/email"
	"github.com/invopay/reminder-api/internal/sender/whatsapp"
	"github.com/invopay/reminder-api/internal/service/lifecycle"
	reminderService "github.com/invopay/reminder-api/internal/service/reminder"
	"github.com/invopay/reminder-api/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database.ToDBConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	baseRepo := postgres.NewBaseRepository(db)
	reminderRepo := postgres.NewReminderRepository(baseRepo)
	invoiceReader := postgres.NewInvoiceReader(baseRepo)
	entitlements := postgres.NewEntitlementChecker(baseRepo)

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

	policy := reminderService.NewSchedulePolicy(cfg.Schedule.SendHour, cfg.Schedule.SendLocation())
	reminderSvc := reminderService.NewService(reminderRepo, invoiceReader, entitlements, senders, policy, appLogger)
	listener := lifecycle.NewListener(reminderRepo, appLogger)

	h := handler.NewHandler(db)
	reminderH := reminderHandler.NewHandler(reminderSvc, listener)

	r := router.NewRouter(reminderH, h, router.Config{
		RateLimit:     rate.Limit(cfg.Server.RateLimit),
		RateBurst:     cfg.Server.RateBurst,
		MetricsPrefix: "reminder_api",
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("reminder API started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
