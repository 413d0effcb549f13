package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"kaskelas/internal/balance"
	balanceStore "kaskelas/internal/balance/store"
	"kaskelas/internal/config"
	"kaskelas/internal/database"
	"kaskelas/internal/dispatch"
	kaskelasHttp "kaskelas/internal/http"
	broadcastHandler "kaskelas/internal/http/broadcast"
	cronHandler "kaskelas/internal/http/cron"
	webhookHandler "kaskelas/internal/http/webhook"
	"kaskelas/internal/orchestrator"
	"kaskelas/internal/payment"
	"kaskelas/internal/recurring"
	recurringStore "kaskelas/internal/recurring/store"
	"kaskelas/internal/reminder"
	reminderStore "kaskelas/internal/reminder/store"
	"kaskelas/internal/transaction"
	txStore "kaskelas/internal/transaction/store"
	"kaskelas/internal/whatsapp"
	whatsappStore "kaskelas/internal/whatsapp/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logs := whatsappStore.New(db)
	gateway := whatsapp.NewGateway(whatsapp.Config{
		BaseURL: cfg.WhatsApp.BaseURL,
		APIKey:  cfg.WhatsApp.APIKey,
		Timeout: cfg.WhatsApp.Timeout,
	}, logs)

	payments := payment.NewClient(payment.Config{
		BaseURL:      cfg.Payment.BaseURL,
		Slug:         cfg.Payment.Slug,
		APIKey:       cfg.Payment.APIKey,
		RedirectBase: cfg.Payment.RedirectBase,
	})

	dispatcher := dispatch.New(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, gateway, cfg.Broadcast.Retention)

	templates := reminder.Templates{ClassName: cfg.Class.Name}

	settings := recurringStore.New(db)

	var (
		transactionService = transaction.NewService(txStore.New(db))
		balanceService     = balance.NewService(balanceStore.New(db))
		reminderService    = reminder.NewService(reminderStore.New(db), gateway, payments, templates)
		recurringService   = recurring.NewService(settings, transactionService, reminderService, payments)
	)

	// The pending-payment sweep needs the provider's query API.
	var settlements orchestrator.Settlements
	if cfg.Payment.APIKey != "" {
		settlements = orchestrator.NewReconciler(transactionService, payments, reminderService, balanceService)
	} else {
		slog.Warn("payment reconciliation disabled, no provider API key configured")
	}

	daily := orchestrator.NewDaily(recurringService, reminderService, balanceService, settlements)

	var (
		cronH      = cronHandler.NewHandler(daily)
		webhookH   = webhookHandler.NewHandler(transactionService, payments, reminderService, balanceService, gateway, templates)
		broadcastH = broadcastHandler.NewHandler(dispatcher, logs, settings, cfg.Broadcast.DefaultDelaySeconds)
	)

	router := kaskelasHttp.New(cronH, webhookH, broadcastH, kaskelasHttp.Secrets{
		Cron: cfg.Cron.Secret,
		JWT:  cfg.Auth.Secret,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		slog.Info("starting server", "addr", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	if err := dispatcher.Close(); err != nil {
		slog.Error("failed to close dispatcher", "error", err)
	}
}
