package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/cutmarket/backend/internal/auth"
	"github.com/cutmarket/backend/internal/config"
	"github.com/cutmarket/backend/internal/events"
	"github.com/cutmarket/backend/internal/execution"
	"github.com/cutmarket/backend/internal/gateway"
	"github.com/cutmarket/backend/internal/ledger"
	"github.com/cutmarket/backend/internal/logging"
	"github.com/cutmarket/backend/internal/migrations"
	"github.com/cutmarket/backend/internal/repository"
	"github.com/cutmarket/backend/internal/scheduler"
	"github.com/cutmarket/backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.New(logging.Options{Level: cfg.Log.Level, Output: cfg.Log.Output, File: cfg.Log.File})
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := migrations.Up(ctx, pool); err != nil {
		slog.Error("Schema migrations failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Schema migrations applied")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	bus, err := events.NewBus(64, logger)
	if err != nil {
		slog.Error("Failed to create event bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	// Repositories
	quotationRepo := repository.NewQuotationRepo(pool)
	bidRepo := repository.NewBidRepo(pool)
	editorRepo := repository.NewEditorRepo(pool)
	workRepo := repository.NewWorkRepo(pool)
	walletRepo := repository.NewWalletRepo(pool)
	ledgerRepo := ledger.NewRepository(pool)

	// Services
	wallets := services.NewWalletService(pool, walletRepo, logger)
	scores := services.NewScoreEngine(editorRepo, workRepo, logger)
	quotations := services.NewQuotationService(pool, quotationRepo, bidRepo, workRepo, scores, bus, logger)
	quotations.AcceptedOverdueAfter = cfg.Scheduler.AcceptedOverdueAfter
	bids := services.NewBidEngine(pool, quotationRepo, bidRepo, editorRepo, bus, logger)
	settlement := services.NewSettlementService(pool, quotationRepo, wallets, ledgerRepo, bus, logger)
	settlement.StaleClaimAfter = cfg.Scheduler.StalePaymentAfter
	editors := services.NewEditorService(editorRepo, logger)

	var balance ledger.BalanceSource = gateway.Static(cfg.Gateway.StaticBalanceCents)
	if cfg.Gateway.URL != "" {
		balance = gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
	}
	ledgerSvc := ledger.NewService(ledgerRepo, balance, logger)

	validator, err := services.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	// River workers
	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewSettlePaymentWorker(settlement, logger))
	river.AddWorker(workers, execution.NewDeliverNotificationWorker(cfg.Notify.URL, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	bus.SubscribeAll(execution.NotificationSubscriber(func(ctx context.Context, args execution.DeliverNotificationArgs) error {
		_, err := riverClient.Insert(ctx, args, nil)
		return err
	}))

	apiRouter := buildRouter(routeDeps{
		verifier:      auth.NewVerifier(cfg.Auth.JWTSecret),
		webhookSecret: cfg.Payment.WebhookSecret,
		quotations:    quotations,
		bids:          bids,
		wallets:       wallets,
		settlement:    settlement,
		editors:       editors,
		ledger:        ledgerSvc,
		queue:         &settlementQueue{client: riverClient},
		validator:     validator,
		logger:        logger,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	// Start River client (processes jobs)
	if err := riverClient.Start(ctx); err != nil {
		slog.Error("River client failed to start", "error", err)
		os.Exit(1)
	}

	sched, err := scheduler.NewManager(quotations, settlement, logger)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}
	if err := sched.Start(scheduler.Intervals{Expiry: cfg.Scheduler.ExpiryInterval, Reconcile: cfg.Scheduler.ReconcileInterval}); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "error", err)
	}
	sched.Stop()
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River client stop", "error", err)
	}
}
