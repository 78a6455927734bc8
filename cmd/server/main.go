package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/infra"
	"cashledger/internal/repository"
	"cashledger/internal/router"
	"cashledger/internal/service"
	"cashledger/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to connect to database")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Repositories ─────────────────────────────────────────────────────────
	registerRepo := repository.NewRegisterRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	closingRepo := repository.NewClosingRepository(db)

	// ── Infrastructure ───────────────────────────────────────────────────────
	gate := infra.NewRedisClosingGate(rdb, cfg.ClosingLockTTL(), cfg.CountingTTL())
	notifier := infra.NewNotifier(rdb)
	dispatcher := worker.NewDispatcher(rdb)
	mailer := infra.NewMailer(cfg)
	storeCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("report-store"))
	smtpCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("smtp"))

	var reports infra.ReportStore
	if cfg.GCSBucket != "" {
		gcs, err := infra.NewGCSReportStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.GCSBucket).Msg("failed to open report bucket")
		}
		defer gcs.Close()
		reports = gcs
	} else {
		local, err := infra.NewLocalReportStore(cfg.ReportStoragePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ReportStoragePath).Msg("failed to prepare report directory")
		}
		reports = local
	}

	// ── Services ─────────────────────────────────────────────────────────────
	contexts := service.NewContextFactory(registerRepo, cfg.Location(), nil)
	lockSvc := service.NewLockService(closingRepo)
	aggregatorSvc := service.NewAggregatorService(movementRepo, transactionRepo, lockSvc)
	closingSvc := service.NewClosingService(closingRepo, aggregatorSvc, lockSvc, gate, notifier, dispatcher, contexts, cfg.ClosingTimeout())
	sweeperSvc := service.NewSweeperService(movementRepo, transactionRepo, closingRepo, closingSvc, notifier)
	ledgerSvc := service.NewLedgerService(movementRepo, transactionRepo, expenseRepo, closingRepo, lockSvc, notifier)
	authSvc := service.NewAuthService(operatorRepo, cfg)

	// ── Workers and crons ────────────────────────────────────────────────────
	var recipients []string
	for _, to := range strings.Split(cfg.ReportEmailTo, ",") {
		if to = strings.TrimSpace(to); to != "" {
			recipients = append(recipients, to)
		}
	}
	pool := worker.NewPool(rdb, cfg.WorkerPoolSize, map[string]worker.Handler{
		worker.QueueClosingReport: worker.NewClosingReportWorker(worker.ClosingReportConfig{
			Closings:  closingRepo,
			Registers: registerRepo,
			Movements: movementRepo,
			Store:     reports,
			CB:        storeCB,
			Mail:      dispatcher,
			Recipient: recipients,
			Location:  cfg.Location(),
		}),
		worker.QueueEmail: worker.NewEmailWorker(mailer, reports, smtpCB),
	})
	pool.Start(ctx)
	worker.StartRetryCron(ctx, rdb)
	worker.StartLockRepairCron(ctx, worker.LockRepairConfig{
		Closings: closingRepo,
		Contexts: contexts,
		Interval: cfg.LockRepairInterval(),
	})
	sweeps := worker.NewSweepScheduler(ctx, sweeperSvc, cfg.SweepDelay())

	r := router.New(ctx, cfg, router.Deps{
		DB:         db,
		Redis:      rdb,
		Registers:  registerRepo,
		Contexts:   contexts,
		Auth:       authSvc,
		Lock:       lockSvc,
		Aggregator: aggregatorSvc,
		Closing:    closingSvc,
		Ledger:     ledgerSvc,
		Sweeper:    sweeperSvc,
		Sweeps:     sweeps,
		Events:     notifier,
		Reports:    reports,
		Breakers:   []*infra.CircuitBreaker{storeCB, smtpCB},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("cashledger listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	// stop background work after in-flight requests are done
	cancel()
	sweeps.Stop()
	log.Info().Msg("server exited")
}
