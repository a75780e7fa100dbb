package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/remitflow-backend/internal/audit"
	"github.com/angelmondragon/remitflow-backend/internal/commissions"
	"github.com/angelmondragon/remitflow-backend/internal/cron"
	"github.com/angelmondragon/remitflow-backend/internal/notifications"
	"github.com/angelmondragon/remitflow-backend/internal/reconciler"
	"github.com/angelmondragon/remitflow-backend/internal/transfers"
	"github.com/angelmondragon/remitflow-backend/pkg/config"
	"github.com/angelmondragon/remitflow-backend/pkg/db"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/metrics"
	"github.com/angelmondragon/remitflow-backend/pkg/migrate"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
	"github.com/angelmondragon/remitflow-backend/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	jobMetrics := metrics.NewCronJobMetrics(promRegistry)
	transferMetrics := metrics.NewTransferMetrics(promRegistry)

	jobs, err := buildJobs(cfg, logg, dbClient, transferMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron registry", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	go func() {
		if err := metrics.Serve(ctx, cfg.App.MetricsAddr, promRegistry, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildJobs wires the draft recovery sweep, the retention jobs and the dead letter alert.
func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, transferMetrics *metrics.TransferMetrics) ([]cron.Job, error) {
	conn := dbClient.DB()
	auditSink := audit.NewSink(conn, logg)
	outboxRepo := outbox.NewRepository(conn)
	outboxService := outbox.NewService(outboxRepo, logg)
	dispatcher, err := notifications.NewOutboxDispatcher(dbClient, outboxService, logg)
	if err != nil {
		return nil, fmt.Errorf("notification dispatcher: %w", err)
	}

	transferRepo := transfers.NewRepository(conn)
	configRepo := commissions.NewConfigRepository(conn)
	transferService, err := transfers.NewService(transfers.ServiceParams{
		DB:                dbClient,
		Repo:              transferRepo,
		Configs:           configRepo,
		Distributions:     commissions.NewDistributionRepository(conn),
		Audit:             auditSink,
		Outbox:            outboxService,
		Notifier:          dispatcher,
		Metrics:           transferMetrics,
		ReferenceAttempts: cfg.Transfers.ReferenceAttempts,
		Logger:            logg,
	})
	if err != nil {
		return nil, fmt.Errorf("transfer service: %w", err)
	}

	draftReconciler, err := reconciler.New(reconciler.Params{
		Transfers: transferService,
		Drafts:    transferRepo,
		Configs:   configRepo,
		Notifier:  dispatcher,
		Audit:     auditSink,
		Metrics:   transferMetrics,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("reconciler: %w", err)
	}

	draftJob, err := cron.NewDraftReconcileJob(logg, configRepo, draftReconciler)
	if err != nil {
		return nil, fmt.Errorf("draft reconcile job: %w", err)
	}
	outboxJob, err := cron.NewOutboxRetentionJob(logg, dbClient, outboxRepo, cfg.Cron.OutboxRetentionDays)
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	notificationJob, err := cron.NewNotificationCleanupJob(logg, dbClient, notifications.NewRepository(conn), cfg.Cron.NotificationRetentionDays)
	if err != nil {
		return nil, fmt.Errorf("notification cleanup job: %w", err)
	}
	dlqJob, err := cron.NewDLQAlertJob(logg, outbox.NewDLQRepository(conn), dispatcher, cfg.Cron.Interval)
	if err != nil {
		return nil, fmt.Errorf("dlq alert job: %w", err)
	}
	return []cron.Job{draftJob, outboxJob, notificationJob, dlqJob}, nil
}
