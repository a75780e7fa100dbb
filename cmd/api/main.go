package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/remitflow-backend/api/routes"
	"github.com/angelmondragon/remitflow-backend/internal/audit"
	"github.com/angelmondragon/remitflow-backend/internal/auth"
	"github.com/angelmondragon/remitflow-backend/internal/commissions"
	"github.com/angelmondragon/remitflow-backend/internal/notifications"
	"github.com/angelmondragon/remitflow-backend/internal/reconciler"
	"github.com/angelmondragon/remitflow-backend/internal/stock"
	"github.com/angelmondragon/remitflow-backend/internal/transfers"
	"github.com/angelmondragon/remitflow-backend/internal/users"
	"github.com/angelmondragon/remitflow-backend/pkg/auth/session"
	"github.com/angelmondragon/remitflow-backend/pkg/config"
	"github.com/angelmondragon/remitflow-backend/pkg/db"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/metrics"
	"github.com/angelmondragon/remitflow-backend/pkg/migrate"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
	"github.com/angelmondragon/remitflow-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	transferMetrics := metrics.NewTransferMetrics(registry)

	conn := dbClient.DB()
	auditSink := audit.NewSink(conn, logg)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	dispatcher, err := notifications.NewOutboxDispatcher(dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(conn)
	transferRepo := transfers.NewRepository(conn)
	configRepo := commissions.NewConfigRepository(conn)
	distributionRepo := commissions.NewDistributionRepository(conn)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Audit:          auditSink,
		JWTConfig:      cfg.JWT,
		Passwords:      cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	userService, err := users.NewService(users.ServiceParams{
		DB:        dbClient,
		Repo:      userRepo,
		Audit:     auditSink,
		Notifier:  dispatcher,
		Passwords: cfg.Password,
		Sessions:  sessionManager,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	transferService, err := transfers.NewService(transfers.ServiceParams{
		DB:                dbClient,
		Repo:              transferRepo,
		Configs:           configRepo,
		Distributions:     distributionRepo,
		Audit:             auditSink,
		Outbox:            outboxService,
		Notifier:          dispatcher,
		Metrics:           transferMetrics,
		ReferenceAttempts: cfg.Transfers.ReferenceAttempts,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transfer service", err)
		os.Exit(1)
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
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	commissionService, err := commissions.NewService(commissions.ServiceParams{
		DB:            dbClient,
		Configs:       configRepo,
		Distributions: distributionRepo,
		Audit:         auditSink,
		Outbox:        outboxService,
		Reconciler:    draftReconciler,
		AutoPromote:   cfg.FeatureFlags.AutoPromote,
		Commission:    cfg.Commission,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commission service", err)
		os.Exit(1)
	}

	stockService, err := stock.NewService(stock.ServiceParams{
		DB:     dbClient,
		Repo:   stock.NewRepository(conn),
		Audit:  auditSink,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	auditService, err := audit.NewService(audit.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     id,
		"auto_promote": cfg.FeatureFlags.AutoPromote,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:            dbClient,
			Redis:         redisClient,
			Sessions:      sessionManager,
			Metrics:       registry,
			Auth:          authService,
			Users:         userService,
			Transfers:     transferService,
			Commissions:   commissionService,
			BulkPromoter:  draftReconciler,
			Stock:         stockService,
			Notifications: notificationService,
			Audit:         auditService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
