package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	auditapp "github.com/ledgerbridge/backend/internal/application/audit"
	integrationapp "github.com/ledgerbridge/backend/internal/application/integration"
	transferapp "github.com/ledgerbridge/backend/internal/application/transfer"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/cache"
	"github.com/ledgerbridge/backend/internal/infrastructure/collaborator"
	"github.com/ledgerbridge/backend/internal/infrastructure/config"
	"github.com/ledgerbridge/backend/internal/infrastructure/event"
	"github.com/ledgerbridge/backend/internal/infrastructure/logger"
	"github.com/ledgerbridge/backend/internal/infrastructure/persistence"
	"github.com/ledgerbridge/backend/internal/infrastructure/scheduler"
	"github.com/ledgerbridge/backend/internal/infrastructure/telemetry"
	"github.com/ledgerbridge/backend/internal/infrastructure/vault"
	"github.com/ledgerbridge/backend/internal/interfaces/http/handler"
	"github.com/ledgerbridge/backend/internal/interfaces/http/middleware"
	"github.com/ledgerbridge/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.FromConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting LedgerBridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Tracing must be installed before the database plugin picks up the provider
	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	logExporter, err := telemetry.NewLogExporter(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	defer func() {
		if err := logExporter.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down log export", zap.Error(err))
		}
	}()
	log = logExporter.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	// Database with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, log); err != nil {
		log.Warn("Database tracing not registered", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Credential vault
	ring, err := vault.DeriveKeyRing(cfg.Vault.MasterSecret, cfg.Vault.Salt, vault.KDFParams{
		N: cfg.Vault.ScryptN,
		R: cfg.Vault.ScryptR,
		P: cfg.Vault.ScryptP,
	}, log)
	if err != nil {
		log.Fatal("Failed to derive vault key", zap.Error(err))
	}
	cipher, err := vault.New(ring)
	if err != nil {
		log.Fatal("Failed to initialize vault", zap.Error(err))
	}

	// Idempotency keys live in Redis when it is configured and reachable
	idempotencyStore, err := cache.NewIdempotencyStore(ctx, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
	)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	metrics := telemetry.NewMetrics()
	if sqlDB, err := db.SQL(); err == nil {
		if err := metrics.RegisterDBStats(sqlDB); err != nil {
			log.Warn("Database pool metrics not registered", zap.Error(err))
		}
	}

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(metrics.EventHandler())
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Repositories
	queueRepo := persistence.NewGormTransferQueueRepository(db.DB)
	configRepo := persistence.NewGormIntegrationConfigRepository(db.DB)
	webhookRepo := persistence.NewGormWebhookConfigRepository(db.DB)
	auditRepo := persistence.NewGormAuditLogRepository(db.DB)
	txManager := persistence.NewTxManager(db.DB)

	// Collaborators. An empty URL yields a client that fails with
	// collaborator.ErrNotConfigured instead of a nil dependency.
	collaboratorOpts := []collaborator.Option{collaborator.WithLogger(log)}
	detector := collaborator.NewHTTPChangeDetector(cfg.Collaborators.ChangeDetectionURL,
		cfg.Collaborators.RequestTimeout, collaboratorOpts...)
	entities := collaborator.NewHTTPEntityDataProvider(cfg.Collaborators.EntityDataURL,
		cfg.Collaborators.RequestTimeout, collaboratorOpts...)
	if cfg.Collaborators.ChangeDetectionURL == "" {
		log.Warn("Change detection service not configured; processing will fail until it is")
	}

	// Application services
	integrationSettings := integrationapp.Settings{
		BreakerThreshold:  cfg.Breaker.Threshold,
		BreakerResetAfter: cfg.Breaker.ResetAfter,
		ProbeTimeout:      cfg.Collaborators.ProbeTimeout,
	}
	configService := integrationapp.NewConfigService(configRepo, auditRepo, txManager, cipher, integrationSettings)
	configService.SetEventPublisher(eventBus)
	configService.SetLogger(log)
	probeClient := &http.Client{Timeout: cfg.Collaborators.ProbeTimeout}
	for platform, probe := range collaborator.NewHealthProbes(collaborator.WithProbeHTTPClient(probeClient)) {
		configService.SetHealthProbe(platform, probe)
	}

	webhookService := integrationapp.NewWebhookService(webhookRepo, auditRepo, txManager, cipher, integrationSettings)
	webhookService.SetEventPublisher(eventBus)
	webhookService.SetLogger(log)

	queueService := transferapp.NewQueueService(queueRepo, auditRepo, txManager, detector, entities, queueSettings(cfg.Queue))
	queueService.SetEventPublisher(eventBus)
	queueService.SetOutcomeRecorder(configService)
	queueService.SetLogger(log)

	auditService := auditapp.NewAuditService(auditRepo)
	auditService.SetLogger(log)

	// Background sweep and cleanup
	sweeper := scheduler.NewTransferSweepScheduler(queueService, configRepo, metrics, log,
		cfg.Scheduler, cfg.Queue.CleanupRetentionDays)
	if cfg.Scheduler.Enabled {
		if err := sweeper.Start(ctx); err != nil {
			log.Fatal("Failed to start transfer sweep scheduler", zap.Error(err))
		}
	}

	// HTTP
	engine := router.NewEngine(router.EngineConfig{
		ServiceName:      cfg.Telemetry.ServiceName,
		TracingEnabled:   cfg.Telemetry.Enabled,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		CORS:             corsConfig(cfg.HTTP),
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		IdempotencyStore: idempotencyStore,
		Idempotency: shared.IdempotencyConfig{
			Enabled: cfg.HTTP.IdempotencyEnabled,
			TTL:     cfg.HTTP.IdempotencyTTL,
		},
		Metrics: metrics,
		Logger:  log,
	}, router.Handlers{
		TransferQueue: handler.NewTransferQueueHandler(queueService),
		Integration:   handler.NewIntegrationHandler(configService, webhookService),
		AuditLog:      handler.NewAuditLogHandler(auditService),
		System: handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.Pinger{
			"database": db,
		}),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sweeper.IsRunning() {
		if err := sweeper.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping transfer sweep scheduler", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	log.Info("Server exited")
}

func queueSettings(q config.QueueConfig) transferapp.Settings {
	s := transferapp.DefaultSettings()
	if q.PendingLimit > 0 {
		s.PendingLimit = q.PendingLimit
	}
	if q.ApprovedLimit > 0 {
		s.ApprovedLimit = q.ApprovedLimit
	}
	if q.ReviewMinutesPerEntry > 0 {
		s.ReviewTimePerEntry = time.Duration(q.ReviewMinutesPerEntry) * time.Minute
	}
	if q.TransferSecondsPerEntry > 0 {
		s.TransferTimePerEntry = time.Duration(q.TransferSecondsPerEntry) * time.Second
	}
	if q.CleanupRetentionDays > 0 {
		s.CleanupRetentionDays = q.CleanupRetentionDays
	}
	return s
}

func corsConfig(h config.HTTPConfig) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	c.AllowOrigins = h.CORSAllowOrigins
	if len(h.CORSAllowMethods) > 0 {
		c.AllowMethods = h.CORSAllowMethods
	}
	if len(h.CORSAllowHeaders) > 0 {
		c.AllowHeaders = h.CORSAllowHeaders
	}
	return c
}
