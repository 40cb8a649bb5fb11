package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	accountingapp "github.com/editdesk/backend/internal/application/accounting"
	activityapp "github.com/editdesk/backend/internal/application/activity"
	billingapp "github.com/editdesk/backend/internal/application/billing"
	eventapp "github.com/editdesk/backend/internal/application/event"
	fulfillmentapp "github.com/editdesk/backend/internal/application/fulfillment"
	partnerapp "github.com/editdesk/backend/internal/application/partner"
	"github.com/editdesk/backend/internal/application/reporting"
	"github.com/editdesk/backend/internal/application/workflow"
	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/domain/billing"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/editdesk/backend/internal/domain/partner"
	"github.com/editdesk/backend/internal/domain/revision"
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/domain/shared/valueobject"
	"github.com/editdesk/backend/internal/infrastructure/cache"
	"github.com/editdesk/backend/internal/infrastructure/config"
	"github.com/editdesk/backend/internal/infrastructure/event"
	"github.com/editdesk/backend/internal/infrastructure/ledgerapi"
	"github.com/editdesk/backend/internal/infrastructure/logger"
	"github.com/editdesk/backend/internal/infrastructure/persistence"
	"github.com/editdesk/backend/internal/infrastructure/pubsub"
	"github.com/editdesk/backend/internal/infrastructure/storage"
	"github.com/editdesk/backend/internal/infrastructure/telemetry"
	"github.com/editdesk/backend/internal/interfaces/http/handler"
	"github.com/editdesk/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.NewForEnvironment(cfg.App.Env, logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Editdesk Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, version, log)
	if err != nil {
		return err
	}
	defer shutdownWithTimeout(log, "telemetry", providers.Shutdown)
	meter := providers.Meter("editdesk-backend")
	if providers.LogsEnabled() {
		exported, err := providers.LogCore(cfg.Telemetry.ServiceName, log.Level())
		if err != nil {
			return err
		}
		log = logger.Tee(log, exported)
	}

	db, err := persistence.NewDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	stopDBMetrics, err := telemetry.InstrumentDB(db.DB, meter, telemetry.DBConfig{
		Tracing:         cfg.Telemetry.DBTraceEnabled,
		FullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		PoolInterval:    cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		return err
	}
	defer stopDBMetrics()

	// Locks and delivery keys. Without Redis only one instance may run.
	coordination, err := cache.NewCoordinationFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
		cache.WithRedisLockTTL(cfg.Workflow.LockTTL),
	).Create(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := coordination.Close(); err != nil {
			log.Error("Error closing coordination", zap.Error(err))
		}
	}()
	if !coordination.Distributed() {
		log.Warn("Redis disabled, order locks are local to this process")
	}

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	mappingRepo := persistence.NewGormMappingRepository(db.DB)
	recordRepo := persistence.NewGormActivityRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)
	settingsRepo := persistence.NewGormSettingsRepository(db.DB)
	directory := persistence.NewGormDirectory(db.DB)
	policyRepo := persistence.NewGormPolicyRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Events are written to the outbox with the aggregate change, then
	// dispatched on the bus right after commit.
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	outboxPublisher := event.NewOutboxPublisher(serializer,
		event.WithRetryPolicy(cfg.Event.MaxRetries, cfg.Event.BaseBackoff),
	)
	scope := persistence.NewGormTransactionScope(db.DB, outboxPublisher)
	bus := event.NewInMemoryEventBus(log)

	workflowMetrics, err := telemetry.NewWorkflowMetrics(meter, log)
	if err != nil {
		return err
	}
	defer workflowMetrics.Stop()

	committer := workflow.NewCommitter(scope, coordination.Locker, persistence.NewGormSequencer(db.DB),
		workflow.WithFastPath(bus),
		workflow.WithRecorder(workflowMetrics),
		workflow.WithLogger(log.Named("workflow")),
	)
	waits := workflow.Waits{
		Transition: cfg.Workflow.TransitionWait,
		Ledger:     cfg.Workflow.LedgerWait,
	}

	settingsProvider := partner.NewDefaultsProvider(settingsRepo, partnerDefaults(cfg.Workflow))
	catalog := billing.NewProductCatalog(productRepo)

	blobs, err := newBlobStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	ledgerClient, err := ledgerapi.NewClient(cfg.Ledger, log.Named("ledgerapi"))
	if err != nil {
		return err
	}
	publisher, err := pubsub.New(cfg.PubSub, coordination.Client, log.Named("pubsub"))
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("Error closing realtime publisher", zap.Error(err))
		}
	}()

	// Application services
	subjects := billingapp.NewLedgerSubjects(ledgerRepo)
	translator := accounting.NewTranslator(mappingRepo, subjects)

	orderService := fulfillmentapp.NewOrderWorkflowService(orderRepo, committer,
		revision.NewResolver(policyRepo), settingsProvider, catalog)
	orderService.SetBlobStore(blobs)
	orderService.SetWaits(waits)
	orderService.SetUploadConcurrency(cfg.Workflow.UploadConcurrency)
	orderService.SetLogger(log.Named("orders"))

	ledgerService := billingapp.NewLedgerService(ledgerRepo, committer, catalog, translator, ledgerClient, settingsProvider)
	ledgerService.SetWaits(waits)
	ledgerService.SetLogger(log.Named("ledger"))

	mappingService := accountingapp.NewMappingService(mappingRepo, subjects, ledgerClient, log.Named("mappings"))
	activityService := activityapp.NewActivityService(recordRepo, orderRepo)
	notificationService := activityapp.NewNotificationService(notificationRepo)
	settingsService := partnerapp.NewSettingsService(settingsRepo, settingsProvider, log)
	policyService := partnerapp.NewRevisionPolicyService(policyRepo, settingsProvider, log)
	catalogService := partnerapp.NewCatalogService(productRepo, log)
	reportService := reporting.NewOrderReportService(orderRepo, ledgerRepo, log.Named("reports"))
	outboxService := eventapp.NewOutboxService(outboxRepo, log.Named("outbox"))

	// Consumers. Both the fast path and the outbox may deliver an event, so
	// every consumer is wrapped to run once per (order, sequence).
	dispatcher := activityapp.NewDispatcher(recordRepo, notificationRepo, directory, publisher, log.Named("activity"))
	dispatcher.SetTopicPrefix(cfg.PubSub.TopicPrefix)
	idempotency := shared.IdempotencyConfig{
		TTL:      cfg.Event.IdempotencyTTL,
		ClaimTTL: cfg.Event.IdempotencyClaimTTL,
		Enabled:  true,
	}
	consumers := []shared.EventHandler{
		dispatcher,
		billingapp.NewInvoiceOnDeliveryHandler(ledgerService, settingsProvider, log.Named("invoicing")),
	}
	for _, consumer := range consumers {
		wrapped := event.NewIdempotentHandler(consumer, coordination.Idempotency, log,
			event.WithIdempotencyConfig(idempotency),
			event.WithDeliveryObserver(workflowMetrics),
		)
		bus.Subscribe(wrapped, wrapped.EventTypes()...)
	}
	if err := bus.Start(ctx); err != nil {
		return err
	}
	defer shutdownWithTimeout(log, "event bus", bus.Stop)

	if cfg.Event.ProcessorEnabled {
		processor := event.NewOutboxProcessor(outboxRepo, bus, serializer, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  event.DefaultOutboxProcessorConfig().CleanupInterval,
			StaleAfter:       event.DefaultOutboxProcessorConfig().StaleAfter,
		}, log.Named("outbox"))
		processor.OnDeadLetter(
			workflowMetrics,
			billingapp.NewInvoiceDeadLetterObserver(ledgerService, log.Named("invoicing")),
		)
		if err := processor.Start(ctx); err != nil {
			return err
		}
		defer shutdownWithTimeout(log, "outbox processor", processor.Stop)
	} else {
		log.Warn("Outbox processor disabled, failed deliveries are not retried by this instance")
	}
	workflowMetrics.StartBacklogSampling(ctx, outboxRepo, cfg.Telemetry.MetricsInterval)

	checks := map[string]handler.Check{
		"database": db.Ping,
	}
	if coordination.Client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return coordination.Client.Ping(ctx).Err()
		}
	}

	var traceService string
	if providers.TracingEnabled() {
		traceService = cfg.Telemetry.ServiceName
	}

	engine, err := router.NewEngine(router.Options{
		HTTP:         cfg.HTTP,
		TraceService: traceService,
		Meter:        meter,
		Logger:       log,
	}, router.Handlers{
		Orders:   handler.NewOrderHandler(orderService),
		Ledger:   handler.NewLedgerHandler(ledgerService),
		Mappings: handler.NewMappingHandler(mappingService),
		Partner:  handler.NewPartnerHandler(settingsService, policyService, catalogService),
		Activity: handler.NewActivityHandler(activityService, notificationService),
		Reports:  handler.NewReportHandler(reportService),
		Outbox:   handler.NewOutboxHandler(outboxService),
		System:   handler.NewSystemHandler(version, checks),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// partnerDefaults are the settings of a partner that stored none
func partnerDefaults(cfg config.WorkflowConfig) partner.Settings {
	return partner.Settings{
		DefaultRevisionLimit: cfg.DefaultRevisionLimit,
		InvoiceTrigger:       partner.InvoiceTrigger(cfg.InvoiceTrigger),
		InvoiceStatus:        partner.InvoiceStatusPreference(cfg.InvoiceStatus),
		Currency:             valueobject.Currency(cfg.Currency),
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (fulfillment.BlobStore, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("Using in-memory deliverable storage, uploads are lost on restart")
		return storage.NewMemoryBlobStore(cfg.Storage.PublicURL), nil
	}
	store, err := storage.NewS3BlobStore(&cfg.Storage, storage.WithLogger(log.Named("storage")))
	if err != nil {
		return nil, err
	}
	if cfg.Storage.CreateBucket {
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func shutdownWithTimeout(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error stopping "+name, zap.Error(err))
	}
}
