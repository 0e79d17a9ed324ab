package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/agentmall/gateway/internal/handlers"
	"github.com/agentmall/gateway/internal/platform/config"
	pfirestore "github.com/agentmall/gateway/internal/platform/firestore"
	"github.com/agentmall/gateway/internal/platform/idempotency"
	"github.com/agentmall/gateway/internal/platform/observability"
	"github.com/agentmall/gateway/internal/repositories"
	firestoreRepo "github.com/agentmall/gateway/internal/repositories/firestore"
	memoryRepo "github.com/agentmall/gateway/internal/repositories/memory"
	"github.com/agentmall/gateway/internal/repositories/rulesetfile"
	"github.com/agentmall/gateway/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("gateway")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	rules, err := rulesetfile.NewFromFile(cfg.Compliance.RulesetPath)
	if err != nil {
		logger.Fatal("failed to load compliance ruleset",
			zap.String("path", cfg.Compliance.RulesetPath),
			zap.Error(err))
	}

	var (
		registry          repositories.Registry
		idempotencyStore  idempotency.Store
		firestoreProvider *pfirestore.Provider
	)
	switch cfg.Persistence.Driver {
	case "firestore":
		firestoreProvider = pfirestore.NewProvider(cfg.Firestore)
		client, err := firestoreProvider.Client(ctx)
		if err != nil {
			logger.Fatal("failed to initialise firestore client", zap.Error(err))
		}
		registry, err = firestoreRepo.NewRegistry(firestoreProvider, rules)
		if err != nil {
			logger.Fatal("failed to initialise firestore registry", zap.Error(err))
		}
		idempotencyStore = idempotency.NewFirestoreStore(client)
	default:
		memRegistry, err := memoryRepo.NewRegistry(rules)
		if err != nil {
			logger.Fatal("failed to initialise in-memory registry", zap.Error(err))
		}
		memRegistry.SeedCatalog(memoryRepo.DemoCatalog()...)
		registry = memRegistry
		idempotencyStore = idempotency.NewMemoryStore()
	}
	defer func() {
		if err := registry.Close(context.Background()); err != nil {
			logger.Warn("registry close error", zap.Error(err))
		}
	}()

	ctxLog := func(ctx context.Context, msg string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(msg, zapFields...)
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Carts:   registry.Carts(),
		Catalog: registry.Catalog(),
		Logger:  ctxLog,
	})
	if err != nil {
		logger.Fatal("failed to construct cart service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:          registry.Carts(),
		DraftOrders:    registry.DraftOrders(),
		Catalog:        registry.Catalog(),
		Rules:          registry.ComplianceRules(),
		Shipping:       services.NewFlatRateShipping(cfg.Pricing),
		Tax:            services.NewTableTaxEstimator(cfg.Pricing),
		DraftOrderTTL:  cfg.DraftOrders.TTL,
		DefaultCountry: cfg.Compliance.DefaultCountry,
		Logger:         ctxLog,
	})
	if err != nil {
		logger.Fatal("failed to construct checkout service", zap.Error(err))
	}

	complianceService, err := services.NewComplianceService(services.ComplianceServiceDeps{
		Rules:          registry.ComplianceRules(),
		Catalog:        registry.Catalog(),
		DefaultCountry: cfg.Compliance.DefaultCountry,
	})
	if err != nil {
		logger.Fatal("failed to construct compliance service", zap.Error(err))
	}

	evidenceService, err := services.NewEvidenceService(services.EvidenceServiceDeps{
		Evidence:    registry.Evidence(),
		DraftOrders: registry.DraftOrders(),
		Logger:      ctxLog,
	})
	if err != nil {
		logger.Fatal("failed to construct evidence service", zap.Error(err))
	}

	var publisher services.AuditPublisher
	var pubsubClient *pubsub.Client
	if cfg.Audit.Topic != "" && cfg.Audit.ProjectID != "" {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.Audit.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		publisher = services.NewPubSubAuditPublisher(pubsubClient.Topic(cfg.Audit.Topic))
	}
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	auditService, err := services.NewAuditService(services.AuditServiceDeps{
		AuditLogs: registry.AuditLogs(),
		Publisher: publisher,
		Logger:    ctxLog,
	})
	if err != nil {
		logger.Fatal("failed to construct audit service", zap.Error(err))
	}

	router, err := handlers.NewRouter(handlers.RouterDeps{
		Logger:           logger,
		Cart:             cartService,
		Checkout:         checkoutService,
		Compliance:       complianceService,
		Evidence:         evidenceService,
		Audit:            auditService,
		IdempotencyStore: idempotencyStore,
		Health:           registry.Health(),
		Config:           cfg,
	})
	if err != nil {
		logger.Fatal("failed to construct router", zap.Error(err))
	}

	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	defer cancelCleanup()
	go runIdempotencyCleanup(cleanupCtx, logger, idempotencyStore, cfg.Idempotency)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("driver", cfg.Persistence.Driver),
			zap.String("ruleset_path", cfg.Compliance.RulesetPath))
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	}

	cancelCleanup()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

// runIdempotencyCleanup deletes expired idempotency records on a fixed
// interval until the context is cancelled.
func runIdempotencyCleanup(ctx context.Context, logger *zap.Logger, store idempotency.Store, cfg config.IdempotencyConfig) {
	if store == nil || cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.CleanupExpired(ctx, time.Now().UTC(), cfg.CleanupBatchSize)
			if err != nil {
				logger.Warn("idempotency cleanup failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Info("idempotency cleanup", zap.Int("deleted", deleted))
			}
		}
	}
}
