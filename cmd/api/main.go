package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/panaven/api/internal/exchange"
	"github.com/panaven/api/internal/handlers"
	"github.com/panaven/api/internal/platform/auth"
	"github.com/panaven/api/internal/platform/config"
	"github.com/panaven/api/internal/platform/events"
	pfirestore "github.com/panaven/api/internal/platform/firestore"
	"github.com/panaven/api/internal/platform/observability"
	"github.com/panaven/api/internal/platform/secrets"
	"github.com/panaven/api/internal/repositories"
	firestoreRepo "github.com/panaven/api/internal/repositories/firestore"
	"github.com/panaven/api/internal/repositories/memory"
	"github.com/panaven/api/internal/services"
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

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	registry, checks, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore()

	publisher, closePublisher, err := openPublisher(ctx, cfg.PubSub, logger)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}
	defer closePublisher()

	inventory, err := services.NewInventoryService(services.InventoryServiceDeps{
		Catalog:         registry.Catalog(),
		StrictDecrement: cfg.Inventory.StrictDecrement,
		Logger:          observability.EventLogger(logger, "inventory"),
	})
	if err != nil {
		logger.Fatal("failed to initialise inventory service", zap.Error(err))
	}

	orderDeps := services.OrderServiceDeps{
		Orders:    registry.Orders(),
		Catalog:   registry.Catalog(),
		Inventory: inventory,
		Logger:    observability.EventLogger(logger, "orders"),
	}
	if publisher != nil {
		orderDeps.Events = publisher
	}
	orderService, err := services.NewOrderService(orderDeps)
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	rateService, err := newExchangeService(cfg.Exchange, registry.ExchangeRates(), logger)
	if err != nil {
		logger.Fatal("failed to initialise exchange service", zap.Error(err))
	}

	normalizer := services.NewCurrencyNormalizer(displayLanguage(cfg.Exchange.DisplayLocale, logger))
	orderHandlers := handlers.NewOrderHandlers(orderService, rateService, normalizer)
	exchangeHandlers := handlers.NewExchangeHandlers(rateService, cfg.Exchange.DisplayCurrency)
	adminHandlers := handlers.NewAdminHandlers(orderService, handlers.WithManualRates(rateService, cfg.Exchange.DisplayCurrency))

	if strings.TrimSpace(cfg.Security.AdminSecret) == "" {
		logger.Warn("admin secret not configured; operator routes will answer 503")
	}
	gate := auth.NewAdminGate(cfg.Security.AdminSecret,
		auth.WithHeader(cfg.Security.AdminHeader),
		auth.WithLogger(logger.Named("admin")),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(repositories.NewHealthProbe(checks...))),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithExchangeRoutes(exchangeHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes, gate.Require),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("panaven api listening",
			zap.String("store", cfg.Store.Backend),
			zap.Bool("strictDecrement", cfg.Inventory.StrictDecrement))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newSecretFetcher reads the Secret Manager settings ahead of config.Load, which needs the
// fetcher to resolve secret references.
func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	lookup, err := config.Lookup()
	if err != nil {
		return nil, err
	}
	get := func(keys ...string) string {
		for _, key := range keys {
			if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
		return ""
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(get("API_SECRETS_PROJECT_ID", "API_FIRESTORE_PROJECT_ID")),
	}
	if path := get("API_SECRETS_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Registry, []repositories.DependencyCheck, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		registry := memory.NewRegistry()
		if path := strings.TrimSpace(cfg.Store.SeedFile); path != "" {
			count, err := registry.SeedProductsFile(path)
			if err != nil {
				return nil, nil, nil, err
			}
			logger.Info("memory catalog seeded", zap.String("file", path), zap.Int("products", count))
		}
		logger.Warn("using in-memory store; data is lost on restart")
		return registry, nil, func() {}, nil
	default:
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return nil, nil, nil, err
		}
		registry, err := firestoreRepo.NewRegistry(provider, cfg.Firestore)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, nil, nil, err
		}
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := registry.Close(closeCtx); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}
		checks := []repositories.DependencyCheck{{Name: "firestore", Check: provider.Ping}}
		return registry, checks, closeFn, nil
	}
}

func openPublisher(ctx context.Context, cfg config.PubSubConfig, logger *zap.Logger) (*events.PubSubOrderPublisher, func(), error) {
	topicID := strings.TrimSpace(cfg.OrderEventsTopic)
	if topicID == "" {
		logger.Info("order events topic not configured; events are not published")
		return nil, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	topic.EnableMessageOrdering = true

	publisher, err := events.NewPubSubOrderPublisher(topic)
	if err != nil {
		topic.Stop()
		_ = client.Close()
		return nil, nil, err
	}
	closeFn := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	return publisher, closeFn, nil
}

func newExchangeService(cfg config.ExchangeConfig, manual repositories.ExchangeRateRepository, logger *zap.Logger) (services.ExchangeRateService, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	var providers []exchange.Provider
	for _, source := range []struct{ name, url string }{
		{exchange.SourceOfficial, cfg.PrimaryURL},
		{exchange.SourceParallel, cfg.SecondaryURL},
	} {
		if strings.TrimSpace(source.url) == "" {
			continue
		}
		provider, err := exchange.NewDolarAPIProvider(source.name, source.url, client)
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}
	return exchange.NewService(exchange.ServiceDeps{
		Providers:     providers,
		Manual:        manual,
		CacheTTL:      cfg.CacheTTL,
		RetryAttempts: cfg.RetryAttempts,
		Logger:        observability.EventLogger(logger, "exchange"),
	})
}

func displayLanguage(locale string, logger *zap.Logger) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		logger.Warn("invalid display locale; falling back to es-VE", zap.String("locale", locale), zap.Error(err))
		return language.MustParse("es-VE")
	}
	return tag
}
