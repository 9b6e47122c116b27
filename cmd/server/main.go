package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	cartapp "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/application/inventory"
	orderapp "github.com/storefront/backend/internal/application/order"
	paymentapp "github.com/storefront/backend/internal/application/payment"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/order"
	pay "github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/migration"
	"github.com/storefront/backend/internal/infrastructure/payment"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
	"github.com/storefront/backend/migrations"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Storefront API
//	@version		1.0
//	@description	Cart, checkout and order management with Stripe and PayPal payments.

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := logger.ConfigFor(cfg.App.Env)
	logCfg.Service = cfg.App.Name
	if cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		logCfg.Format = cfg.Log.Format
	}
	if cfg.Log.Output != "" {
		logCfg.Output = cfg.Log.Output
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer shutdown(log, "tracer provider", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdown(log, "meter provider", meterProvider.Shutdown)
	meter := meterProvider.Meter("github.com/storefront/backend")
	promMetrics := telemetry.NewPrometheusMetrics()

	// Database
	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	db, err := persistence.NewDatabase(ctx, &cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	sqlDB, err := db.SQLDB()
	if err != nil {
		log.Fatal("Failed to access connection pool", zap.Error(err))
	}
	poolMetrics, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB)
	if err != nil {
		log.Fatal("Failed to register pool metrics", zap.Error(err))
	}
	defer func() {
		_ = poolMetrics.Unregister()
	}()

	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meter,
		Logger: log,
		Stock:  telemetry.NewGormStockStatsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to create business metrics", zap.Error(err))
	}
	recorders := telemetry.Recorders{businessMetrics, promMetrics}

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	cartRepo := persistence.NewGormCartRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	policy, err := catalog.ParseReactivationPolicy(cfg.Inventory.ReactivationPolicy)
	if err != nil {
		log.Fatal("Invalid inventory configuration", zap.Error(err))
	}
	currency, err := valueobject.ParseCurrency(cfg.Payment.Currency)
	if err != nil {
		log.Fatal("Invalid payment currency", zap.Error(err))
	}

	// Payment providers
	providers, err := newProviderRegistry(cfg, log)
	if err != nil {
		log.Fatal("Failed to configure payment providers", zap.Error(err))
	}

	idempotency, err := cache.NewEventStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create webhook event store", zap.Error(err))
	}
	defer func() {
		if err := idempotency.Close(); err != nil {
			log.Error("Error closing webhook event store", zap.Error(err))
		}
	}()

	// Domain events
	serializer := event.NewEventSerializer()
	event.RegisterOrderEvents(serializer)
	eventBus := event.NewInMemoryEventBus(log)
	if cfg.Kafka.Enabled {
		forwarder := event.NewKafkaForwarder(event.NewKafkaWriter(event.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}), serializer, cfg.App.Name, log)
		eventBus.Subscribe(forwarder)
		defer func() {
			if err := forwarder.Close(); err != nil {
				log.Error("Error closing Kafka writer", zap.Error(err))
			}
		}()
		log.Info("Forwarding order events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Application services
	ledger := inventory.NewLedger(inventory.LedgerConfig{Policy: policy, Logger: log})
	cartService := cartapp.NewService(cartapp.ServiceConfig{
		Carts:    cartRepo,
		Products: productRepo,
		Logger:   log,
	})
	orderService := orderapp.NewService(orderapp.ServiceConfig{
		Orders:    orderRepo,
		Scope:     txScope,
		Ledger:    ledger,
		Providers: providers,
		Publisher: eventBus,
		Numbers:   order.NewNumberGenerator(),
		Metrics:   recorders,
		Currency:  currency,
		Logger:    log,
	})
	reconciliation := paymentapp.NewReconciliationService(paymentapp.ReconciliationConfig{
		Providers:      providers,
		Orders:         orderRepo,
		Transitions:    orderService,
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.Payment.IdempotencyTTL,
		Metrics:        recorders,
		Logger:         log,
	})

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}
	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.App.IsProduction()

	// Order matters: request id before logging, tracing before metrics so
	// the span covers the whole request.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	})...)
	engine.Use(httpMetrics)
	engine.Use(middleware.SecureWithConfig(security))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfigFrom(cfg.HTTP)))
	engine.Use(middleware.Locale())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	checks := map[string]handler.Pinger{"database": db}
	if p, ok := idempotency.(handler.Pinger); ok {
		checks["redis"] = p
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, checks)

	jwtAuth := middleware.JWTAuth(middleware.JWTMiddlewareConfig{
		Validator: auth.NewJWTService(cfg.JWT),
		Logger:    log,
	})

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(router.APIGroups(router.Handlers{
		Cart:    handler.NewCartHandler(cartService),
		Order:   handler.NewOrderHandler(orderService),
		Payment: handler.NewPaymentHandler(reconciliation, cfg.HTTP.WebhookMaxBodySize),
		System:  systemHandler,
	}, router.Guards{Auth: jwtAuth})...)
	r.Setup()
	router.MountProbes(engine, systemHandler, promMetrics.Handler())

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}

// newProviderRegistry builds the adapters that have credentials configured.
// A provider without credentials is left out, so checkouts naming it fail
// with PaymentInitFailed instead of the server refusing to start.
func newProviderRegistry(cfg *config.Config, log *zap.Logger) (*pay.Registry, error) {
	breaker := payment.BreakerConfig{
		MaxFailures: cfg.Payment.BreakerMaxFailures,
		Timeout:     cfg.Payment.BreakerTimeout,
	}
	var providers []pay.Provider

	if cfg.Stripe.SecretKey != "" {
		stripe, err := payment.NewStripeAdapter(&payment.StripeConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			BackendURL:    cfg.Stripe.BackendURL,
			Timeout:       cfg.Payment.ProviderTimeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
		providers = append(providers, payment.NewBreakerProvider(stripe, breaker, log))
	} else {
		log.Warn("Stripe is not configured; card checkout is disabled")
	}

	if cfg.PayPal.ClientID != "" {
		paypal, err := payment.NewPayPalAdapter(&payment.PayPalConfig{
			ClientID:      cfg.PayPal.ClientID,
			Secret:        cfg.PayPal.Secret,
			Mode:          cfg.PayPal.Mode,
			WebhookID:     cfg.PayPal.WebhookID,
			BaseURL:       cfg.PayPal.BaseURL,
			ReturnBaseURL: cfg.Payment.PublicBaseURL,
			Timeout:       cfg.Payment.ProviderTimeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("paypal: %w", err)
		}
		providers = append(providers, payment.NewBreakerProvider(paypal, breaker, log))
	} else {
		log.Warn("PayPal is not configured; wallet checkout is disabled")
	}

	return pay.NewRegistry(providers...), nil
}

// runMigrations applies the embedded schema on its own connection; the
// migrate driver closes the pool it was given.
func runMigrations(cfg *config.Config, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() {
		_ = m.Close()
	}()
	return m.Up()
}

func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error shutting down "+name, zap.Error(err))
	}
}
