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

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shipment-orchestrator/internal/cache"
	"shipment-orchestrator/internal/carriers"
	"shipment-orchestrator/internal/clients"
	"shipment-orchestrator/internal/config"
	"shipment-orchestrator/internal/events"
	"shipment-orchestrator/internal/handlers"
	"shipment-orchestrator/internal/jobs"
	"shipment-orchestrator/internal/middleware"
	"shipment-orchestrator/internal/models"
	"shipment-orchestrator/internal/repository"
	"shipment-orchestrator/internal/services"
	"shipment-orchestrator/internal/subscribers"
	"shipment-orchestrator/internal/telemetry"
)

func main() {
	// .env is optional, only used for local development
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Shipment Orchestrator...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.Info("Configuration loaded successfully")

	// Connect to database
	db, err := connectDatabase(cfg.GetDatabaseDSN(), cfg.Server.Env)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	logger.Info("Database connected successfully")

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	logger.Info("Database migrations completed")

	if err := repository.SeedSettings(db, repository.BootstrapSettings{
		Email:         cfg.Shiprocket.Email,
		Password:      cfg.Shiprocket.Password,
		WebhookSecret: cfg.Shiprocket.WebhookSecret,
	}, logger); err != nil {
		logger.WithError(err).Warn("Failed to seed shipment settings")
	}

	// Initialize Redis client (optional - graceful degradation if Redis unavailable)
	redisClient := connectRedis(cfg.RedisURL, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	statusTable, err := services.LoadStatusTable(cfg.StatusMapPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load courier status table")
	}
	logger.WithField("codes", statusTable.Len()).Info("Courier status table loaded")

	// Repositories
	orderRepo := repository.NewOrderRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Aggregator client; the token lives on the settings row so every
	// instance shares one login
	tokenStore := services.NewSettingsTokenStore(settingsRepo, carriers.Credentials{
		Email:    cfg.Shiprocket.Email,
		Password: cfg.Shiprocket.Password,
	})
	shiprocket := carriers.NewShiprocketClient(carriers.ClientConfig{
		BaseURL:     cfg.Shiprocket.BaseURL,
		Timeout:     cfg.Shiprocket.Timeout,
		ReadTimeout: cfg.Shiprocket.ReadTimeout,
		MaxRetries:  cfg.Shiprocket.MaxRetries,
		RateLimit:   cfg.Shiprocket.RateLimit,
	}, tokenStore, metrics, logger.WithField("service", "shipment-orchestrator"))

	// Collaborators
	notifier := clients.NewNotificationClient(cfg.Services.NotificationURL, logger)

	var publisher services.EventPublisher
	var eventsPublisher *events.Publisher
	if cfg.EventsEnabled {
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, cfg.TenantID, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize events publisher (events won't be published)")
		} else {
			publisher = eventsPublisher
			logger.Info("✓ NATS events publisher initialized")
		}
	}

	// Services
	baseEntry := logger.WithField("service", "shipment-orchestrator")
	settingsCache := cache.NewSettingsCache(redisClient, cfg.Cache.SettingsTTL)
	settingsService := services.NewSettingsService(settingsRepo, settingsCache, shiprocket.Tokens(), shiprocket, baseEntry)
	reconciler := services.NewStatusReconciler(orderRepo, statusTable, notifier, publisher, metrics, baseEntry)
	lifecycle := services.NewLifecycleService(orderRepo, settingsService, shiprocket, reconciler, notifier, publisher, baseEntry)
	webhookService := services.NewWebhookService(
		reconciler,
		settingsRepo,
		cfg.Shiprocket.WebhookSecret,
		cache.NewWebhookDeduper(redisClient, cfg.Cache.WebhookDedupeTTL),
		metrics,
		baseEntry,
	)
	logger.Info("Services initialized")

	// Background work
	bgCtx, bgCancel := context.WithCancel(context.Background())

	poller := jobs.NewTrackingPoller(orderRepo, lifecycle, cfg.Tracking.PollInterval, cfg.Tracking.BatchSize, cfg.Tracking.Concurrency, logger)
	go poller.Start(bgCtx)

	var orderSubscriber *subscribers.OrderSubscriber
	if cfg.EventsEnabled {
		orderSubscriber, err = subscribers.NewOrderSubscriber(cfg.NATSURL, lifecycle, settingsService, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize order subscriber (auto-create disabled)")
		} else {
			go func() {
				if err := orderSubscriber.Start(bgCtx); err != nil {
					logger.WithError(err).Warn("Order subscriber failed to start")
				}
			}()
			logger.Info("✓ Order event subscriber started")
		}
	}

	// Handlers
	shipmentHandler := handlers.NewShipmentHandler(lifecycle, baseEntry)
	webhookHandler := handlers.NewWebhookHandler(webhookService, baseEntry)
	settingsHandler := handlers.NewSettingsHandler(settingsService, baseEntry)
	healthHandler := handlers.NewHealthHandler(readinessChecks(db, redisClient))

	// Initialize RBAC middleware
	rbacMw := rbac.NewMiddlewareWithURL(cfg.Services.StaffURL, nil)
	logger.Info("✓ RBAC middleware initialized")

	router := setupRouter(cfg, logger, rbacMw, redisClient, registry, shipmentHandler, webhookHandler, settingsHandler, healthHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr": srv.Addr,
			"env":  cfg.Server.Env,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down Shipment Orchestrator...")

	bgCancel()
	poller.Stop()
	if orderSubscriber != nil {
		orderSubscriber.Stop()
		logger.Info("✓ Order subscriber stopped")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	if eventsPublisher != nil {
		eventsPublisher.Close()
		logger.Info("✓ Events publisher closed")
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("Shipment Orchestrator stopped")
}

// connectDatabase establishes a connection to the PostgreSQL database
func connectDatabase(dsn, env string) (*gorm.DB, error) {
	// SQL logging would print credential and token values bound as parameters
	logLevel := gormlogger.Warn
	if env == "production" {
		logLevel = gormlogger.Silent
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.ShipmentSettings{},
	)
}

func connectRedis(redisURL string, logger *logrus.Logger) *redis.Client {
	if redisURL == "" {
		logger.Info("REDIS_URL not configured, caching disabled")
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse Redis URL, continuing without Redis")
		return nil
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis, continuing without Redis")
		_ = client.Close()
		return nil
	}

	logger.Info("✓ Connected to Redis for caching")
	return client
}

func readinessChecks(db *gorm.DB, redisClient *redis.Client) map[string]handlers.DependencyCheck {
	checks := map[string]handlers.DependencyCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}

// setupRouter configures the Gin router with routes and middleware
func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	rbacMw *rbac.Middleware,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	shipmentHandler *handlers.ShipmentHandler,
	webhookHandler *handlers.WebhookHandler,
	settingsHandler *handlers.SettingsHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	// Security headers middleware
	router.Use(gosharedmw.SecurityHeaders())

	// Rate limiting (uses Redis for distributed rate limiting). Mounted on the
	// API groups only: the aggregator treats any non-2xx webhook answer as a
	// failed delivery.
	var rateLimit gin.HandlerFunc
	if redisClient != nil {
		rateLimit = gosharedmw.RedisRateLimitMiddlewareWithProfile(redisClient, "standard")
		logger.Info("✓ Redis-based rate limiting enabled")
	} else {
		rateLimit = gosharedmw.RateLimit()
		logger.Info("✓ In-memory rate limiting enabled (Redis unavailable)")
	}

	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS())

	// IstioAuth middleware - extracts JWT claims from x-jwt-claim-* headers
	// This MUST come before TenantMiddleware and RBAC middleware
	router.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
		RequireAuth:        false,
		AllowLegacyHeaders: true,
		SkipPaths: []string{
			"/health",
			"/ready",
			"/metrics",
			"/webhooks/",
		},
	}))

	router.Use(middleware.TenantMiddleware())
	router.Use(middleware.ErrorHandler(logger))

	// Probes and metrics
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	shipments := router.Group("/shipments", rateLimit)
	{
		// Storefront checkout quotes, no staff permission needed
		shipments.POST("/serviceability", shipmentHandler.CheckServiceability)

		// Read operations (require shipping:read permission)
		shipments.GET("/:orderId", rbacMw.RequirePermission(rbac.PermissionShippingRead), shipmentHandler.GetShipment)
		shipments.GET("/:orderId/couriers", rbacMw.RequirePermission(rbac.PermissionShippingRead), shipmentHandler.ListCouriers)
		shipments.GET("/:orderId/track", rbacMw.RequirePermission(rbac.PermissionShippingRead), shipmentHandler.Track)
		shipments.GET("/:orderId/label", rbacMw.RequirePermission(rbac.PermissionShippingRead), shipmentHandler.GetLabel)

		// Create operations (require shipping:create permission)
		shipments.POST("/:orderId/create", rbacMw.RequirePermission(rbac.PermissionShippingCreate), shipmentHandler.CreateShipment)

		// Update operations (require shipping:update permission)
		shipments.POST("/:orderId/awb", rbacMw.RequirePermission(rbac.PermissionShippingUpdate), shipmentHandler.AssignAWB)
		shipments.POST("/:orderId/pickup", rbacMw.RequirePermission(rbac.PermissionShippingUpdate), shipmentHandler.SchedulePickup)
		shipments.POST("/:orderId/label", rbacMw.RequirePermission(rbac.PermissionShippingUpdate), shipmentHandler.GetLabel)
		shipments.POST("/:orderId/cancel", rbacMw.RequirePermission(rbac.PermissionShippingUpdate), shipmentHandler.Cancel)
		shipments.POST("/:orderId/sync", rbacMw.RequirePermission(rbac.PermissionShippingUpdate), shipmentHandler.Sync)
	}

	// Shipment settings (require shipping:manage permission)
	settings := router.Group("/shipping-settings", rateLimit)
	{
		settings.GET("", rbacMw.RequirePermission(rbac.PermissionShippingRead), settingsHandler.GetSettings)
		settings.PUT("", rbacMw.RequirePermission(rbac.PermissionShippingManage), settingsHandler.UpdateSettings)
		settings.POST("/test-connection", rbacMw.RequirePermission(rbac.PermissionShippingManage), settingsHandler.TestConnection)
	}

	// Webhook routes (external aggregator callbacks - no RBAC)
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/tracking", webhookHandler.TrackingWebhook)
		webhooks.GET("/tracking", webhookHandler.Probe)
	}

	return router
}
