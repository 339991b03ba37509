package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appstock "github.com/retailpos/backend/internal/application/stock"
	"github.com/retailpos/backend/internal/domain/ledger"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/auth"
	"github.com/retailpos/backend/internal/infrastructure/cache"
	"github.com/retailpos/backend/internal/infrastructure/config"
	"github.com/retailpos/backend/internal/infrastructure/event"
	"github.com/retailpos/backend/internal/infrastructure/logger"
	"github.com/retailpos/backend/internal/infrastructure/persistence"
	"github.com/retailpos/backend/internal/interfaces/http/handler"
	"github.com/retailpos/backend/internal/interfaces/http/middleware"
	"github.com/retailpos/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting POS stock ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories and the transaction scope
	lineRepo := persistence.NewGormReceiptLineRepository(db.DB)
	trailRepo := persistence.NewGormAllocationTrailRepository(db.DB)
	aggregateRepo := persistence.NewGormStockAggregateRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Initialize application services
	ledgerService := appstock.NewLedgerService(txScope, lineRepo, trailRepo, aggregateRepo, log)
	reconciliationService := appstock.NewReconciliationService(txScope, lineRepo, trailRepo, aggregateRepo, log)

	// In-memory event bus with an audit-log subscriber
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewStockActivityLogger(log))
	if err := bus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	ledgerService.SetEventPublisher(bus)
	reconciliationService.SetEventPublisher(bus)

	// JWT service for request authentication
	jwtService := auth.NewJWTService(cfg.JWT)

	// Initialize HTTP handlers
	stockHandler := handler.NewStockHandler(ledgerService)
	reconciliationHandler := handler.NewReconciliationHandler(reconciliationService)
	systemHandler := handler.NewSystemHandler()

	// Idempotency store for allocation deduplication
	if cfg.Idempotency.Enabled {
		storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
		idempotencyStore, err := storeFactory.CreateStore()
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() {
			if err := idempotencyStore.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
		stockHandler.SetIdempotencyStore(idempotencyStore, shared.IdempotencyConfig{
			Enabled: cfg.Idempotency.Enabled,
			TTL:     cfg.Idempotency.TTL,
		})
		log.Info("Idempotency store enabled",
			zap.Bool("redis", cfg.Redis.Enabled),
			zap.Duration("ttl", cfg.Idempotency.TTL),
		)
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack: request ID, panic recovery, request logging,
	// security headers, CORS, body size limit.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Stock ledger routes
	stockRoutes := router.NewDomainGroup("stock", "/stock")
	stockRoutes.POST("/receipts", stockHandler.ReceiveStock)
	stockRoutes.POST("/receipts/:id/retire", stockHandler.RetireLine)
	stockRoutes.POST("/allocations", stockHandler.Allocate)
	stockRoutes.POST("/allocations/simulate", stockHandler.Simulate)
	stockRoutes.GET("/allocations", stockHandler.ListTrailsBySaleLine)
	stockRoutes.GET("/allocations/:id", stockHandler.GetTrail)
	stockRoutes.POST("/allocations/:id/reverse", stockHandler.Reverse)
	stockRoutes.GET("/products/:productId/availability", stockHandler.CheckAvailability)
	stockRoutes.GET("/products/:productId/cost", stockHandler.GetCostInfo)
	stockRoutes.GET("/products/:productId/receipts", stockHandler.ListReceiptLines)
	stockRoutes.GET("/products/:productId/level", stockHandler.GetStockLevel)
	stockRoutes.POST("/products/:productId/rebuild", stockHandler.RebuildAggregate)
	stockRoutes.POST("/reconciliation", reconciliationHandler.Run)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(stockRoutes).Register(systemRoutes)
	r.Setup()

	// Simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Periodic ledger audit (if enabled)
	auditCtx, auditCancel := context.WithCancel(context.Background())
	defer auditCancel()
	if cfg.Reconciliation.Enabled {
		go runPeriodicAudit(auditCtx, reconciliationService, aggregateRepo, cfg.Reconciliation.Interval, log)
		log.Info("Periodic reconciliation enabled",
			zap.Duration("interval", cfg.Reconciliation.Interval),
		)
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	auditCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := bus.Stop(ctx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// runPeriodicAudit runs the ledger audit for every known tenant on a
// fixed interval until the context is cancelled.
func runPeriodicAudit(
	ctx context.Context,
	service *appstock.ReconciliationService,
	aggregateRepo ledger.StockAggregateRepository,
	interval time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tenantIDs, err := aggregateRepo.ListTenantIDs(ctx)
			if err != nil {
				log.Error("Periodic audit failed to list tenants", zap.Error(err))
				continue
			}
			for _, tenantID := range tenantIDs {
				summary, err := service.Run(ctx, tenantID)
				if err != nil {
					log.Error("Periodic audit failed",
						zap.String("tenant_id", tenantID.String()),
						zap.Error(err))
					continue
				}
				if !summary.Clean() {
					log.Warn("Periodic audit found discrepancies",
						zap.String("tenant_id", tenantID.String()),
						zap.Int("invalid_lines", len(summary.InvalidLines)),
						zap.Int("trail_mismatches", len(summary.TrailMismatches)),
						zap.Int("corrections", len(summary.AggregateCorrections)))
				}
			}
		}
	}
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
