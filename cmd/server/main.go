package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridedispatch/internal/config"
	"ridedispatch/internal/handlers"
	"ridedispatch/internal/middleware"
	mongorepo "ridedispatch/internal/repositories/mongodb"
	"ridedispatch/internal/services"
	"ridedispatch/pkg/cache"
	"ridedispatch/pkg/database"
	"ridedispatch/pkg/logger"
	"ridedispatch/pkg/payment"
	"ridedispatch/pkg/realtime"
	"ridedispatch/routes"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	mongodb, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongodb.Close()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(indexCtx, mongodb.Database); err != nil {
		cancelIndexes()
		appLogger.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancelIndexes()

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	// Repositories
	rideRepo := mongorepo.NewRideRepository(mongodb.Database)
	offerRepo := mongorepo.NewOfferRepository(mongodb.Database)
	presenceRepo := mongorepo.NewDriverPresenceRepository(mongodb.Database)

	// Realtime hub
	hub := realtime.NewHub()
	go hub.Run()
	notifier := services.NewHubNotifier(hub)

	// Payment provider
	var paymentProvider payment.Provider
	if cfg.Payment.Enabled && cfg.Payment.StripeSecretKey != "" {
		paymentProvider = payment.NewStripeProvider(cfg.Payment.StripeSecretKey)
	} else {
		paymentProvider = payment.NewNoopProvider()
	}

	// Services
	clock := services.NewRealClock()
	dispatchService := services.NewDispatchService(rideRepo, offerRepo, presenceRepo, redisCache, notifier, cfg.Dispatch, clock, appLogger)
	acceptanceService := services.NewAcceptanceService(mongodb, rideRepo, offerRepo, presenceRepo, notifier, cfg.Dispatch, clock, appLogger)
	rideService := services.NewRideService(rideRepo, offerRepo, presenceRepo, paymentProvider, notifier, cfg.Dispatch, clock, appLogger)
	presenceService := services.NewPresenceService(presenceRepo, redisCache, redisCache, cfg.Dispatch, clock, appLogger)
	sweeperService := services.NewSweeperService(rideRepo, offerRepo, presenceRepo, cfg.Dispatch, clock, appLogger)

	// Background sweep loop
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go runSweeper(sweepCtx, sweeperService, cfg.Dispatch.SweepInterval)

	// Handlers
	rideHandler := handlers.NewRideHandler(rideService, dispatchService)
	driverHandler := handlers.NewDriverHandler(presenceService, dispatchService, acceptanceService)
	adminHandler := handlers.NewAdminHandler(sweeperService, dispatchService)
	wsHandler := handlers.NewWSHandler(hub)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())

	v1 := router.Group("/api/v1")
	{
		routes.SetupRideRoutes(v1, rideHandler, cfg.Security.JWTSecret)
		routes.SetupDriverRoutes(v1, driverHandler, cfg.Security.JWTSecret)
		routes.SetupAdminRoutes(v1, adminHandler, rideHandler, cfg.Security.JWTSecret)

		v1.GET("/ws", middleware.AuthRequired(cfg.Security.JWTSecret), wsHandler.Subscribe)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
		})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		appLogger.Infof("Starting server on port %d", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("Forced shutdown: %v", err)
	}
}

// runSweeper runs the reconciliation loop until the context is cancelled.
func runSweeper(ctx context.Context, sweeper services.SweeperService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, interval)
			_, _ = sweeper.Sweep(sweepCtx)
			cancel()
		}
	}
}
