package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"hookrelay/config"
	"hookrelay/internal/breaker"
	"hookrelay/internal/domain/delivery"
	"hookrelay/internal/domain/subscription"
	"hookrelay/internal/handler"
	"hookrelay/internal/middleware"
	"hookrelay/internal/queue"
	appredis "hookrelay/internal/redis"
	"hookrelay/internal/repository"
	"hookrelay/internal/server"
	"hookrelay/internal/services"
	"hookrelay/pkg/database"
	"hookrelay/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == "release" {
		mode = logger.ProductionMode
		gin.SetMode(gin.ReleaseMode)
	}
	appLogger := logger.New(mode)
	logger.SetGlobalLogger(appLogger)

	// Connect to Database
	database.Connect(cfg)

	// Run Raw Migrations (Extensions)
	if err := database.ApplyRawMigrations("migrations"); err != nil {
		log.Fatalf("Failed to apply raw migrations: %v", err)
	}

	// Run GORM AutoMigrate for Tables
	if err := database.DB.AutoMigrate(
		&subscription.Subscription{},
		&delivery.Record{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	sqlDB, err := database.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get generic database object: %v", err)
	}

	// Redis
	appredis.Initialize(appredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	redisClient := appredis.GetClient()

	// Repositories
	subscriptionRepo := repository.NewSubscriptionRepository(database.DB)
	deliveryRepo := repository.NewDeliveryRepository(sqlDB)

	// Delivery pipeline
	notifier := queue.NewNotifier()
	jobQueue := appredis.NewQueue(redisClient, queue.BackoffPolicy{
		Initial: cfg.BackoffInitial,
		Max:     cfg.BackoffMax,
	}, cfg.JobLease, notifier)
	circuitBreaker := appredis.NewCircuitBreaker(redisClient, breaker.DefaultConfig())
	dedup := appredis.NewDeduplicator(redisClient, cfg.DedupTTL)

	encoder := services.NewEncoder(cfg.Platform)
	executor := services.NewExecutor(deliveryRepo, cfg.DeliveryTimeout)
	publisher := services.NewPublisher(subscriptionRepo, deliveryRepo, dedup, circuitBreaker, jobQueue, cfg.MaxAttempts, appLogger)
	subscriptionService := services.NewSubscriptionService(subscriptionRepo, encoder, executor)
	deliveryService := services.NewDeliveryService(deliveryRepo, jobQueue, cfg.MaxAttempts)

	deliveryHandler := services.NewDeliveryHandler(subscriptionRepo, deliveryRepo, encoder, executor, circuitBreaker, appLogger)
	worker := queue.NewWorker(jobQueue, deliveryHandler, cfg.WorkerConcurrency, appLogger)
	worker.Start()
	defer worker.Stop()

	// Ops feed
	hub := server.NewHub(notifier, appLogger)
	hub.Start()
	defer hub.Stop()

	// HTTP
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(appLogger))
	r.Use(middleware.ErrorHandler(appLogger))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	events := handler.NewEventHandler(publisher)
	subscriptions := handler.NewSubscriptionHandler(subscriptionService)
	deliveries := handler.NewDeliveryHandler(deliveryService)
	ops := handler.NewOpsHandler(jobQueue)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		api.POST("/events", events.Publish)

		api.POST("/subscriptions", subscriptions.Create)
		api.GET("/subscriptions", subscriptions.List)
		api.GET("/subscriptions/:id", subscriptions.Get)
		api.PATCH("/subscriptions/:id", subscriptions.Update)
		api.DELETE("/subscriptions/:id", subscriptions.Delete)
		api.POST("/subscriptions/:id/test", subscriptions.Test)

		api.GET("/deliveries", deliveries.List)
		api.GET("/deliveries/:id", deliveries.Get)
		api.POST("/deliveries/:id/redeliver", deliveries.Redeliver)

		api.GET("/ops/stats", ops.Stats)
		api.GET("/ops/feed", hub.FeedHandler)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.AppPort),
		Handler: r,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down")
	srv.Close()
}
