package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/saasarch/constitution-service/internal/api/handlers"
	"github.com/saasarch/constitution-service/internal/cache/redis"
	"github.com/saasarch/constitution-service/internal/embedding"
	"github.com/saasarch/constitution-service/internal/evaluation"
	"github.com/saasarch/constitution-service/internal/metrics"
	"github.com/saasarch/constitution-service/internal/middleware/ratelimit"
	"github.com/saasarch/constitution-service/internal/middleware/security"
	"github.com/saasarch/constitution-service/internal/principles"
	"github.com/saasarch/constitution-service/internal/storage/sqlite"
	"github.com/saasarch/constitution-service/internal/vector/milvus"
	"github.com/saasarch/constitution-service/pkg/config"
	appLogger "github.com/saasarch/constitution-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Constitution Service")

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// The vector index is optional. Without it the principle store falls back
	// to scanning active principles in process, which is fine for small pools.
	var vectorIndex principles.VectorIndex
	var indexWriter principles.IndexWriter

	if cfg.Milvus.Endpoint != "" {
		milvusClient, err := milvus.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.APIKey,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer milvusClient.Close()

		err = milvusClient.CreateCollection(context.Background())
		if err != nil {
			appLogger.Fatal("Failed to create collection", zap.Error(err))
		}

		index := principles.NewMilvusIndex(milvusClient)
		vectorIndex = index
		indexWriter = index
	} else {
		appLogger.Info("No vector index configured, using in-process similarity scan")
	}

	embedClient := embedding.NewClient(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.EmbeddingModel,
		cfg.OpenAI.TimeoutSec,
	)

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without embedding cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			embedClient = embedClient.WithCache(redisClient, time.Duration(cfg.Redis.TTLHours)*time.Hour)
		}
	}

	store := principles.NewStore(sqliteClient, vectorIndex)
	principleService := principles.NewService(sqliteClient, store, embedClient, indexWriter)

	watchHandler := handlers.NewWatchHandler()

	evaluator := evaluation.NewEvaluator(evaluation.Config{
		Embedder:        embedClient,
		Finder:          store,
		Tenants:         sqliteClient,
		Audit:           sqliteClient,
		MinSimilarity:   cfg.Evaluation.MinSimilarity,
		CandidateLimit:  cfg.Evaluation.CandidateLimit,
		MaxActionLength: cfg.Evaluation.MaxActionLength,
		MaxBatchSize:    cfg.Evaluation.MaxBatchSize,
		OnLogged:        watchHandler.Notify,
	})

	metrics.Init()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Tenant-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RatePerMin,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	evaluateHandler := handlers.NewEvaluateHandler(evaluator, sqliteClient)
	principleHandler := handlers.NewPrincipleHandler(principleService)
	tenantHandler := handlers.NewTenantHandler(sqliteClient)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "constitution-service",
		})
	})

	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api/v1")
	api.Use(limiter.Middleware())

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	api.Post("/evaluate", evaluateHandler.Evaluate)
	api.Post("/evaluate/batch", evaluateHandler.EvaluateBatch)
	api.Get("/evaluate/logs", evaluateHandler.ListLogs)
	api.Get("/evaluate/logs/:id", evaluateHandler.GetLog)
	api.Delete("/evaluate/logs/:id", evaluateHandler.DeleteLog)
	api.Get("/evaluate/stats", evaluateHandler.Stats)

	api.Post("/principles", principleHandler.Create)
	api.Get("/principles", principleHandler.List)
	api.Put("/principles/:id", principleHandler.Update)
	api.Delete("/principles/:id", principleHandler.Deactivate)
	api.Post("/principles/search", principleHandler.Search)

	api.Post("/tenants", tenantHandler.Create)
	api.Get("/tenants/:id", tenantHandler.Get)
	api.Delete("/tenants/:id", tenantHandler.Deactivate)
	api.Post("/tenants/:id/principles/:principleId", tenantHandler.AdoptPrinciple)
	api.Delete("/tenants/:id/principles/:principleId", tenantHandler.RevokePrinciple)

	api.Use("/evaluate/watch", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/evaluate/watch", websocket.New(watchHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
