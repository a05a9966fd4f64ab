package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rag-backend/internal/app"
	"rag-backend/internal/config"
	"rag-backend/internal/logger"
	"rag-backend/internal/queue"
	"rag-backend/internal/telemetry"
	"rag-backend/middleware"
	"rag-backend/routes"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

const (
	serviceName    = "rag-backend"
	maxRequestBody = 1 << 20
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	ctx := context.Background()

	var metrics *telemetry.Metrics
	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.OTLPEndpoint, 0.1)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			defer shutdownTracer()
		}
		if metrics, err = telemetry.InitMetrics(); err != nil {
			logger.Error("Failed to initialize metrics", "error", err)
		}
	}

	pipeline, err := app.NewPipeline(ctx, cfg, metrics)
	if err != nil {
		logger.Error("Failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware(serviceName))
		router.Use(middleware.EnrichTrace())
		router.Use(middleware.MetricsMiddleware(metrics))
	}

	deps := routes.RAGDeps{
		Ingester:    pipeline.Index,
		Answerer:    pipeline.Query,
		DefaultTopK: cfg.DefaultTopK,
		Middleware:  []gin.HandlerFunc{middleware.RequestSizeLimit(maxRequestBody)},
	}

	// Redis-backed features are optional
	if cfg.RedisEnabled() {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting and async ingestion disabled", "error", err)
		} else {
			defer rdb.Close()
			deps.Middleware = append(deps.Middleware,
				middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second))

			redisOpt, err := config.AsynqRedisOpt(cfg)
			if err != nil {
				logger.Warn("Invalid Redis options for queue", "error", err)
			} else {
				queueClient := asynq.NewClient(redisOpt)
				defer queueClient.Close()
				inspector := asynq.NewInspector(redisOpt)
				defer inspector.Close()
				deps.Enqueuer = queue.NewEnqueuer(queueClient, inspector)
			}
		}
	}

	routes.SetupRAGRoutes(router, deps)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "llm_provider", cfg.LLMProvider, "embeddings_provider", cfg.EmbeddingsProvider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
