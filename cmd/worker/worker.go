package main

import (
	"context"
	"log"
	"os"

	"rag-backend/internal/app"
	"rag-backend/internal/config"
	"rag-backend/internal/logger"
	"rag-backend/internal/queue"

	"github.com/hibiken/asynq"
)

// Pages are fetched and embedded one batch per task; a small pool keeps
// provider rate limits and bbolt file locks manageable.
const workerConcurrency = 4

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if !cfg.RedisEnabled() {
		logger.Error("REDIS_URL is required for the ingestion worker")
		os.Exit(1)
	}

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		logger.Error("Invalid Redis options", "error", err)
		os.Exit(1)
	}

	pipeline, err := app.NewPipeline(context.Background(), cfg, nil)
	if err != nil {
		logger.Error("Failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: workerConcurrency,
			Queues: map[string]int{
				queue.QueueDefault: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(pipeline.Index)
	mux := queue.NewServeMux(processor)

	logger.Info("Starting ingestion worker", "concurrency", workerConcurrency, "index_dir", cfg.IndexDir)

	if err := server.Run(mux); err != nil {
		logger.Error("Failed to start worker", "error", err)
		os.Exit(1)
	}
}
