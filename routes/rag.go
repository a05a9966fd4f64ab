package routes

import (
	"context"
	"net/http"
	"strings"

	"rag-backend/internal/logger"
	"rag-backend/internal/queue"
	"rag-backend/middleware"
	"rag-backend/models"
	"rag-backend/services"
	"rag-backend/utils"

	"github.com/gin-gonic/gin"
)

type Ingester interface {
	Ingest(ctx context.Context, url string) (*services.IngestResult, error)
}

type Answerer interface {
	Answer(ctx context.Context, url, question string, k int) (string, error)
}

type IngestEnqueuer interface {
	EnqueueIngest(ctx context.Context, url string) (*queue.EnqueueResult, error)
}

// RAGDeps are the services behind the public endpoints. Enqueuer is optional;
// /ingest/async is only registered when it is set.
type RAGDeps struct {
	Ingester    Ingester
	Answerer    Answerer
	Enqueuer    IngestEnqueuer
	DefaultTopK int

	// Middleware applied to the ingest and chat endpoints only
	Middleware []gin.HandlerFunc
}

func SetupRAGRoutes(router *gin.Engine, deps RAGDeps) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{OK: true})
	})

	api := router.Group("/")
	api.Use(deps.Middleware...)

	api.POST("/ingest", handleIngest(deps.Ingester))
	if deps.Enqueuer != nil {
		api.POST("/ingest/async", handleIngestAsync(deps.Enqueuer))
	}
	api.POST("/chat", handleChat(deps.Answerer, deps.DefaultTopK))
}

func handleIngest(ingester Ingester) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		result, err := ingester.Ingest(c.Request.Context(), req.URL)
		if err != nil {
			logger.Error("Ingest failed", "url", req.URL, "error", err, "request_id", middleware.GetRequestID(c))
			utils.RespondWithRAGError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.IngestResponse{
			Collection: result.Collection,
			Count:      result.Count,
		})
	}
}

func handleIngestAsync(enqueuer IngestEnqueuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		result, err := enqueuer.EnqueueIngest(c.Request.Context(), req.URL)
		if err != nil {
			logger.Error("Failed to enqueue ingest", "url", req.URL, "error", err, "request_id", middleware.GetRequestID(c))
			utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable", "Failed to queue ingestion", err.Error())
			return
		}

		if result.AlreadyQueued {
			c.JSON(http.StatusOK, models.AsyncIngestResponse{
				Collection: result.Collection,
				Status:     "already_queued",
			})
			return
		}

		c.JSON(http.StatusAccepted, models.AsyncIngestResponse{
			Collection: result.Collection,
			TaskID:     result.TaskID,
			Status:     "queued",
		})
	}
}

func handleChat(answerer Answerer, defaultTopK int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		question := strings.TrimSpace(req.QuestionText())
		if question == "" {
			utils.RespondWithBadRequest(c, "Question must not be empty", nil)
			return
		}

		answer, err := answerer.Answer(c.Request.Context(), req.URL, question, req.TopK(defaultTopK))
		if err != nil {
			logger.Error("Chat failed", "url", req.URL, "error", err, "request_id", middleware.GetRequestID(c))
			utils.RespondWithRAGError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.ChatResponse{Answer: answer})
	}
}
