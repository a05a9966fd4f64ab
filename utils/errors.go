package utils

import (
	"net/http"

	"rag-backend/models"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "invalid_input", message, details)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithRAGError sends a 500 carrying the pipeline stage that failed.
// Every stage maps to the same status; only error_code differs.
func RespondWithRAGError(c *gin.Context, err error) {
	code := string(models.ErrorKindOf(err))
	if code == "" {
		code = "internal_error"
	}
	RespondWithError(c, http.StatusInternalServerError, code, messageFor(models.ErrorKindOf(err)), err.Error())
}

func messageFor(kind models.ErrorKind) string {
	switch kind {
	case models.KindFetch:
		return "Failed to fetch page"
	case models.KindEmbedding:
		return "Failed to embed content"
	case models.KindGeneration:
		return "Failed to generate answer"
	case models.KindConfiguration:
		return "Service is not configured"
	default:
		return "Internal server error"
	}
}
