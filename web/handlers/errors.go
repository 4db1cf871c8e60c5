package handlers

import (
	"net/http"

	apperrors "filechat/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondWithError logs the technical error and returns a user-friendly message
func respondWithError(c *gin.Context, statusCode int, technicalError error, userMessage string, logger *zap.Logger, fields ...zap.Field) {
	// Log technical error with context
	if logger != nil {
		fields = append(fields, zap.Error(technicalError))
		logger.Error("Request failed", fields...)
	}

	// Return user-friendly message
	c.JSON(statusCode, gin.H{"error": userMessage})
}

// respondWithClientError returns a client error (no logging needed for validation errors)
func respondWithClientError(c *gin.Context, statusCode int, userMessage string) {
	c.JSON(statusCode, gin.H{"error": userMessage})
}

// respondWithAppError maps a classified error to its HTTP status and returns
// the stable kind string alongside the user message, so clients can branch
// on kind instead of parsing text.
func respondWithAppError(c *gin.Context, err error, logger *zap.Logger, fields ...zap.Field) {
	kind := apperrors.Kind(err)
	status, userMessage := statusForKind(kind)

	if logger != nil && status >= http.StatusInternalServerError {
		fields = append(fields, zap.Error(err), zap.String("kind", kind))
		logger.Error("Request failed", fields...)
	}

	c.JSON(status, gin.H{"error": userMessage, "kind": kind})
}

func statusForKind(kind string) (int, string) {
	switch kind {
	case apperrors.KindAuthExpired:
		return http.StatusUnauthorized, "authentication expired"
	case apperrors.KindNoUserID:
		return http.StatusUnauthorized, "no user identity on request"
	case apperrors.KindInvalidChatID:
		return http.StatusBadRequest, "invalid chat id"
	case apperrors.KindInvalidFileID:
		return http.StatusBadRequest, "invalid file id"
	case apperrors.KindInvalidData:
		return http.StatusBadRequest, "invalid request data"
	case apperrors.KindChatNotFound:
		return http.StatusNotFound, "chat not found"
	case apperrors.KindFileNotFound:
		return http.StatusNotFound, "file not found"
	case apperrors.KindFileAccessDenied:
		return http.StatusForbidden, "file access denied"
	case apperrors.KindNetwork:
		return http.StatusBadGateway, "upstream request failed, try again"
	case apperrors.KindNoData:
		return http.StatusBadGateway, "upstream returned no data"
	case apperrors.KindStoreUnavailable:
		return http.StatusServiceUnavailable, "storage temporarily unavailable"
	case apperrors.KindModelNotConfigured:
		return http.StatusServiceUnavailable, "model is not configured"
	default:
		return http.StatusInternalServerError, "something went wrong"
	}
}
