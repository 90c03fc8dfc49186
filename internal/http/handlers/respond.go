package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

// Only 400s carry a body; 401/404/500 are bare statuses. Validation detail
// is the one thing callers get to see.

func RespondBadRequest(ctx *gin.Context, code, message string, details interface{}) {
	ctx.JSON(http.StatusBadRequest, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondUnauthorized(ctx *gin.Context) {
	ctx.Status(http.StatusUnauthorized)
}

func RespondNotFound(ctx *gin.Context) {
	ctx.Status(http.StatusNotFound)
}

func RespondInternal(ctx *gin.Context) {
	ctx.Status(http.StatusInternalServerError)
}
