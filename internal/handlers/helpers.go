package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-service/internal/services"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *int64 {
	if val, ok := c.Get("userID"); ok {
		switch userID := val.(type) {
		case int:
			if userID != 0 {
				value := int64(userID)
				return &value
			}
		case int64:
			if userID != 0 {
				value := userID
				return &value
			}
		}
	}
	return nil
}

func chatIDParam(c *gin.Context) (int, bool) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return chatID, true
}

// respondError maps typed workflow failures to HTTP statuses; anything
// untyped is an internal error.
func respondError(c *gin.Context, err error) {
	var workflowErr *services.Error
	if !errors.As(err, &workflowErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(statusForKind(workflowErr.Kind), gin.H{"error": workflowErr.Message, "kind": workflowErr.Kind})
}

func statusForKind(kind services.Kind) int {
	switch kind {
	case services.KindDuplicateRequest, services.KindGroupFull:
		return http.StatusConflict
	case services.KindRequestNotFound, services.KindChatNotFound, services.KindUserNotFound:
		return http.StatusNotFound
	case services.KindUnauthorized:
		return http.StatusForbidden
	case services.KindNotGroupChat, services.KindGroupTooSmall, services.KindSelfOperation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
