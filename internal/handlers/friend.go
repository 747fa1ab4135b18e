package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-service/internal/models"
	"social-service/internal/telemetry"
)

// friendWorkflow is the friend-request surface the handler drives.
type friendWorkflow interface {
	SendRequest(ctx context.Context, senderID, receiverID int) error
	ResolveRequest(ctx context.Context, requestID, resolverID int, accept bool) (models.Resolution, error)
	ListIncomingRequests(ctx context.Context, userID int) ([]models.FriendRequestDetail, error)
	ListFriends(ctx context.Context, userID, excludeChatID int) ([]models.PublicUser, error)
	SearchUsers(ctx context.Context, userID int, nameQuery string) ([]models.PublicUser, error)
}

// FriendHandler manages friend-request and social-graph endpoints.
type FriendHandler struct {
	friends friendWorkflow
	audit   *telemetry.AuditEmitter
}

// NewFriendHandler constructs a FriendHandler.
func NewFriendHandler(friends friendWorkflow, audit *telemetry.AuditEmitter) *FriendHandler {
	return &FriendHandler{friends: friends, audit: audit}
}

// SendRequest handles POST /friends/requests.
func (h *FriendHandler) SendRequest(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.friends.SendRequest(c.Request.Context(), userID, req.UserID); err != nil {
		h.emitAudit(c, "ERROR", "friend request failed")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Friend request sent")
	c.JSON(http.StatusOK, gin.H{"message": "friend request sent"})
}

// ResolveRequest handles POST /friends/requests/resolve.
func (h *FriendHandler) ResolveRequest(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		RequestID int   `json:"request_id" binding:"required"`
		Accept    *bool `json:"accept" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resolution, err := h.friends.ResolveRequest(c.Request.Context(), req.RequestID, userID, *req.Accept)
	if err != nil {
		h.emitAudit(c, "ERROR", "friend request resolution failed")
		respondError(c, err)
		return
	}

	if resolution.Accepted {
		h.emitAudit(c, "INFO", "Friend request accepted")
		c.JSON(http.StatusOK, gin.H{"message": "friend request accepted", "sender_id": resolution.SenderID, "chat_id": resolution.ChatID})
		return
	}

	h.emitAudit(c, "INFO", "Friend request rejected")
	c.JSON(http.StatusOK, gin.H{"message": "friend request rejected"})
}

// ListNotifications handles GET /friends/requests.
func (h *FriendHandler) ListNotifications(c *gin.Context) {
	userID := c.GetInt("userID")

	requests, err := h.friends.ListIncomingRequests(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load requests"})
		return
	}

	type notification struct {
		ID     int               `json:"id"`
		Sender models.PublicUser `json:"sender"`
	}
	resp := make([]notification, 0, len(requests))
	for _, r := range requests {
		resp = append(resp, notification{ID: r.ID, Sender: r.Sender})
	}

	c.JSON(http.StatusOK, gin.H{"requests": resp})
}

// ListFriends handles GET /friends?chat_id=.
func (h *FriendHandler) ListFriends(c *gin.Context) {
	userID := c.GetInt("userID")

	excludeChatID := 0
	if raw := c.Query("chat_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
			return
		}
		excludeChatID = parsed
	}

	friends, err := h.friends.ListFriends(c.Request.Context(), userID, excludeChatID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// SearchUsers handles GET /users/search?name=.
func (h *FriendHandler) SearchUsers(c *gin.Context) {
	userID := c.GetInt("userID")

	users, err := h.friends.SearchUsers(c.Request.Context(), userID, c.Query("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *FriendHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
