package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-service/internal/models"
	"social-service/internal/telemetry"
)

// chatWorkflow is the membership surface the handler drives.
type chatWorkflow interface {
	CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (models.ChatDetail, error)
	AddMembers(ctx context.Context, chatID, requesterID int, newMemberIDs []int) ([]int, error)
	RemoveMember(ctx context.Context, chatID, requesterID, targetID int) error
	LeaveGroup(ctx context.Context, chatID, userID int) error
	DeleteChat(ctx context.Context, chatID, requesterID int) error
	RenameGroup(ctx context.Context, chatID, requesterID int, name string) error
	GetChatDetails(ctx context.Context, chatID, requesterID int) (models.ChatDetail, error)
	ListChats(ctx context.Context, userID int) ([]models.ChatDetail, error)
	ListGroups(ctx context.Context, userID int) ([]models.ChatDetail, error)
}

// ChatHandler manages chat and group-membership endpoints.
type ChatHandler struct {
	chats chatWorkflow
	audit *telemetry.AuditEmitter
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(chats chatWorkflow, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chats: chats, audit: audit}
}

// CreateGroup handles POST /chats/group.
func (h *ChatHandler) CreateGroup(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Name      string `json:"name" binding:"required"`
		MemberIDs []int  `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.chats.CreateGroup(c.Request.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		h.emitAudit(c, "ERROR", "group creation failed")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, gin.H{"chat": chat})
}

// ListChats handles GET /chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.chats.ListChats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// ListGroups handles GET /chats/groups.
func (h *ChatHandler) ListGroups(c *gin.Context) {
	userID := c.GetInt("userID")

	groups, err := h.chats.ListGroups(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetChat handles GET /chats/:chat_id.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	chat, err := h.chats.GetChatDetails(c.Request.Context(), chatID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

// Rename handles PUT /chats/:chat_id.
func (h *ChatHandler) Rename(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chats.RenameGroup(c.Request.Context(), chatID, userID, req.Name); err != nil {
		h.emitAudit(c, "ERROR", "group rename failed")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Group renamed")
	c.JSON(http.StatusOK, gin.H{"message": "group renamed"})
}

// AddMembers handles PUT /chats/:chat_id/members.
func (h *ChatHandler) AddMembers(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		MemberIDs []int `json:"member_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := h.chats.AddMembers(c.Request.Context(), chatID, userID, req.MemberIDs)
	if err != nil {
		h.emitAudit(c, "ERROR", "member addition failed")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Members added")
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// RemoveMember handles DELETE /chats/:chat_id/members/:user_id.
func (h *ChatHandler) RemoveMember(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	userID := c.GetInt("userID")

	if err := h.chats.RemoveMember(c.Request.Context(), chatID, userID, targetID); err != nil {
		h.emitAudit(c, "ERROR", "member removal failed")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Member removed")
	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}

// Leave handles DELETE /chats/:chat_id/leave.
func (h *ChatHandler) Leave(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if err := h.chats.LeaveGroup(c.Request.Context(), chatID, userID); err != nil {
		h.emitAudit(c, "ERROR", "group leave failed")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Left group")
	c.JSON(http.StatusOK, gin.H{"message": "left group"})
}

// Delete handles DELETE /chats/:chat_id.
func (h *ChatHandler) Delete(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if err := h.chats.DeleteChat(c.Request.Context(), chatID, userID); err != nil {
		h.emitAudit(c, "ERROR", "chat deletion failed")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Chat deleted")
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
