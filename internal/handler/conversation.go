package handler

import (
	"net/http"
	"strconv"

	"contact_hub/internal/domain"
	"contact_hub/internal/middleware"
	"contact_hub/internal/service"
	"contact_hub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	conversationService service.ConversationService
	log                 logger.Logger
}

func NewConversationHandler(conversationService service.ConversationService, log logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		log:                 log,
	}
}

func (h *ConversationHandler) List(c *gin.Context) {
	staff, _ := middleware.StaffFromContext(c)

	var channel domain.Channel
	if raw := c.Query("channel"); raw != "" {
		parsed, ok := domain.ParseChannel(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported channel"})
			return
		}
		channel = parsed
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	conversations, err := h.conversationService.ListConversations(c.Request.Context(), staff.TenantID, channel, limit, offset)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if conversations == nil {
		conversations = []*domain.Conversation{}
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// Messages отдает историю с ETag; совпавший If-None-Match дает 304
func (h *ConversationHandler) Messages(c *gin.Context) {
	staff, _ := middleware.StaffFromContext(c)
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	page, err := h.conversationService.ListMessages(c.Request.Context(), staff.TenantID, conversationID, limit, c.GetHeader("If-None-Match"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Header("ETag", strconv.Quote(page.ETag))
	if page.NotModified {
		c.Status(http.StatusNotModified)
		return
	}

	messages := page.Messages
	if messages == nil {
		messages = []*domain.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Send записывает исходящее сообщение сотрудника; доставку выполняет внешний адаптер
func (h *ConversationHandler) Send(c *gin.Context) {
	staff, _ := middleware.StaffFromContext(c)
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.conversationService.SendOutbound(c.Request.Context(), staff, conversationID, req.Content)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *ConversationHandler) GetMessage(c *gin.Context) {
	staff, _ := middleware.StaffFromContext(c)
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
		return
	}

	message, err := h.conversationService.GetMessage(c.Request.Context(), staff.TenantID, messageID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, message)
}

// SearchMessages - GET /messages?q=
func (h *ConversationHandler) SearchMessages(c *gin.Context) {
	staff, _ := middleware.StaffFromContext(c)
	limit, _ := strconv.Atoi(c.Query("limit"))

	messages, err := h.conversationService.SearchMessages(c.Request.Context(), staff.TenantID, c.Query("q"), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if messages == nil {
		messages = []*domain.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
