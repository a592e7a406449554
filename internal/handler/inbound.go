package handler

import (
	"net/http"
	"time"

	"contact_hub/internal/domain"
	"contact_hub/internal/service"
	"contact_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

type InboundHandler struct {
	conversationService service.ConversationService
	log                 logger.Logger
}

func NewInboundHandler(conversationService service.ConversationService, log logger.Logger) *InboundHandler {
	return &InboundHandler{
		conversationService: conversationService,
		log:                 log,
	}
}

type InboundMessageRequest struct {
	TenantID   string    `json:"tenant_id" binding:"required"`
	SenderID   string    `json:"sender_id" binding:"required"`
	SenderName string    `json:"sender_name,omitempty"`
	Content    string    `json:"content"`
	Type       string    `json:"type,omitempty"`
	ExternalID *string   `json:"external_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Receive принимает уже разобранное адаптером входящее сообщение канала
func (h *InboundHandler) Receive(c *gin.Context) {
	channel, ok := domain.ParseChannel(c.Param("channel"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported channel"})
		return
	}

	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.conversationService.Ingest(c.Request.Context(), service.InboundMessage{
		TenantID:   req.TenantID,
		Channel:    channel,
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		Content:    req.Content,
		Type:       req.Type,
		ExternalID: req.ExternalID,
		Timestamp:  req.Timestamp,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}
