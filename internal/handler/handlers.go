package handler

import (
	"net/http"

	"contact_hub/internal/realtime"
	"contact_hub/internal/service"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health       *HealthHandler
	Inbound      *InboundHandler
	Contact      *ContactHandler
	Conversation *ConversationHandler
	WebSocket    *WebSocketHandler
}

func NewHandlers(services *service.Services, hub *realtime.Hub, health *HealthHandler, log logger.Logger) *Handlers {
	return &Handlers{
		Health:       health,
		Inbound:      NewInboundHandler(services.Conversation, log),
		Contact:      NewContactHandler(services.Identity, services.Merge, log),
		Conversation: NewConversationHandler(services.Conversation, log),
		WebSocket:    NewWebSocketHandler(hub, log),
	}
}

// writeError отвечает статусом, соответствующим классу ошибки
func writeError(c *gin.Context, log logger.Logger, err error) {
	status := apperrors.HTTPStatusFromError(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "error", err, "path", c.FullPath())
		c.JSON(status, apperrors.NewAPIError("Internal server error", status))
		return
	}
	c.JSON(status, apperrors.NewAPIError(err.Error(), status))
}
