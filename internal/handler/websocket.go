package handler

import (
	"net/http"

	"contact_hub/internal/middleware"
	"contact_hub/internal/realtime"
	"contact_hub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub *realtime.Hub
	log logger.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		log: log,
	}
}

// HandleEvents подписывает сотрудника на события его тенанта
func (h *WebSocketHandler) HandleEvents(c *gin.Context) {
	staff, ok := middleware.StaffFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := realtime.NewConnection(staff.TenantID, ws)
	h.hub.Subscribe(conn)
	conn.Start()
	h.log.Debug("Realtime subscriber connected", "staff_id", staff.ID, "tenant_id", staff.TenantID)

	conn.ReadLoop()

	h.hub.Unsubscribe(conn)
	conn.Close(websocket.CloseNormalClosure, "bye")
	h.log.Debug("Realtime subscriber disconnected", "staff_id", staff.ID)
}
