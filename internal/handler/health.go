package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	storage string
	checks  map[string]func(context.Context) error
}

// checks - зависимости, доступность которых видна в /health
func NewHealthHandler(storage string, checks map[string]func(context.Context) error) *HealthHandler {
	return &HealthHandler{storage: storage, checks: checks}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(gin.H, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status":       state,
		"service":      "contact-hub",
		"storage":      h.storage,
		"dependencies": deps,
	})
}
