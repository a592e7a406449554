package middleware

import (
	"net/http"
	"strconv"

	"contact_hub/internal/domain"
	"contact_hub/internal/service"
	"contact_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

// Limit ограничивает число запросов с одного IP по правилу rule
func (m *RateLimitMiddleware) Limit(rule domain.RateLimitRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rule.Key(c.ClientIP())

		allowed, err := m.rateLimitService.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			// Redis недоступен - не блокируем доставку вебхуков
			m.log.Error("Rate limit check failed", "error", err, "scope", rule.Scope)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}
