package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const InboundTokenHeader = "X-Inbound-Token"

// RequireInboundToken проверяет общий секрет адаптеров каналов. Пустой token отключает проверку.
func RequireInboundToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		got := c.GetHeader(InboundTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid inbound token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
