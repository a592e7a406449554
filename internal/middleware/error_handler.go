package middleware

import (
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler превращает последнюю ошибку из c.Errors в JSON-ответ
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		statusCode := apperrors.HTTPStatusFromError(err.Err)

		message := err.Error()
		if statusCode >= 500 {
			log.Error("Request failed", "error", err.Err, "path", c.FullPath())
			message = "Internal server error"
		}

		c.JSON(statusCode, gin.H{
			"error": message,
		})
	}
}
