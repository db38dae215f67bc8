package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// abortWithError writes the same error envelope the handlers use.
func abortWithError(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)
	id, _ := reqID.(string)

	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"statusCode": status,
			"type":       http.StatusText(status),
			"code":       code,
			"message":    message,
			"requestId":  id,
		},
	})
}
