package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes rejects requests whose declared Content-Length exceeds limit
// before any handler runs. Bodies without a declared length are capped with
// http.MaxBytesReader; handlers.BindJSON turns the resulting
// *http.MaxBytesError into the same 413 payload_too_large envelope.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			abortWithError(c, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large")
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}

		c.Next()
	}
}
