package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/jewel_backend/utils"
)

const CorrelationHeader = "x-correlation-id"

// CorrelationMiddleware generates a correlation id once per request, or keeps
// the caller's, and echoes it back in the response.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(CorrelationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Header(CorrelationHeader, cid)
		c.Next()
	}
}
