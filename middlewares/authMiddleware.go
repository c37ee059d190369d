package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewel_backend/utils"
)

// AuthMiddleware attaches an optional identity. Requests without a bearer
// token continue as the guest actor; a token that fails validation is rejected.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := strings.TrimSpace(c.Request.Header.Get("Authorization"))

		if auth == "" {
			ctx := utils.SetActorInContext(c.Request.Context(), utils.Actor{Name: utils.GuestActorName, IsGuest: true})
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "UNAUTHORIZED", "message": "unauthorized"}})
			return
		}
		token := strings.TrimSpace(auth[len(bearer):])

		actor, err := utils.ActorFromToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "UNAUTHORIZED", "message": "unauthorized"}})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetActorInContext(ctx, actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
