package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/auth"
)

// AuthMiddleware validates the bearer credential and binds the caller's
// identity into the request context.
func AuthMiddleware(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		user, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
