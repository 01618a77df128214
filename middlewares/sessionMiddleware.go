package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
	"github.com/syamai/exchange-future-backend-unified-sub002/utils"
)

// SessionMiddleware rejects tokens that were logged out. Runs after AuthMiddleware.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.GetTokenFromContext(c.Request.Context())
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		active, err := models.SessionActive(c.Request.Context(), token)
		if err != nil {
			config.LogError(config.GetLogger(), "Middleware", "SessionMiddleware", "checking session", nil, err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
			return
		}
		if !active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
